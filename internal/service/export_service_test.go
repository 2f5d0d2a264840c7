package service_test

import (
	"context"
	"encoding/csv"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stocksim/internal/domain"
	"github.com/alanyoungcy/stocksim/internal/service"
	"github.com/alanyoungcy/stocksim/internal/testutil"
)

func TestExportTransactions(t *testing.T) {
	ctx := context.Background()
	ledger := testutil.NewFakeLedger()
	cache := testutil.NewFakePriceCache()
	blob := testutil.NewFakeBlobWriter()

	trades := service.NewTradeService(ledger, cache, 0, slog.New(slog.DiscardHandler))
	exports := service.NewExportService(ledger, blob, slog.New(slog.DiscardHandler))

	ledger.SeedAccount("acct-1", "1000.00")
	cache.Seed("TICK", "50.00")

	_, err := trades.Buy(ctx, "acct-1", "TICK", 10)
	require.NoError(t, err)
	_, err = trades.Sell(ctx, "acct-1", "TICK", 4)
	require.NoError(t, err)

	key, err := exports.ExportTransactions(ctx, "acct-1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "statements/acct-1/"))
	require.True(t, strings.HasSuffix(key, ".csv"))
	require.Equal(t, "text/csv", blob.Types[key])

	rows, err := csv.NewReader(strings.NewReader(string(blob.Objects[key]))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus both trades")
	require.Equal(t, []string{"id", "ticker", "side", "quantity", "price", "executed_at"}, rows[0])

	// Newest first.
	require.Equal(t, "sell", rows[1][2])
	require.Equal(t, "4", rows[1][3])
	require.Equal(t, "buy", rows[2][2])
	require.Equal(t, "10", rows[2][3])
}

func TestExportTransactions_UnknownAccount(t *testing.T) {
	ledger := testutil.NewFakeLedger()
	blob := testutil.NewFakeBlobWriter()
	exports := service.NewExportService(ledger, blob, slog.New(slog.DiscardHandler))

	_, err := exports.ExportTransactions(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	require.Empty(t, blob.Objects)
}
