package service_test

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stocksim/internal/domain"
	"github.com/alanyoungcy/stocksim/internal/service"
	"github.com/alanyoungcy/stocksim/internal/testutil"
)

func newTradeFixture() (*service.TradeService, *testutil.FakeLedger, *testutil.FakePriceCache) {
	ledger := testutil.NewFakeLedger()
	cache := testutil.NewFakePriceCache()
	svc := service.NewTradeService(ledger, cache, 0, slog.New(slog.DiscardHandler))
	return svc, ledger, cache
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuyThenSell_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, ledger, cache := newTradeFixture()

	ledger.SeedAccount("acct-1", "1000.00")
	cache.Seed("TICK", "50.00")

	txn, err := svc.Buy(ctx, "acct-1", "TICK", 10)
	require.NoError(t, err)
	require.Equal(t, domain.SideBuy, txn.Side)
	require.Equal(t, int64(10), txn.Quantity)
	require.True(t, txn.Price.Equal(dec("50.00")))
	require.NotEmpty(t, txn.ID)

	acct, positions, _ := ledger.Snapshot("acct-1")
	require.True(t, acct.Balance.Equal(dec("500.00")), "balance %s", acct.Balance)
	require.Equal(t, int64(10), positions["TICK"].Quantity)
	require.True(t, positions["TICK"].AvgCost.Equal(dec("50.00")))

	cache.Seed("TICK", "60.00")

	txn, err = svc.Sell(ctx, "acct-1", "TICK", 4)
	require.NoError(t, err)
	require.Equal(t, domain.SideSell, txn.Side)
	require.True(t, txn.Price.Equal(dec("60.00")))

	acct, positions, txns := ledger.Snapshot("acct-1")
	require.True(t, acct.Balance.Equal(dec("740.00")), "balance %s", acct.Balance)
	require.Equal(t, int64(6), positions["TICK"].Quantity)
	require.True(t, positions["TICK"].AvgCost.Equal(dec("50.00")), "avg cost unchanged on sell")
	require.Len(t, txns, 2)
}

func TestBuy_TickerNormalized(t *testing.T) {
	ctx := context.Background()
	svc, ledger, cache := newTradeFixture()

	ledger.SeedAccount("acct-1", "100.00")
	cache.Seed("AAPL", "10.00")

	txn, err := svc.Buy(ctx, "acct-1", "  aapl ", 1)
	require.NoError(t, err)
	require.Equal(t, "AAPL", txn.Ticker)
}

func TestBuy_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, ledger, cache := newTradeFixture()

	ledger.SeedAccount("acct-1", "100.00")
	cache.Seed("TICK", "10.00")

	tests := []struct {
		name     string
		account  string
		ticker   string
		quantity int64
		want     error
	}{
		{"zero quantity", "acct-1", "TICK", 0, domain.ErrInvalidQuantity},
		{"negative quantity", "acct-1", "TICK", -5, domain.ErrInvalidQuantity},
		{"over bound", "acct-1", "TICK", 10_001, domain.ErrInvalidQuantity},
		{"empty ticker", "acct-1", "  ", 1, domain.ErrInvalidTicker},
		{"overlong ticker", "acct-1", "ABCDEFGHIJK", 1, domain.ErrInvalidTicker},
		{"unknown ticker", "acct-1", "NOPE", 1, domain.ErrPriceUnavailable},
		{"unknown account", "ghost", "TICK", 1, domain.ErrAccountNotFound},
		{"unaffordable", "acct-1", "TICK", 11, domain.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, beforePos, beforeTxns := ledger.Snapshot("acct-1")

			_, err := svc.Buy(ctx, tt.account, tt.ticker, tt.quantity)
			require.ErrorIs(t, err, tt.want)

			after, afterPos, afterTxns := ledger.Snapshot("acct-1")
			require.True(t, before.Balance.Equal(after.Balance), "rejected buy must not change balance")
			require.Equal(t, beforePos, afterPos, "rejected buy must not change positions")
			require.Len(t, afterTxns, len(beforeTxns), "rejected buy must not append transactions")
		})
	}
}

func TestSell_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, ledger, cache := newTradeFixture()

	ledger.SeedAccount("acct-1", "1000.00")
	cache.Seed("TICK", "10.00")

	_, err := svc.Buy(ctx, "acct-1", "TICK", 5)
	require.NoError(t, err)

	before, beforePos, beforeTxns := ledger.Snapshot("acct-1")

	// More than held.
	_, err = svc.Sell(ctx, "acct-1", "TICK", 6)
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)

	// No position at all.
	cache.Seed("MSFT", "100.00")
	_, err = svc.Sell(ctx, "acct-1", "MSFT", 1)
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)

	_, err = svc.Sell(ctx, "acct-1", "TICK", 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	after, afterPos, afterTxns := ledger.Snapshot("acct-1")
	require.True(t, before.Balance.Equal(after.Balance))
	require.Equal(t, beforePos, afterPos)
	require.Len(t, afterTxns, len(beforeTxns))
}

func TestSell_ToZeroKeepsPositionRow(t *testing.T) {
	ctx := context.Background()
	svc, ledger, cache := newTradeFixture()

	ledger.SeedAccount("acct-1", "100.00")
	cache.Seed("TICK", "10.00")

	_, err := svc.Buy(ctx, "acct-1", "TICK", 5)
	require.NoError(t, err)
	_, err = svc.Sell(ctx, "acct-1", "TICK", 5)
	require.NoError(t, err)

	_, positions, _ := ledger.Snapshot("acct-1")
	pos, ok := positions["TICK"]
	require.True(t, ok, "fully sold position keeps its row")
	require.Equal(t, int64(0), pos.Quantity)
	require.True(t, pos.AvgCost.Equal(dec("10.00")), "avg cost survives a full sell")
}

func TestBuy_AvgCostIsWeightedMean(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	tolerance := decimal.New(1, -10)

	for round := 0; round < 20; round++ {
		svc, ledger, cache := newTradeFixture()
		ledger.SeedAccount("acct-1", "100000000.00")

		totalCost := decimal.Zero
		totalQty := int64(0)

		buys := 2 + rng.Intn(8)
		for i := 0; i < buys; i++ {
			qty := int64(1 + rng.Intn(500))
			price := decimal.NewFromInt(int64(1 + rng.Intn(10_000))).Div(decimal.NewFromInt(100))
			cache.Seed("TICK", price.String())

			_, err := svc.Buy(ctx, "acct-1", "TICK", qty)
			require.NoError(t, err)

			totalCost = totalCost.Add(price.Mul(decimal.NewFromInt(qty)))
			totalQty += qty
		}

		_, positions, _ := ledger.Snapshot("acct-1")
		pos := positions["TICK"]
		require.Equal(t, totalQty, pos.Quantity)

		want := totalCost.Div(decimal.NewFromInt(totalQty))
		diff := want.Sub(pos.AvgCost).Abs()
		require.True(t, diff.LessThan(tolerance),
			"round %d: avg cost %s, weighted mean %s", round, pos.AvgCost, want)
	}
}

func TestBuy_ConcurrentOrdersAdmitAffordablePrefix(t *testing.T) {
	ctx := context.Background()
	svc, ledger, cache := newTradeFixture()

	// Each order costs 10.00; the balance affords exactly 5 of the 10.
	ledger.SeedAccount("acct-1", "50.00")
	cache.Seed("TICK", "10.00")

	const orders = 10
	errs := make([]error, orders)

	var wg sync.WaitGroup
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Buy(ctx, "acct-1", "TICK", 1)
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, domain.ErrInsufficientBalance)
			rejected++
		}
	}
	require.Equal(t, 5, succeeded)
	require.Equal(t, 5, rejected)

	acct, positions, txns := ledger.Snapshot("acct-1")
	require.False(t, acct.Balance.IsNegative(), "balance must never go negative")
	require.True(t, acct.Balance.Equal(dec("0.00")), "balance %s", acct.Balance)
	require.Equal(t, int64(5), positions["TICK"].Quantity)
	require.Len(t, txns, 5)
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	svc, ledger, cache := newTradeFixture()

	ledger.SeedAccount("acct-1", "1000.00")
	cache.Seed("TICK", "10.00")

	for i := 0; i < 3; i++ {
		_, err := svc.Buy(ctx, "acct-1", "TICK", 1)
		require.NoError(t, err)
	}

	txns, err := svc.Transactions(ctx, "acct-1", domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, txns, 2)

	_, err = svc.Transactions(ctx, "ghost", domain.ListOpts{})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
