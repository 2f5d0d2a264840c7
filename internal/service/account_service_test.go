package service_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stocksim/internal/domain"
	"github.com/alanyoungcy/stocksim/internal/service"
	"github.com/alanyoungcy/stocksim/internal/testutil"
)

func newAccountFixture() (*service.AccountService, *testutil.FakeLedger) {
	ledger := testutil.NewFakeLedger()
	svc := service.NewAccountService(ledger, slog.New(slog.DiscardHandler))
	return svc, ledger
}

func TestBalanceDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newAccountFixture()
	ledger.SeedAccount("acct-1", "100.00")

	balance, err := svc.Balance(ctx, "acct-1")
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("100.00")))

	balance, err = svc.Deposit(ctx, "acct-1", dec("25.50"))
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("125.50")))

	balance, err = svc.Withdraw(ctx, "acct-1", dec("125.50"))
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}

func TestDepositWithdraw_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newAccountFixture()
	ledger.SeedAccount("acct-1", "10.00")

	_, err := svc.Deposit(ctx, "acct-1", dec("0"))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Withdraw(ctx, "acct-1", dec("-5"))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Withdraw(ctx, "acct-1", dec("10.01"))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = svc.Balance(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.Deposit(ctx, "ghost", dec("1"))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	balance, err := svc.Balance(ctx, "acct-1")
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("10.00")), "rejected adjustments must not touch the balance")
}

func TestHoldings_FiltersClosedPositions(t *testing.T) {
	ctx := context.Background()
	ledger := testutil.NewFakeLedger()
	cache := testutil.NewFakePriceCache()
	accounts := service.NewAccountService(ledger, slog.New(slog.DiscardHandler))
	trades := service.NewTradeService(ledger, cache, 0, slog.New(slog.DiscardHandler))

	ledger.SeedAccount("acct-1", "1000.00")
	cache.Seed("AAPL", "10.00")
	cache.Seed("MSFT", "20.00")

	_, err := trades.Buy(ctx, "acct-1", "AAPL", 3)
	require.NoError(t, err)
	_, err = trades.Buy(ctx, "acct-1", "MSFT", 2)
	require.NoError(t, err)
	_, err = trades.Sell(ctx, "acct-1", "MSFT", 2)
	require.NoError(t, err)

	holdings, err := accounts.Holdings(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, holdings, 1, "sold-out positions are hidden")
	require.Equal(t, "AAPL", holdings[0].Ticker)
	require.Equal(t, int64(3), holdings[0].Quantity)

	_, err = accounts.Holdings(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
