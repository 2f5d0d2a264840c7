package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// AccountService exposes cash balance operations and the holdings view.
// Deposits and withdrawals run under the same per-account lock as orders, so
// a withdrawal cannot race an order into a negative balance.
type AccountService struct {
	ledger domain.Ledger
	logger *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(ledger domain.Ledger, logger *slog.Logger) *AccountService {
	return &AccountService{
		ledger: ledger,
		logger: logger.With(slog.String("component", "account_service")),
	}
}

// Balance returns the account's current cash balance.
func (s *AccountService) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	acct, err := s.ledger.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, s.mapErr(ctx, "balance", err)
	}
	return acct.Balance, nil
}

// Deposit credits a positive amount and returns the new balance.
func (s *AccountService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	newBalance, err := s.ledger.AdjustBalance(ctx, accountID, func(balance decimal.Decimal) (decimal.Decimal, error) {
		return balance.Add(amount), nil
	})
	if err != nil {
		return decimal.Zero, s.mapErr(ctx, "deposit", err)
	}
	return newBalance, nil
}

// Withdraw debits a positive amount and returns the new balance. The balance
// never goes negative.
func (s *AccountService) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	newBalance, err := s.ledger.AdjustBalance(ctx, accountID, func(balance decimal.Decimal) (decimal.Decimal, error) {
		next := balance.Sub(amount)
		if next.IsNegative() {
			return decimal.Zero, domain.ErrInsufficientBalance
		}
		return next, nil
	})
	if err != nil {
		return decimal.Zero, s.mapErr(ctx, "withdraw", err)
	}
	return newBalance, nil
}

// Holdings returns the account's open positions. Rows sold down to zero stay
// in storage for history linkage but are filtered from this view.
func (s *AccountService) Holdings(ctx context.Context, accountID string) ([]domain.Position, error) {
	if _, err := s.ledger.GetAccount(ctx, accountID); err != nil {
		return nil, s.mapErr(ctx, "holdings", err)
	}

	all, err := s.ledger.ListPositions(ctx, accountID)
	if err != nil {
		return nil, s.mapErr(ctx, "holdings", err)
	}

	open := make([]domain.Position, 0, len(all))
	for _, p := range all {
		if p.Quantity > 0 {
			open = append(open, p)
		}
	}
	return open, nil
}

func (s *AccountService) mapErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrAccountNotFound
	case errors.Is(err, domain.ErrInsufficientBalance):
		return err
	default:
		s.logger.ErrorContext(ctx, "ledger operation failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return domain.ErrStoreUnavailable
	}
}
