package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderMutation is the complete effect of one executed order: the balance
// after the order, the position after the order, and the transaction record
// to append. The ledger commits all three as a single atomic unit.
type OrderMutation struct {
	NewBalance  decimal.Decimal
	Position    Position
	Transaction Transaction
}

// AccountTx exposes reads against an account while the ledger holds that
// account's lock. Values observed through it cannot be changed by a
// concurrent order on the same account.
type AccountTx interface {
	Account() Account
	// Position returns ErrNotFound when the account holds no row for ticker.
	Position(ctx context.Context, ticker string) (Position, error)
}

// Ledger is the durable store of accounts, positions, and the append-only
// transaction log.
//
// ExecuteOrder and AdjustBalance serialize mutations per account: two
// concurrent calls for the same account never interleave partially, while
// calls for different accounts do not block each other.
type Ledger interface {
	CreateAccount(ctx context.Context, acct Account) error
	// GetAccount returns ErrNotFound when the account does not exist.
	GetAccount(ctx context.Context, id string) (Account, error)
	ListPositions(ctx context.Context, accountID string) ([]Position, error)
	ListTransactions(ctx context.Context, accountID string, opts ListOpts) ([]Transaction, error)

	// ExecuteOrder locks the account, invokes fn to validate and compute the
	// mutation, and commits it atomically. Errors returned by fn abort the
	// commit and are propagated unwrapped. Returns ErrNotFound when the
	// account does not exist.
	ExecuteOrder(ctx context.Context, accountID string, fn func(tx AccountTx) (OrderMutation, error)) (Transaction, error)

	// AdjustBalance atomically replaces the account balance with the value
	// returned by fn, under the same per-account lock as ExecuteOrder.
	AdjustBalance(ctx context.Context, accountID string, fn func(balance decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error)
}
