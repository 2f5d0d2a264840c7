package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a simulated exchange account. The identifier is opaque and
// stable; the cash balance is an exact decimal that never goes negative.
// Accounts are created by the (external) registration flow and mutated only
// through Ledger operations.
type Account struct {
	ID        string          `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}
