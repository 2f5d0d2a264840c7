package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an executed order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Transaction is one executed order. Records are append-only: they are
// written atomically with the balance and position change they represent and
// are never mutated or deleted afterwards.
type Transaction struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Ticker    string          `json:"ticker"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Side      Side            `json:"side"`
	CreatedAt time.Time       `json:"created_at"`
}
