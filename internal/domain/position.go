package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an account's holding in a single ticker. AvgCost is the
// quantity-weighted average purchase price of the units still held; it is
// recomputed on every buy and left unchanged on sells. A position sold down
// to zero keeps its row (quantity pinned at 0) so transaction history stays
// linked.
type Position struct {
	AccountID string          `json:"account_id"`
	Ticker    string          `json:"ticker"`
	Quantity  int64           `json:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	UpdatedAt time.Time       `json:"updated_at"`
}
