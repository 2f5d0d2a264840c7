package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is the last known price for a ticker. The cache overwrites it in
// place on every feed tick; only the most recent value is retained.
type PricePoint struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PriceUpdate is a single inbound event from the upstream feed.
type PriceUpdate struct {
	Ticker string
	Price  decimal.Decimal
}

// PriceChannel returns the pub/sub channel carrying updates for a ticker.
func PriceChannel(ticker string) string {
	return "price_update:" + ticker
}
