package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache provides fast access to the latest price per ticker.
// Consistency is last-write-wins; readers may observe a price up to one feed
// tick stale.
type PriceCache interface {
	SetPrice(ctx context.Context, ticker string, price decimal.Decimal, ts time.Time) error
	// GetPrice returns ErrNotFound when the ticker has never been priced.
	GetPrice(ctx context.Context, ticker string) (PricePoint, error)
	Exists(ctx context.Context, ticker string) (bool, error)
}

// SignalBus provides ephemeral pub/sub messaging across processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads. The subscription is torn
	// down and the channel closed when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
