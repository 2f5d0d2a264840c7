package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each ticker's
// last price lives at key "price:{TICKER}" with fields "price" (decimal
// string) and "ts" (Unix nanosecond timestamp). Writes overwrite in place;
// keys are never deleted, so a key's absence means the ticker has never been
// priced and is treated as invalid by callers.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(ticker string) string {
	return "price:" + ticker
}

// SetPrice stores the latest price and timestamp for a ticker. The hash is
// written in one HSET, so concurrent readers never observe a partial update.
func (pc *PriceCache) SetPrice(ctx context.Context, ticker string, price decimal.Decimal, ts time.Time) error {
	key := priceKey(ticker)
	fields := map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", ticker, err)
	}
	return nil
}

// GetPrice retrieves the latest price point for a ticker. It returns
// domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, ticker string) (domain.PricePoint, error) {
	key := priceKey(ticker)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("redis: get price %s: %w", ticker, err)
	}
	if len(vals) == 0 {
		return domain.PricePoint{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return domain.PricePoint{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("redis: parse price %s: %w", ticker, err)
	}

	pp := domain.PricePoint{
		Ticker: ticker,
		Price:  price,
	}
	if tsStr, ok := vals["ts"]; ok {
		tsNano, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return domain.PricePoint{}, fmt.Errorf("redis: parse ts %s: %w", ticker, err)
		}
		pp.UpdatedAt = time.Unix(0, tsNano)
	}

	return pp, nil
}

// Exists reports whether the ticker has ever been priced.
func (pc *PriceCache) Exists(ctx context.Context, ticker string) (bool, error) {
	n, err := pc.rdb.Exists(ctx, priceKey(ticker)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %s: %w", ticker, err)
	}
	return n > 0, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
