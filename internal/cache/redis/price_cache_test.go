package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	cacheredis "github.com/alanyoungcy/stocksim/internal/cache/redis"
	"github.com/alanyoungcy/stocksim/internal/domain"
)

func newTestClient(t *testing.T) *cacheredis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := cacheredis.New(context.Background(), cacheredis.ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPriceCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	pc := cacheredis.NewPriceCache(newTestClient(t))

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, pc.SetPrice(ctx, "AAPL", decimal.RequireFromString("187.42"), ts))

	pp, err := pc.GetPrice(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, "AAPL", pp.Ticker)
	require.True(t, pp.Price.Equal(decimal.RequireFromString("187.42")), "got %s", pp.Price)
	require.True(t, pp.UpdatedAt.Equal(ts))
}

func TestPriceCache_ReadAfterWrite(t *testing.T) {
	// A write must be visible to the very next read; the order engine relies
	// on this when a feed tick for X is immediately followed by Buy(X).
	ctx := context.Background()
	pc := cacheredis.NewPriceCache(newTestClient(t))

	require.NoError(t, pc.SetPrice(ctx, "TICK", decimal.RequireFromString("50.00"), time.Now()))
	require.NoError(t, pc.SetPrice(ctx, "TICK", decimal.RequireFromString("60.00"), time.Now()))

	pp, err := pc.GetPrice(ctx, "TICK")
	require.NoError(t, err)
	require.True(t, pp.Price.Equal(decimal.RequireFromString("60.00")), "got %s", pp.Price)
}

func TestPriceCache_MissingTicker(t *testing.T) {
	ctx := context.Background()
	pc := cacheredis.NewPriceCache(newTestClient(t))

	_, err := pc.GetPrice(ctx, "NOPE")
	require.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := pc.Exists(ctx, "NOPE")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPriceCache_Exists(t *testing.T) {
	ctx := context.Background()
	pc := cacheredis.NewPriceCache(newTestClient(t))

	require.NoError(t, pc.SetPrice(ctx, "TSLA", decimal.RequireFromString("244.10"), time.Now()))

	ok, err := pc.Exists(ctx, "TSLA")
	require.NoError(t, err)
	require.True(t, ok)
}
