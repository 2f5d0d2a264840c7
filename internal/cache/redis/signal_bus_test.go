package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cacheredis "github.com/alanyoungcy/stocksim/internal/cache/redis"
	"github.com/alanyoungcy/stocksim/internal/domain"
)

func TestSignalBus_PublishSubscribe(t *testing.T) {
	client := newTestClient(t)
	bus := cacheredis.NewSignalBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, domain.PriceChannel("AAPL"))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.PriceChannel("AAPL"), []byte("AAPL:187.42")))

	select {
	case payload := <-ch:
		require.Equal(t, "AAPL:187.42", string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published payload")
	}
}

func TestSignalBus_SubscribeClosesOnCancel(t *testing.T) {
	client := newTestClient(t)
	bus := cacheredis.NewSignalBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "price_update:TSLA")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should be closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}
