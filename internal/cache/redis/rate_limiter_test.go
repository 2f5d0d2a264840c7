package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cacheredis "github.com/alanyoungcy/stocksim/internal/cache/redis"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	rl := cacheredis.NewRateLimiter(newTestClient(t))

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "client-a", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := rl.Allow(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "request over the limit should be denied")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	rl := cacheredis.NewRateLimiter(newTestClient(t))

	ok, err := rl.Allow(ctx, "client-a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = rl.Allow(ctx, "client-a", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// Exhausting one key must not affect another.
	ok, err = rl.Allow(ctx, "client-b", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
