package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisGuard(t *testing.T, ttl time.Duration) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGuardWithClient(client, ttl), mr
}

func TestGuard_MarkIfAbsent(t *testing.T) {
	redisGuard, _ := newRedisGuard(t, time.Hour)

	var tests = []struct {
		name  string
		guard Guard
	}{
		{name: "memory", guard: NewMemoryGuard(time.Hour)},
		{name: "redis", guard: redisGuard},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			first, err := tt.guard.MarkIfAbsent(ctx, "evt_1")
			require.NoError(t, err)
			require.True(t, first)

			second, err := tt.guard.MarkIfAbsent(ctx, "evt_1")
			require.NoError(t, err)
			require.False(t, second)

			seen, err := tt.guard.IsProcessed(ctx, "evt_1")
			require.NoError(t, err)
			require.True(t, seen)

			require.NoError(t, tt.guard.Forget(ctx, "evt_1"))
			seen, err = tt.guard.IsProcessed(ctx, "evt_1")
			require.NoError(t, err)
			require.False(t, seen)

			again, err := tt.guard.MarkIfAbsent(ctx, "evt_1")
			require.NoError(t, err)
			require.True(t, again)

			require.NoError(t, tt.guard.Ping(ctx))
		})
	}
}

func TestGuard_ConcurrentMarkWinsOnce(t *testing.T) {
	redisGuard, _ := newRedisGuard(t, time.Hour)

	for name, guard := range map[string]Guard{"memory": NewMemoryGuard(0), "redis": redisGuard} {
		guard := guard
		t.Run(name, func(t *testing.T) {
			var (
				wg   sync.WaitGroup
				wins int32
			)
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := guard.MarkIfAbsent(context.Background(), "evt_race")
					if err == nil && ok {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			wg.Wait()
			require.Equal(t, int32(1), wins)
		})
	}
}

func TestMemoryGuard_Expiry(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	ok, err := g.MarkIfAbsent(context.Background(), "evt_ttl")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(61 * time.Second)
	seen, err := g.IsProcessed(context.Background(), "evt_ttl")
	require.NoError(t, err)
	require.False(t, seen)

	ok, err = g.MarkIfAbsent(context.Background(), "evt_ttl")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisGuard_Expiry(t *testing.T) {
	g, mr := newRedisGuard(t, time.Minute)
	ctx := context.Background()

	ok, err := g.MarkIfAbsent(ctx, "evt_ttl")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists(keyPrefix+"evt_ttl"))

	mr.FastForward(2 * time.Minute)

	seen, err := g.IsProcessed(ctx, "evt_ttl")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestRedisGuard_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	g := NewRedisGuardWithClient(client, time.Minute)
	mr.Close()

	_, err = g.MarkIfAbsent(context.Background(), "evt_down")
	require.Error(t, err)
	require.Error(t, g.Ping(context.Background()))
}
