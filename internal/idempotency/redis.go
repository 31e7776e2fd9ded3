package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "webhook:event:"

// RedisGuard shares marks between instances. SET NX with an expiry is the
// atomic check-and-set.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisGuard dials lazily; call Ping to check the connection.
func NewRedisGuard(addr, password string, db int, ttl time.Duration) *RedisGuard {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisGuardWithClient(rdb, ttl)
}

func NewRedisGuardWithClient(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (r *RedisGuard) MarkIfAbsent(ctx context.Context, id string) (bool, error) {
	set, err := r.client.SetNX(ctx, keyPrefix+id, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX error: %w", err)
	}
	return set, nil
}

func (r *RedisGuard) IsProcessed(ctx context.Context, id string) (bool, error) {
	err := r.client.Get(ctx, keyPrefix+id).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis GET error: %w", err)
	}
	return true, nil
}

func (r *RedisGuard) Forget(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis DEL error: %w", err)
	}
	return nil
}

func (r *RedisGuard) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisGuard) Close() error { return r.client.Close() }
