package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const inFlightMarker = "-"

type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &RedisIdempotency{client: client, ttl: ttl}
}

func (r *RedisIdempotency) Claim(ctx context.Context, scope, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKey(scope, key), inFlightMarker, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (r *RedisIdempotency) Remember(ctx context.Context, scope, key, result string) error {
	if err := r.client.Set(ctx, idempotencyKey(scope, key), result, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisIdempotency) Recall(ctx context.Context, scope, key string) (string, error) {
	v, err := r.client.Get(ctx, idempotencyKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	if v == inFlightMarker {
		return "", ErrInFlight
	}
	return v, nil
}

func (r *RedisIdempotency) Forget(ctx context.Context, scope, key string) error {
	if err := r.client.Del(ctx, idempotencyKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("idemp:%s:%s", scope, key)
}
