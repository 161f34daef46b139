package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fjod/helden/internal/domain"
	"github.com/redis/go-redis/v9"
)

// cartSchema is bumped whenever the cached cart layout changes; entries written
// under another schema read as misses.
const cartSchema = 1

// emptyCartTTL bounds how long an empty cart is cached. Carts are emptied by
// checkout and usually refilled soon after.
const emptyCartTTL = time.Minute

type cachedCart struct {
	Schema int          `json:"schema"`
	Cart   *domain.Cart `json:"cart"`
}

// RedisCartCache keeps cart snapshots in Redis, keyed by user.
type RedisCartCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
	jitter  func(limit time.Duration) time.Duration
}

func NewRedisCache(client redis.Cmdable, baseTTL time.Duration) *RedisCartCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCartCache{client: client, baseTTL: baseTTL, jitter: randomJitter}
}

// Get returns the cached cart. Entries from another schema or that no longer
// decode are dropped and reported as a miss so the caller reloads from Mongo.
func (r *RedisCartCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var entry cachedCart
	if err := json.Unmarshal(data, &entry); err != nil || entry.Schema != cartSchema || entry.Cart == nil {
		_ = r.client.Del(ctx, cartKey(userID)).Err()
		return nil, ErrCacheMiss
	}
	return entry.Cart, nil
}

func (r *RedisCartCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	data, err := json.Marshal(cachedCart{Schema: cartSchema, Cart: cart})
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(userID), data, r.ttlFor(cart)).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (r *RedisCartCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}
	return nil
}

// ttlFor spreads expiry by up to a fifth of the base TTL so carts cached in
// the same burst do not expire together.
func (r *RedisCartCache) ttlFor(cart *domain.Cart) time.Duration {
	if cart.IsEmpty() {
		return min(emptyCartTTL, r.baseTTL)
	}
	return r.baseTTL + r.jitter(r.baseTTL/5)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

func cartKey(userID string) string {
	return fmt.Sprintf("helden:cart:%s", userID)
}

var _ CartCache = (*RedisCartCache)(nil)
