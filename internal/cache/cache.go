package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/helden/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// IdempotencyStore remembers the outcome of a keyed request.
type IdempotencyStore interface {
	// Claim marks key as in flight. It returns false when the key was claimed before.
	Claim(ctx context.Context, scope, key string) (bool, error)
	// Remember stores the result for a claimed key.
	Remember(ctx context.Context, scope, key, result string) error
	// Recall returns the stored result; ErrInFlight while the first request is still running.
	Recall(ctx context.Context, scope, key string) (string, error)
	// Forget drops a claim so the request may be retried.
	Forget(ctx context.Context, scope, key string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrInFlight  = errors.New("request with this idempotency key is still in progress")
)

const defaultIdempotencyTTL = 24 * time.Hour
