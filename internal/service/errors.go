package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/helden/internal/cache"
	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/inventory"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/payment"
	"github.com/fjod/helden/internal/repository"
)

// Kind is the failure class an error maps to at the API boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindStateConflict
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindExternal:
		return "external"
	default:
		return "internal"
	}
}

var (
	ErrEmptyCart               = errors.New("cart is empty, nothing to checkout")
	ErrInvalidSize             = errors.New("size is not available for this product")
	ErrOutOfStock              = errors.New("requested quantity exceeds available stock")
	ErrLineLimitExceeded       = fmt.Errorf("a cart line may hold at most %d units", domain.MaxLineQuantity)
	ErrInvalidQuantity         = errors.New("quantity must be at least 1")
	ErrItemNotFound            = errors.New("cart item not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrAddressNotFound         = errors.New("address not found")
	ErrCouponNotFound          = errors.New("coupon not found")
	ErrOfferNotFound           = errors.New("offer not found")
	ErrInvalidCoupon           = errors.New("invalid coupon")
	ErrInvalidOffer            = errors.New("invalid offer")
	ErrCouponExists            = errors.New("coupon code already exists")
	ErrInvalidStatus           = errors.New("unknown order status")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInvalidPaymentSignature = errors.New("payment signature verification failed")
	ErrGatewayOrderMismatch    = errors.New("gateway order does not belong to this checkout")
	ErrPaymentAmountMismatch   = errors.New("order total differs from the amount charged, initiate payment again")
	ErrConcurrentUpdate        = errors.New("order was modified concurrently, retry")
	ErrRequestInFlight         = errors.New("a request with this idempotency key is still being processed")
)

// InsufficientStockError names the line that cannot be covered.
type InsufficientStockError struct {
	ProductID string
	Size      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s: requested %d, available %d",
		e.ProductID, e.Size, e.Requested, e.Available)
}

type IllegalTransitionError struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order in status %s cannot move to %s", e.From, e.To)
}

// CouponError explains why a coupon cannot be applied to an order.
type CouponError struct {
	Code   string
	Reason string
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %s: %s", e.Code, e.Reason)
}

func (e *CouponError) Unwrap() error {
	return ErrInvalidCoupon
}

// KindOf classifies err for the transport layer.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var (
		stockErr  *InsufficientStockError
		transErr  *IllegalTransitionError
		couponErr *CouponError
	)
	switch {
	case errors.As(err, &stockErr), errors.As(err, &transErr):
		return KindStateConflict
	case errors.As(err, &couponErr):
		return KindValidation
	}

	switch {
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidSize),
		errors.Is(err, ErrOutOfStock),
		errors.Is(err, ErrLineLimitExceeded),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidCoupon),
		errors.Is(err, ErrInvalidOffer),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidPaymentSignature),
		errors.Is(err, ErrGatewayOrderMismatch),
		errors.Is(err, domain.ErrPaymentIDRequired),
		errors.Is(err, domain.ErrUnknownPaymentMethod):
		return KindValidation
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrAddressNotFound),
		errors.Is(err, ErrCouponNotFound),
		errors.Is(err, ErrOfferNotFound):
		return KindNotFound
	case errors.Is(err, ErrConcurrentUpdate),
		errors.Is(err, ErrRequestInFlight),
		errors.Is(err, ErrPaymentAmountMismatch),
		errors.Is(err, ErrCouponExists):
		return KindStateConflict
	case errors.Is(err, payment.ErrPaymentGateway):
		return KindExternal
	}
	return KindInternal
}

// shortage converts a ledger shortage into the service error.
func shortage(err error) error {
	var se *inventory.ShortageError
	if errors.As(err, &se) {
		return &InsufficientStockError{ProductID: se.ProductID, Size: se.Size, Requested: se.Requested, Available: se.Available}
	}
	return err
}

// orderNotFound maps the repository miss onto the service sentinel.
func orderNotFound(err error) error {
	if errors.Is(err, repository.ErrOrderNotFound) {
		return ErrOrderNotFound
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		return ErrConcurrentUpdate
	}
	return err
}

// idempotent runs fn once per (scope, key). A replay returns the first result.
func idempotent(ctx context.Context, store cache.IdempotencyStore, scope, key string, fn func() (string, error)) (string, error) {
	if store == nil || key == "" {
		return fn()
	}

	claimed, err := store.Claim(ctx, scope, key)
	if err != nil {
		return "", fmt.Errorf("claim idempotency key: %w", err)
	}
	if !claimed {
		prev, err := store.Recall(ctx, scope, key)
		if errors.Is(err, cache.ErrInFlight) {
			return "", ErrRequestInFlight
		}
		if err != nil {
			return "", fmt.Errorf("recall idempotency key: %w", err)
		}
		return prev, nil
	}

	result, err := fn()
	if err != nil {
		_ = store.Forget(context.WithoutCancel(ctx), scope, key)
		return "", err
	}
	if err := store.Remember(context.WithoutCancel(ctx), scope, key, result); err != nil {
		logging.FromCtx(ctx).Warn("failed to remember idempotency result", "scope", scope, "error", err)
	}
	return result, nil
}
