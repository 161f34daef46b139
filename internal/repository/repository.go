package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/helden/internal/domain"
)

const (
	cartsCollection    = "carts"
	productsCollection = "products"
	ordersCollection   = "orders"
	couponsCollection  = "coupons"
	offersCollection   = "offers"
	usersCollection    = "users"
	outboxCollection   = "outbox_events"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrVersionConflict = errors.New("order was modified concurrently")
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponExists    = errors.New("coupon code already exists")
	ErrCouponExhausted = errors.New("coupon is no longer redeemable")
	ErrOfferNotFound   = errors.New("offer not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrEventNotFound   = errors.New("outbox event not found")
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddItem sets the quantity of the (product, size) line, or appends item when no such line exists.
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID, lineID string, quantity int) error
	RemoveItem(ctx context.Context, userID, lineID string) error
	DeleteCart(ctx context.Context, userID string) error
}

type ProductRepository interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	ListByCategory(ctx context.Context, categoryID string) ([]*domain.Product, error)
	// SetOffer stores the offer price and remembers prev under the offer id.
	SetOffer(ctx context.Context, productID, offerID string, offerPrice, prev float64) error
	// ClearOffer restores the offer price remembered for offerID.
	ClearOffer(ctx context.Context, productID, offerID string) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	// Save replaces the order if its stored version still equals expectedVersion.
	// On success order.Version holds the new version.
	Save(ctx context.Context, order *domain.Order, expectedVersion int64) error
	ListByUser(ctx context.Context, userID string, page, limit int) ([]*domain.Order, int64, error)
	List(ctx context.Context, page, limit int) ([]*domain.Order, int64, error)
	DeleteExpiredDrafts(ctx context.Context, now time.Time) ([]*domain.Order, error)
}

type CouponRepository interface {
	Create(ctx context.Context, coupon *domain.Coupon) error
	Get(ctx context.Context, id string) (*domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	List(ctx context.Context) ([]*domain.Coupon, error)
	ListUsable(ctx context.Context, now time.Time) ([]*domain.Coupon, error)
	Update(ctx context.Context, coupon *domain.Coupon) error
	Delete(ctx context.Context, id string) error
	// Redeem takes one use of the coupon if it is still usable at now.
	Redeem(ctx context.Context, id string, now time.Time) error
	// Release gives a use back after a failed confirmation.
	Release(ctx context.Context, id string) error
}

type OfferRepository interface {
	Create(ctx context.Context, offer *domain.Offer) error
	Get(ctx context.Context, id string) (*domain.Offer, error)
	List(ctx context.Context) ([]*domain.Offer, error)
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

// OutboxEvent is a pending message for the order-events topic.
type OutboxEvent struct {
	ID          string    `bson:"_id"`
	AggregateID string    `bson:"aggregate_id"`
	EventType   string    `bson:"event_type"`
	Payload     []byte    `bson:"payload"`
	Processed   bool      `bson:"processed"`
	CreatedAt   time.Time `bson:"created_at"`
	ProcessedAt time.Time `bson:"processed_at,omitempty"`
}

type OutboxRepository interface {
	Add(ctx context.Context, event *OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}
