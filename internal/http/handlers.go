package http

import (
	"context"
	"time"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/service"
)

type CartAPI interface {
	GetSummary(ctx context.Context, userID string) (*service.CartSummary, error)
	AddItem(ctx context.Context, userID, productID, size string, qty int) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, lineID string, qty int) error
	RemoveItem(ctx context.Context, userID, lineID string) error
}

type CheckoutAPI interface {
	CreateDraft(ctx context.Context, userID string) (*domain.Order, error)
	GetCheckout(ctx context.Context, userID, draftID string) (*service.CheckoutView, error)
	ValidateCoupon(ctx context.Context, userID, draftID, code string) (*service.CouponCheck, error)
	Confirm(ctx context.Context, req service.ConfirmRequest) (*domain.Order, error)
	InitiatePayment(ctx context.Context, userID, draftID, couponCode string) (*service.PaymentIntent, error)
}

type OrderAPI interface {
	Get(ctx context.Context, userID, orderID string) (*domain.Order, error)
	List(ctx context.Context, userID string, page, limit int) (*service.OrderPage, error)
	Cancel(ctx context.Context, req service.CancelRequest) (*domain.Order, error)
	RequestReturn(ctx context.Context, userID, orderID, reason string) (*domain.Order, error)
	ListAll(ctx context.Context, page, limit int) (*service.OrderPage, error)
	Accept(ctx context.Context, orderID string) (*domain.Order, error)
	Reject(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentStatus domain.PaymentStatus) (*domain.Order, error)
}

type WalletAPI interface {
	Get(ctx context.Context, userID string, page, limit int) (*domain.WalletPage, error)
}

type CouponAPI interface {
	List(ctx context.Context) ([]*domain.Coupon, error)
	Create(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error)
	Update(ctx context.Context, id string, c *domain.Coupon) (*domain.Coupon, error)
	Delete(ctx context.Context, id string) error
}

type OfferAPI interface {
	List(ctx context.Context) ([]*domain.Offer, error)
	Create(ctx context.Context, o *domain.Offer) (*domain.Offer, error)
	Delete(ctx context.Context, id string) error
}

const defaultTimeout = 10 * time.Second

// Handlers holds every service the routes call into.
type Handlers struct {
	Cart     CartAPI
	Checkout CheckoutAPI
	Orders   OrderAPI
	Wallet   WalletAPI
	Coupons  CouponAPI
	Offers   OfferAPI
	Timeout  time.Duration
}

func (h *Handlers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
