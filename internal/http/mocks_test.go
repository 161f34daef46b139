package http

import (
	"context"
	"sync"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/service"
)

type mockCart struct {
	summary *service.CartSummary
	err     error

	mu       sync.RWMutex
	added    []string
	quantity map[string]int
}

func (m *mockCart) GetSummary(context.Context, string) (*service.CartSummary, error) {
	return m.summary, m.err
}

func (m *mockCart) AddItem(_ context.Context, userID, productID, size string, qty int) (*domain.CartItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, userID+"/"+productID+"/"+size)
	return &domain.CartItem{LineID: "line-1", ProductID: productID, Size: size, Quantity: qty}, nil
}

func (m *mockCart) UpdateQuantity(_ context.Context, _, lineID string, qty int) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quantity == nil {
		m.quantity = make(map[string]int)
	}
	m.quantity[lineID] = qty
	return nil
}

func (m *mockCart) RemoveItem(context.Context, string, string) error {
	return m.err
}

type mockCheckout struct {
	draft  *domain.Order
	view   *service.CheckoutView
	check  *service.CouponCheck
	intent *service.PaymentIntent
	err    error

	mu           sync.RWMutex
	confirmed    []service.ConfirmRequest
	intentCoupon string
}

func (m *mockCheckout) CreateDraft(context.Context, string) (*domain.Order, error) {
	return m.draft, m.err
}

func (m *mockCheckout) GetCheckout(context.Context, string, string) (*service.CheckoutView, error) {
	return m.view, m.err
}

func (m *mockCheckout) ValidateCoupon(context.Context, string, string, string) (*service.CouponCheck, error) {
	return m.check, m.err
}

func (m *mockCheckout) Confirm(_ context.Context, req service.ConfirmRequest) (*domain.Order, error) {
	m.mu.Lock()
	m.confirmed = append(m.confirmed, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Order{ID: req.DraftID, UserID: req.UserID, Status: domain.OrderStatusPending}, nil
}

func (m *mockCheckout) InitiatePayment(_ context.Context, _, _, couponCode string) (*service.PaymentIntent, error) {
	m.mu.Lock()
	m.intentCoupon = couponCode
	m.mu.Unlock()
	return m.intent, m.err
}

func (m *mockCheckout) lastConfirm() (service.ConfirmRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.confirmed) == 0 {
		return service.ConfirmRequest{}, false
	}
	return m.confirmed[len(m.confirmed)-1], true
}

type mockOrders struct {
	order *domain.Order
	page  *service.OrderPage
	err   error

	mu        sync.RWMutex
	cancels   []service.CancelRequest
	reasons   []string
	pageArgs  [2]int
	statusArg StatusRequest
}

func (m *mockOrders) Get(context.Context, string, string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *mockOrders) List(_ context.Context, _ string, page, limit int) (*service.OrderPage, error) {
	m.mu.Lock()
	m.pageArgs = [2]int{page, limit}
	m.mu.Unlock()
	return m.page, m.err
}

func (m *mockOrders) Cancel(_ context.Context, req service.CancelRequest) (*domain.Order, error) {
	m.mu.Lock()
	m.cancels = append(m.cancels, req)
	m.mu.Unlock()
	return m.order, m.err
}

func (m *mockOrders) RequestReturn(_ context.Context, _, _, reason string) (*domain.Order, error) {
	m.mu.Lock()
	m.reasons = append(m.reasons, reason)
	m.mu.Unlock()
	return m.order, m.err
}

func (m *mockOrders) ListAll(_ context.Context, page, limit int) (*service.OrderPage, error) {
	m.mu.Lock()
	m.pageArgs = [2]int{page, limit}
	m.mu.Unlock()
	return m.page, m.err
}

func (m *mockOrders) Accept(context.Context, string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *mockOrders) Reject(context.Context, string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *mockOrders) UpdateStatus(_ context.Context, _ string, status domain.OrderStatus, paymentStatus domain.PaymentStatus) (*domain.Order, error) {
	m.mu.Lock()
	m.statusArg = StatusRequest{Status: status, PaymentStatus: paymentStatus}
	m.mu.Unlock()
	return m.order, m.err
}

type mockWallet struct {
	page *domain.WalletPage
	err  error
}

func (m *mockWallet) Get(context.Context, string, int, int) (*domain.WalletPage, error) {
	return m.page, m.err
}

type mockCoupons struct {
	coupons []*domain.Coupon
	err     error
}

func (m *mockCoupons) List(context.Context) ([]*domain.Coupon, error) {
	return m.coupons, m.err
}

func (m *mockCoupons) Create(_ context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c.ID = "coupon-1"
	return c, nil
}

func (m *mockCoupons) Update(_ context.Context, id string, c *domain.Coupon) (*domain.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c.ID = id
	return c, nil
}

func (m *mockCoupons) Delete(context.Context, string) error {
	return m.err
}

type mockOffers struct {
	offers []*domain.Offer
	err    error
}

func (m *mockOffers) List(context.Context) ([]*domain.Offer, error) {
	return m.offers, m.err
}

func (m *mockOffers) Create(_ context.Context, o *domain.Offer) (*domain.Offer, error) {
	if m.err != nil {
		return nil, m.err
	}
	o.ID = "offer-1"
	return o, nil
}

func (m *mockOffers) Delete(context.Context, string) error {
	return m.err
}
