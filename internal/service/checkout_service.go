package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/helden/internal/cache"
	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/inventory"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/payment"
	"github.com/fjod/helden/internal/pricing"
	"github.com/fjod/helden/internal/repository"
	"github.com/google/uuid"
)

type ReservationPolicy string

const (
	// ReservationNone leaves stock untouched until confirmation.
	ReservationNone ReservationPolicy = "none"
	// ReservationSoft holds a draft's stock until it expires or is confirmed.
	ReservationSoft ReservationPolicy = "soft"
)

type CheckoutConfig struct {
	DraftTTL         time.Duration
	DeliveryDays     int
	Policy           ReservationPolicy
	RequireSignature bool
}

type CheckoutDeps struct {
	Orders   repository.OrderRepository
	Products repository.ProductRepository
	Users    repository.UserRepository
	Coupons  repository.CouponRepository
	Outbox   repository.OutboxRepository
	Stock    inventory.Store
	Carts    *CartService
	Gateway  payment.Gateway
	Idem     cache.IdempotencyStore
	Pricing  *pricing.Engine
	Now      func() time.Time
}

type CheckoutService struct {
	CheckoutDeps
	cfg CheckoutConfig
	log *slog.Logger
}

func NewCheckoutService(deps CheckoutDeps, cfg CheckoutConfig) *CheckoutService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Pricing == nil {
		deps.Pricing = pricing.NewEngine(nil)
	}
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = 30 * time.Minute
	}
	if cfg.DeliveryDays <= 0 {
		cfg.DeliveryDays = 5
	}
	if cfg.Policy == "" {
		cfg.Policy = ReservationNone
	}
	return &CheckoutService{CheckoutDeps: deps, cfg: cfg, log: logging.New("checkout")}
}

// CreateDraft snapshots the cart into a Pending order that expires after DraftTTL.
func (s *CheckoutService) CreateDraft(ctx context.Context, userID string) (*domain.Order, error) {
	cart, err := s.Carts.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	lines := make([]domain.CartItem, 0, len(cart.Items))
	ids := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		if it.Quantity > 0 {
			lines = append(lines, it)
			ids = append(ids, it.ProductID)
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	products, err := s.Products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	expiresAt := now.Add(s.cfg.DraftTTL)
	draft := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     make([]domain.OrderItem, 0, len(lines)),
		Status:    domain.OrderStatusPending,
		Payment:   domain.PaymentInfo{Status: domain.PaymentStatusPending},
		ExpiresAt: &expiresAt,
		CreatedAt: now,
	}
	priced := make([]pricing.Line, 0, len(lines))
	for _, it := range lines {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		draft.Items = append(draft.Items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      p.Name,
			Size:      it.Size,
			Quantity:  it.Quantity,
			Price:     p.UnitPrice(),
		})
		priced = append(priced, pricing.Line{UnitPrice: p.UnitPrice(), Quantity: it.Quantity})
	}
	applyQuote(draft, s.Pricing.Quote(priced, nil))

	if s.cfg.Policy == ReservationSoft {
		if _, err := s.Stock.Reserve(ctx, draft.ID, draft.StockLines(), expiresAt); err != nil {
			return nil, shortage(err)
		}
	}

	if err := s.Orders.Create(ctx, draft); err != nil {
		if s.cfg.Policy == ReservationSoft {
			s.releaseReservation(ctx, draft.ID)
		}
		return nil, err
	}

	s.log.Info("draft created", "order_id", draft.ID, "user_id", userID, "total", draft.TotalAmount)
	return draft, nil
}

type CheckoutView struct {
	Order            *domain.Order    `json:"order"`
	Quote            pricing.Quote    `json:"quote"`
	MRP              float64          `json:"mrp"`
	OfferDiscount    float64          `json:"offer_discount"`
	Addresses        []domain.Address `json:"addresses"`
	Coupons          []*domain.Coupon `json:"coupons"`
	CODAllowed       bool             `json:"cod_allowed"`
	DeliveryEstimate time.Time        `json:"delivery_estimate"`
}

func (s *CheckoutService) GetCheckout(ctx context.Context, userID, draftID string) (*CheckoutView, error) {
	draft, err := s.loadDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	now := s.Now()

	view := &CheckoutView{
		Order:            draft,
		Quote:            draftQuote(draft),
		Addresses:        []domain.Address{},
		Coupons:          []*domain.Coupon{},
		DeliveryEstimate: s.deliveryEstimate(now),
	}

	user, err := s.Users.Get(ctx, userID)
	switch {
	case err == nil:
		view.Addresses = user.Addresses
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, fmt.Errorf("load addresses: %w", err)
	}

	coupons, err := s.Coupons.ListUsable(ctx, now)
	if err != nil {
		return nil, err
	}
	view.Coupons = coupons

	products, err := s.Products.GetMany(ctx, draft.ProductIDs())
	if err != nil {
		return nil, err
	}
	mrp := make([]pricing.Line, 0, len(draft.Items))
	for _, it := range draft.Items {
		price := it.Price
		if p, ok := products[it.ProductID]; ok {
			price = p.Price
			view.CODAllowed = view.CODAllowed || p.CashOnDelivery
		}
		mrp = append(mrp, pricing.Line{UnitPrice: price, Quantity: it.Quantity})
	}
	view.MRP = s.Pricing.Quote(mrp, nil).Subtotal
	view.OfferDiscount = pricing.Sub(view.MRP, draft.Subtotal)
	return view, nil
}

type CouponCheck struct {
	Code     string        `json:"code"`
	Discount float64       `json:"discount"`
	Quote    pricing.Quote `json:"quote"`
}

// ValidateCoupon prices the draft with the coupon applied without redeeming it.
func (s *CheckoutService) ValidateCoupon(ctx context.Context, userID, draftID, code string) (*CouponCheck, error) {
	draft, err := s.loadDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}

	coupon, err := s.couponFor(ctx, code, draft)
	if err != nil {
		return nil, err
	}

	quote := s.Pricing.Quote(draftLines(draft), pricing.RuleFromCoupon(coupon))
	return &CouponCheck{Code: coupon.Code, Discount: quote.Discount, Quote: quote}, nil
}

// couponFor loads code and explains why it cannot apply to draft.
func (s *CheckoutService) couponFor(ctx context.Context, code string, draft *domain.Order) (*domain.Coupon, error) {
	coupon, err := s.Coupons.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrCouponNotFound) {
		return nil, &CouponError{Code: code, Reason: "unknown coupon"}
	}
	if err != nil {
		return nil, err
	}
	if !coupon.UsableAt(s.Now()) {
		return nil, &CouponError{Code: coupon.Code, Reason: "coupon is expired, inactive or used up"}
	}
	if draft.Subtotal < coupon.MinPrice {
		return nil, &CouponError{Code: coupon.Code, Reason: fmt.Sprintf("order subtotal must be at least %.2f", coupon.MinPrice)}
	}
	return coupon, nil
}

// loadDraft returns the caller's unexpired draft or ErrOrderNotFound.
func (s *CheckoutService) loadDraft(ctx context.Context, userID, draftID string) (*domain.Order, error) {
	draft, err := s.Orders.Get(ctx, draftID)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if draft.UserID != userID || !draft.IsDraft() || draft.IsExpired(s.Now()) {
		return nil, ErrOrderNotFound
	}
	return draft, nil
}

func (s *CheckoutService) deliveryEstimate(now time.Time) time.Time {
	return now.AddDate(0, 0, s.cfg.DeliveryDays)
}

func (s *CheckoutService) releaseReservation(ctx context.Context, id string) {
	if err := s.Stock.Release(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, inventory.ErrReservationNotFound) {
		s.log.Error("failed to release reservation", "reservation_id", id, "error", err)
	}
}

func draftLines(o *domain.Order) []pricing.Line {
	lines := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity}
	}
	return lines
}

func draftQuote(o *domain.Order) pricing.Quote {
	return pricing.Quote{Subtotal: o.Subtotal, Shipping: o.Shipping, Discount: o.Discount, Total: o.TotalAmount}
}

func applyQuote(o *domain.Order, q pricing.Quote) {
	o.Subtotal = q.Subtotal
	o.Shipping = q.Shipping
	o.Discount = q.Discount
	o.TotalAmount = q.Total
}
