package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/inventory"
	"github.com/fjod/helden/internal/metrics"
	"github.com/fjod/helden/internal/pricing"
	"github.com/fjod/helden/internal/repository"
)

type ConfirmRequest struct {
	UserID         string
	DraftID        string
	AddressID      string
	Payment        domain.Payment
	CouponCode     string
	IdempotencyKey string
}

// confirmation carries what the validation phase resolved for the saga.
type confirmation struct {
	draft       *domain.Order
	coupon      *domain.Coupon
	reservation bool
}

// Confirm turns a draft into a placed order. Every check runs before the first
// side effect; the saga then takes stock, redeems the coupon, saves the order
// under its version and compensates when the save is rejected.
func (s *CheckoutService) Confirm(ctx context.Context, req ConfirmRequest) (*domain.Order, error) {
	var placed *domain.Order
	id, err := idempotent(ctx, s.Idem, "confirm:"+req.UserID, req.IdempotencyKey, func() (string, error) {
		o, err := s.confirm(ctx, req)
		if err != nil {
			return "", err
		}
		placed = o
		return o.ID, nil
	})
	if err != nil {
		return nil, err
	}
	if placed != nil {
		return placed, nil
	}

	// replay of an earlier confirmation
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, orderNotFound(err)
	}
	return o, nil
}

func (s *CheckoutService) confirm(ctx context.Context, req ConfirmRequest) (*domain.Order, error) {
	c, err := s.validateConfirm(ctx, req)
	if err != nil {
		return nil, err
	}
	draft := c.draft
	log := s.log.With("order_id", draft.ID, "user_id", req.UserID)

	// (a) stock
	if err := s.takeStock(ctx, c); err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			metrics.StockConflicts.Inc()
		}
		return nil, shortage(err)
	}

	// (b) coupon; losing the race for the last use just means no discount
	var coupon *domain.Coupon
	if c.coupon != nil {
		switch err := s.Coupons.Redeem(ctx, c.coupon.ID, s.Now()); {
		case err == nil:
			coupon = c.coupon
		case errors.Is(err, repository.ErrCouponExhausted):
			log.Info("coupon no longer redeemable, confirming without it", "coupon", c.coupon.Code)
		default:
			s.restock(ctx, "confirm", draft.StockLines())
			return nil, fmt.Errorf("redeem coupon: %w", err)
		}
	}

	// (c) price; a coupon lost at redeem changes the total the gateway charged
	quote := s.Pricing.Quote(draftLines(draft), pricing.RuleFromCoupon(coupon))
	if err := checkCharge(req.Payment, draft, quote.Total); err != nil {
		log.Warn("repriced total no longer matches the gateway order, compensating", "error", err)
		s.restock(ctx, "confirm", draft.StockLines())
		s.releaseCoupon(ctx, coupon)
		return nil, err
	}

	// (d) save
	now := s.Now()
	order := *draft
	applyQuote(&order, quote)
	order.AddressID = req.AddressID
	order.ExpiresAt = nil
	order.Payment = paymentInfo(req.Payment, draft.Payment)
	order.Status = domain.OrderStatusPending
	if order.Payment.Method == domain.PaymentMethodNetBanking {
		order.Status = domain.OrderStatusShipping
	}
	estimate := s.deliveryEstimate(now)
	order.DeliveryEstimate = &estimate
	if coupon != nil {
		order.CouponID = coupon.ID
		order.CouponCode = coupon.Code
	}

	if err := s.Orders.Save(ctx, &order, draft.Version); err != nil {
		log.Warn("order save rejected, compensating", "error", err)
		s.restock(ctx, "confirm", draft.StockLines())
		s.releaseCoupon(ctx, coupon)
		return nil, orderNotFound(err)
	}

	// (e) cart, best effort
	if err := s.Carts.ClearCart(context.WithoutCancel(ctx), req.UserID); err != nil {
		log.Warn("failed to clear cart after confirmation", "error", err)
	}

	// (f) event
	enqueueEvent(ctx, s.Outbox, domain.EventOrderConfirmed, &order, now)

	metrics.OrdersConfirmed.WithLabelValues(string(order.Payment.Method)).Inc()
	log.Info("order confirmed", "payment_method", order.Payment.Method, "total", order.TotalAmount, "discount", order.Discount)
	return &order, nil
}

// validateConfirm runs the checks in their fixed order without side effects.
func (s *CheckoutService) validateConfirm(ctx context.Context, req ConfirmRequest) (*confirmation, error) {
	draft, err := s.loadDraft(ctx, req.UserID, req.DraftID)
	if err != nil {
		return nil, err
	}
	c := &confirmation{draft: draft}

	user, err := s.Users.Get(ctx, req.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load addresses: %w", err)
	}
	if _, ok := user.Address(req.AddressID); !ok {
		return nil, ErrAddressNotFound
	}

	if err := s.checkStock(ctx, c); err != nil {
		return nil, err
	}

	if req.CouponCode != "" {
		c.coupon = s.applicableCoupon(ctx, req.CouponCode, draft)
	}

	if req.Payment == nil {
		return nil, domain.ErrUnknownPaymentMethod
	}
	if err := req.Payment.Validate(); err != nil {
		return nil, err
	}
	if nb, ok := req.Payment.(domain.NetBanking); ok {
		if err := s.verifySignature(nb, draft); err != nil {
			return nil, err
		}
		quote := s.Pricing.Quote(draftLines(draft), pricing.RuleFromCoupon(c.coupon))
		if err := checkCharge(nb, draft, quote.Total); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *CheckoutService) checkStock(ctx context.Context, c *confirmation) error {
	if s.cfg.Policy == ReservationSoft {
		r, err := s.Stock.GetReservation(ctx, c.draft.ID)
		if err == nil && r.Status == domain.ReservationReserved && !r.IsExpired(s.Now()) {
			c.reservation = true
			return nil
		}
	}

	for _, l := range c.draft.StockLines() {
		available, err := s.Stock.Available(ctx, l.ProductID, l.Size)
		if err != nil && !errors.Is(err, inventory.ErrProductNotFound) && !errors.Is(err, inventory.ErrSizeNotFound) {
			return fmt.Errorf("check stock: %w", err)
		}
		if available < l.Quantity {
			return &InsufficientStockError{ProductID: l.ProductID, Size: l.Size, Requested: l.Quantity, Available: available}
		}
	}
	return nil
}

// applicableCoupon returns the coupon if it can be applied; otherwise nil.
func (s *CheckoutService) applicableCoupon(ctx context.Context, code string, draft *domain.Order) *domain.Coupon {
	coupon, err := s.Coupons.GetByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, repository.ErrCouponNotFound) {
			s.log.Warn("coupon lookup failed, confirming without it", "coupon", code, "error", err)
		}
		return nil
	}
	if !coupon.UsableAt(s.Now()) || draft.Subtotal < coupon.MinPrice {
		return nil
	}
	return coupon
}

func (s *CheckoutService) verifySignature(nb domain.NetBanking, draft *domain.Order) error {
	if nb.Signature == "" && !s.cfg.RequireSignature {
		return nil
	}
	if s.Gateway == nil {
		return ErrInvalidPaymentSignature
	}
	orderID := nb.GatewayOrderID
	if orderID == "" {
		orderID = draft.Payment.GatewayOrderID
	}
	if !s.Gateway.VerifySignature(orderID, nb.GatewayPaymentID, nb.Signature) {
		return ErrInvalidPaymentSignature
	}
	return nil
}

// takeStock commits the draft's reservation when it holds one, or decrements directly.
func (s *CheckoutService) takeStock(ctx context.Context, c *confirmation) error {
	if c.reservation {
		err := s.Stock.Commit(ctx, c.draft.ID)
		if err == nil {
			return nil
		}
		s.log.Warn("reservation commit failed, decrementing directly", "order_id", c.draft.ID, "error", err)
	}
	return s.Stock.Decrement(ctx, c.draft.StockLines())
}

func (s *CheckoutService) restock(ctx context.Context, op string, lines []domain.StockLine) {
	if err := s.Stock.Increment(context.WithoutCancel(ctx), lines); err != nil {
		metrics.SagaCompensations.WithLabelValues(op, "failed").Inc()
		s.log.Error("failed to restock", "lines", lines, "error", err)
		return
	}
	metrics.SagaCompensations.WithLabelValues(op, "ok").Inc()
}

func (s *CheckoutService) releaseCoupon(ctx context.Context, coupon *domain.Coupon) {
	if coupon == nil {
		return
	}
	if err := s.Coupons.Release(context.WithoutCancel(ctx), coupon.ID); err != nil {
		metrics.SagaCompensations.WithLabelValues("confirm", "failed").Inc()
		s.log.Error("failed to release coupon use", "coupon_id", coupon.ID, "error", err)
	}
}

func paymentInfo(p domain.Payment, draft domain.PaymentInfo) domain.PaymentInfo {
	switch v := p.(type) {
	case domain.NetBanking:
		orderID := v.GatewayOrderID
		if orderID == "" {
			orderID = draft.GatewayOrderID
		}
		return domain.PaymentInfo{
			Method:           domain.PaymentMethodNetBanking,
			Status:           domain.PaymentStatusCompleted,
			GatewayOrderID:   orderID,
			GatewayPaymentID: v.GatewayPaymentID,
			GatewayAmount:    draft.GatewayAmount,
		}
	default:
		return domain.PaymentInfo{Method: p.Method(), Status: domain.PaymentStatusPending}
	}
}
