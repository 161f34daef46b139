package service

import (
	"context"
	"fmt"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/payment"
	"github.com/fjod/helden/internal/pricing"
)

type PaymentIntent struct {
	OrderID        string  `json:"order_id"`
	GatewayOrderID string  `json:"razorpay_order_id"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Total          float64 `json:"total"`
	Discount       float64 `json:"discount"`
	KeyID          string  `json:"key_id"`
}

// InitiatePayment opens a gateway order for the draft total, priced with
// couponCode when one is given. Nothing is marked paid here; confirmation
// must reprice to the same amount.
func (s *CheckoutService) InitiatePayment(ctx context.Context, userID, draftID, couponCode string) (*PaymentIntent, error) {
	draft, err := s.loadDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if s.Gateway == nil {
		return nil, fmt.Errorf("%w: no gateway configured", payment.ErrPaymentGateway)
	}

	var coupon *domain.Coupon
	if couponCode != "" {
		if coupon, err = s.couponFor(ctx, couponCode, draft); err != nil {
			return nil, err
		}
	}
	quote := s.Pricing.Quote(draftLines(draft), pricing.RuleFromCoupon(coupon))

	gwOrder, err := s.Gateway.CreateOrder(ctx, quote.Total, draft.ID)
	if err != nil {
		s.log.Warn("gateway order creation failed", "order_id", draft.ID, "error", err)
		return nil, err
	}

	draft.Payment.GatewayOrderID = gwOrder.ID
	draft.Payment.GatewayAmount = gwOrder.Amount
	if err := s.Orders.Save(ctx, draft, draft.Version); err != nil {
		return nil, orderNotFound(err)
	}

	return &PaymentIntent{
		OrderID:        draft.ID,
		GatewayOrderID: gwOrder.ID,
		Amount:         gwOrder.Amount,
		Currency:       gwOrder.Currency,
		Total:          quote.Total,
		Discount:       quote.Discount,
		KeyID:          s.Gateway.KeyID(),
	}, nil
}

// checkCharge rejects an online payment whose gateway order is not the draft's
// or whose amount differs from total.
func checkCharge(p domain.Payment, draft *domain.Order, total float64) error {
	nb, ok := p.(domain.NetBanking)
	if !ok || draft.Payment.GatewayOrderID == "" {
		return nil
	}
	if nb.GatewayOrderID != "" && nb.GatewayOrderID != draft.Payment.GatewayOrderID {
		return ErrGatewayOrderMismatch
	}
	if draft.Payment.GatewayAmount > 0 && payment.ToMinorUnits(total) != draft.Payment.GatewayAmount {
		return fmt.Errorf("%w: charged %d, order total %d", ErrPaymentAmountMismatch,
			draft.Payment.GatewayAmount, payment.ToMinorUnits(total))
	}
	return nil
}
