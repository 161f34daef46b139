package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/helden/internal/cache"
	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/inventory"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/metrics"
	"github.com/fjod/helden/internal/repository"
)

type OrderService struct {
	orders repository.OrderRepository
	outbox repository.OutboxRepository
	stock  inventory.Store
	wallet *WalletService
	idem   cache.IdempotencyStore
	now    func() time.Time
	log    *slog.Logger
}

func NewOrderService(orders repository.OrderRepository, outbox repository.OutboxRepository, stock inventory.Store,
	wallet *WalletService, idem cache.IdempotencyStore, now func() time.Time) *OrderService {
	if now == nil {
		now = time.Now
	}
	return &OrderService{
		orders: orders,
		outbox: outbox,
		stock:  stock,
		wallet: wallet,
		idem:   idem,
		now:    now,
		log:    logging.New("orders"),
	}
}

// settlement lists the side effects that follow a status change.
type settlement struct {
	restock     bool
	refund      bool
	reference   string
	description string
	event       string
}

func cancelSettlement(o *domain.Order) settlement {
	return settlement{
		restock:     true,
		refund:      o.Payment.Settled(),
		reference:   "cancel:" + o.ID,
		description: "Refund for cancelled order " + o.ID,
		event:       domain.EventOrderCancelled,
	}
}

// Returns are refunded regardless of how the order was paid.
func returnSettlement(o *domain.Order) settlement {
	return settlement{
		restock:     true,
		refund:      true,
		reference:   "return:" + o.ID,
		description: "Refund for returned order " + o.ID,
		event:       domain.EventOrderReturned,
	}
}

type CancelRequest struct {
	UserID         string
	OrderID        string
	Reason         string
	IdempotencyKey string
}

// Cancel moves a Pending or Shipping order of the caller to Cancelled, puts its
// stock back and refunds an online payment to the wallet.
func (s *OrderService) Cancel(ctx context.Context, req CancelRequest) (*domain.Order, error) {
	var cancelled *domain.Order
	id, err := idempotent(ctx, s.idem, "cancel:"+req.UserID, req.IdempotencyKey, func() (string, error) {
		o, err := s.owned(ctx, req.UserID, req.OrderID)
		if err != nil {
			return "", err
		}
		if err := s.transition(ctx, o, domain.OrderStatusCancelled, req.Reason, cancelSettlement(o)); err != nil {
			return "", err
		}
		metrics.OrdersCancelled.Inc()
		cancelled = o
		return o.ID, nil
	})
	if err != nil {
		return nil, err
	}
	if cancelled != nil {
		return cancelled, nil
	}
	return s.owned(ctx, req.UserID, id)
}

// RequestReturn asks for a return of a Shipping order. No stock or money moves yet.
func (s *OrderService) RequestReturn(ctx context.Context, userID, orderID, reason string) (*domain.Order, error) {
	o, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	st := settlement{event: domain.EventOrderStatus}
	if err := s.transition(ctx, o, domain.OrderStatusRequested, reason, st); err != nil {
		return nil, err
	}
	return o, nil
}

// Accept approves a requested return: restock and refund the full total.
func (s *OrderService) Accept(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.placed(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, o, domain.OrderStatusReturned, "", returnSettlement(o)); err != nil {
		return nil, err
	}
	metrics.OrdersReturned.Inc()
	return o, nil
}

func (s *OrderService) Reject(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.placed(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, o, domain.OrderStatusRejected, "", settlement{event: domain.EventOrderStatus}); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus is the admin override. Any legal transition is allowed and
// carries the same settlement as the dedicated flows. paymentStatus is ignored
// for cash-on-delivery orders.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentStatus domain.PaymentStatus) (*domain.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if paymentStatus != "" && !paymentStatus.IsValid() {
		return nil, fmt.Errorf("%w: payment status %q", ErrInvalidStatus, paymentStatus)
	}

	o, err := s.placed(ctx, orderID)
	if err != nil {
		return nil, err
	}
	prevPayment := o.Payment
	if paymentStatus != "" && o.Payment.Method != domain.PaymentMethodCOD {
		o.Payment.Status = paymentStatus
	}

	if status == "" || status == o.Status {
		if o.Payment == prevPayment {
			return o, nil
		}
		expected := o.Version
		if err := s.orders.Save(ctx, o, expected); err != nil {
			return nil, orderNotFound(err)
		}
		return o, nil
	}

	var st settlement
	switch status {
	case domain.OrderStatusCancelled:
		st = cancelSettlement(o)
	case domain.OrderStatusReturned:
		st = returnSettlement(o)
	default:
		st = settlement{event: domain.EventOrderStatus}
	}
	if err := s.transition(ctx, o, status, "", st); err != nil {
		o.Payment = prevPayment
		return nil, err
	}
	return o, nil
}

// Get returns one of the caller's orders, drafts included.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

type OrderPage struct {
	Orders      []*domain.Order `json:"orders"`
	Total       int64           `json:"total"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
}

func (s *OrderService) List(ctx context.Context, userID string, page, limit int) (*OrderPage, error) {
	page, limit = pageBounds(page, limit)
	orders, total, err := s.orders.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	return newOrderPage(orders, total, page, limit), nil
}

func (s *OrderService) ListAll(ctx context.Context, page, limit int) (*OrderPage, error) {
	page, limit = pageBounds(page, limit)
	orders, total, err := s.orders.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	return newOrderPage(orders, total, page, limit), nil
}

// transition applies one state-machine step under the order version, then its
// settlement. A failed settlement step undoes the earlier ones and the status.
func (s *OrderService) transition(ctx context.Context, o *domain.Order, to domain.OrderStatus, reason string, st settlement) error {
	from := o.Status
	if !domain.CanTransitionTo(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}

	prev := *o
	o.Status = to
	if reason != "" {
		o.Reason = reason
	}
	if err := s.orders.Save(ctx, o, prev.Version); err != nil {
		*o = prev
		return orderNotFound(err)
	}
	log := s.log.With("order_id", o.ID, "from", from, "to", to)

	lines := o.StockLines()
	if st.restock {
		if err := s.stock.Increment(ctx, lines); err != nil {
			log.Error("restock failed, reverting status", "error", err)
			s.revert(ctx, o, prev)
			return fmt.Errorf("restock: %w", err)
		}
	}

	if st.refund && o.TotalAmount > 0 {
		if _, err := s.wallet.Credit(ctx, o.UserID, o.TotalAmount, st.description, st.reference); err != nil {
			log.Error("refund failed, reverting", "error", err)
			if st.restock {
				if undoErr := s.stock.Decrement(context.WithoutCancel(ctx), lines); undoErr != nil {
					metrics.SagaCompensations.WithLabelValues(string(to), "failed").Inc()
					log.Error("failed to undo restock", "error", undoErr)
				}
			}
			s.revert(ctx, o, prev)
			return fmt.Errorf("refund: %w", err)
		}
	}

	enqueueEvent(ctx, s.outbox, st.event, o, s.now())
	log.Info("order status changed", "restocked", st.restock, "refunded", st.refund)
	return nil
}

// revert writes prev back over the order saved a moment ago.
func (s *OrderService) revert(ctx context.Context, o *domain.Order, prev domain.Order) {
	restored := prev
	if err := s.orders.Save(context.WithoutCancel(ctx), &restored, o.Version); err != nil {
		metrics.SagaCompensations.WithLabelValues(string(o.Status), "failed").Inc()
		s.log.Error("failed to revert order status", "order_id", o.ID, "status", prev.Status, "error", err)
		return
	}
	metrics.SagaCompensations.WithLabelValues(string(o.Status), "ok").Inc()
	*o = restored
}

func (s *OrderService) owned(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := s.placed(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// placed loads a confirmed order; drafts are not visible to status changes.
func (s *OrderService) placed(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, orderNotFound(err)
	}
	if o.IsDraft() {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func newOrderPage(orders []*domain.Order, total int64, page, limit int) *OrderPage {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return &OrderPage{Orders: orders, Total: total, TotalPages: pages, CurrentPage: page}
}
