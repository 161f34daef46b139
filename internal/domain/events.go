package domain

import "time"

const (
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
	EventOrderReturned  = "order.returned"
	EventOrderStatus    = "order.status_changed"
)

// OrderEvent is the payload published for downstream consumers of order changes.
type OrderEvent struct {
	Type          string        `json:"type"`
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	TotalAmount   float64       `json:"total_amount"`
	Items         []OrderItem   `json:"items"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewOrderEvent(eventType string, o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentMethod: o.Payment.Method,
		TotalAmount:   o.TotalAmount,
		Items:         o.Items,
		OccurredAt:    at,
	}
}
