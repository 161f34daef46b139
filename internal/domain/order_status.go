package domain

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusShipping  OrderStatus = "Shipping"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusRequested OrderStatus = "Requested"
	OrderStatusReturned  OrderStatus = "Returned"
	OrderStatusRejected  OrderStatus = "Rejected"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping:  {OrderStatusCancelled, OrderStatusRequested, OrderStatusCompleted},
	OrderStatusRequested: {OrderStatusReturned, OrderStatusRejected},
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipping, OrderStatusCompleted, OrderStatusCancelled,
		OrderStatusRequested, OrderStatusReturned, OrderStatusRejected:
		return true
	}
	return false
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether an order in status from may move to status to.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
