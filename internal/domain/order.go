package domain

import "time"

// OrderItem is a snapshot of a cart line taken when the draft was created.
type OrderItem struct {
	ProductID string  `bson:"product_id" json:"product_id"`
	Name      string  `bson:"name,omitempty" json:"name,omitempty"`
	Size      string  `bson:"size" json:"size"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	Price     float64 `bson:"price" json:"price"`
}

type Order struct {
	ID               string      `bson:"_id" json:"id"`
	UserID           string      `bson:"user_id" json:"user_id"`
	Items            []OrderItem `bson:"items" json:"items"`
	Subtotal         float64     `bson:"subtotal" json:"subtotal"`
	Shipping         float64     `bson:"shipping" json:"shipping"`
	Discount         float64     `bson:"discount" json:"discount"`
	TotalAmount      float64     `bson:"total_amount" json:"total_amount"`
	Status           OrderStatus `bson:"status" json:"status"`
	Payment          PaymentInfo `bson:"payment" json:"payment"`
	AddressID        string      `bson:"address_id,omitempty" json:"address_id,omitempty"`
	CouponID         string      `bson:"coupon_id,omitempty" json:"coupon_id,omitempty"`
	CouponCode       string      `bson:"coupon_code,omitempty" json:"coupon_code,omitempty"`
	Reason           string      `bson:"reason,omitempty" json:"reason,omitempty"`
	DeliveryEstimate *time.Time  `bson:"delivery_estimate,omitempty" json:"delivery_estimate,omitempty"`
	ExpiresAt        *time.Time  `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	Version          int64       `bson:"version" json:"-"`
	CreatedAt        time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `bson:"updated_at" json:"updated_at"`
}

// IsDraft reports whether the order is still an unconfirmed checkout snapshot.
func (o *Order) IsDraft() bool {
	return o.ExpiresAt != nil
}

// IsExpired reports whether a draft has passed its confirmation window.
func (o *Order) IsExpired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

func (o *Order) StockLines() []StockLine {
	lines := make([]StockLine, len(o.Items))
	for i, item := range o.Items {
		lines[i] = StockLine{ProductID: item.ProductID, Size: item.Size, Quantity: item.Quantity}
	}
	return lines
}

func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
