package domain

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID            string       `bson:"_id" json:"id"`
	Code          string       `bson:"code" json:"code"`
	ValidFrom     time.Time    `bson:"valid_from" json:"valid_from"`
	ValidUpto     time.Time    `bson:"valid_upto" json:"valid_upto"`
	DiscountType  DiscountType `bson:"discount_type" json:"discount_type"`
	DiscountValue float64      `bson:"discount_value" json:"discount_value"`
	MinPrice      float64      `bson:"min_price" json:"min_price"`
	MaxDiscount   float64      `bson:"max_discount" json:"max_discount"`
	CouponCount   int          `bson:"coupon_count" json:"coupon_count"`
	Active        bool         `bson:"active" json:"active"`
	CreatedAt     time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `bson:"updated_at" json:"updated_at"`
}

// UsableAt reports whether the coupon can be applied at now.
func (c *Coupon) UsableAt(now time.Time) bool {
	return c.Active &&
		c.CouponCount > 0 &&
		!now.Before(c.ValidFrom) &&
		!now.After(c.ValidUpto)
}
