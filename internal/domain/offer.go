package domain

import "time"

type OfferScope string

const (
	OfferScopeProduct  OfferScope = "product"
	OfferScopeCategory OfferScope = "category"
)

// Offer lowers the unit price of one product or of every product in a category.
type Offer struct {
	ID            string       `bson:"_id" json:"id"`
	Name          string       `bson:"name" json:"name"`
	Description   string       `bson:"description,omitempty" json:"description,omitempty"`
	DiscountType  DiscountType `bson:"discount_type" json:"discount_type"`
	DiscountValue float64      `bson:"discount_value" json:"discount_value"`
	Scope         OfferScope   `bson:"scope" json:"scope"`
	ProductID     string       `bson:"product_id,omitempty" json:"product_id,omitempty"`
	CategoryID    string       `bson:"category_id,omitempty" json:"category_id,omitempty"`
	StartDate     time.Time    `bson:"start_date" json:"start_date"`
	EndDate       time.Time    `bson:"end_date" json:"end_date"`
	CreatedAt     time.Time    `bson:"created_at" json:"created_at"`
}

func (o *Offer) ActiveAt(now time.Time) bool {
	return !now.Before(o.StartDate) && !now.After(o.EndDate)
}
