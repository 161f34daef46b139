package domain

import "time"

// StockEntry is the quantity counter for one size of a product.
type StockEntry struct {
	Size     string `bson:"size" json:"size"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

type Product struct {
	ID             string             `bson:"_id" json:"id"`
	Name           string             `bson:"name" json:"name"`
	CategoryID     string             `bson:"category_id,omitempty" json:"category_id,omitempty"`
	Price          float64            `bson:"price" json:"price"`
	OfferPrice     float64            `bson:"offer_price,omitempty" json:"offer_price,omitempty"`
	PrevOfferPrice map[string]float64 `bson:"prev_offer_price,omitempty" json:"-"` // offer id -> offer price before it was applied
	Stock          []StockEntry       `bson:"stock" json:"stock"`
	CashOnDelivery bool               `bson:"cash_on_delivery" json:"cash_on_delivery"`
	IsDeleted      bool               `bson:"is_deleted" json:"-"`
	CreatedAt      time.Time          `bson:"created_at" json:"-"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"-"`
}

// UnitPrice is the price a buyer pays for one unit.
func (p *Product) UnitPrice() float64 {
	if p.OfferPrice > 0 {
		return p.OfferPrice
	}
	return p.Price
}

// StockFor returns the quantity on hand for size and whether the size exists at all.
func (p *Product) StockFor(size string) (int, bool) {
	for _, e := range p.Stock {
		if e.Size == size {
			return e.Quantity, true
		}
	}
	return 0, false
}
