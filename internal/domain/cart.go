package domain

import "time"

// MaxLineQuantity caps the units a single cart line may hold.
const MaxLineQuantity = 5

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	LineID    string    `bson:"line_id" json:"line_id"`
	ProductID string    `bson:"product_id" json:"product_id"`
	Size      string    `bson:"size" json:"size"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// FindLine returns the line holding (productID, size).
func (c *Cart) FindLine(productID, size string) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Size == size {
			return &c.Items[i], true
		}
	}
	return nil, false
}

func (c *Cart) Line(lineID string) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].LineID == lineID {
			return &c.Items[i], true
		}
	}
	return nil, false
}
