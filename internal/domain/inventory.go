package domain

import "time"

// StockLine is a quantity against a single stock bucket (product, size).
type StockLine struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Size      string `bson:"size" json:"size"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// ReservationStatus represents the state of a soft stock reservation
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// Reservation holds stock for a draft order until it is confirmed or expires.
// ID is the draft order ID.
type Reservation struct {
	ID        string            `bson:"_id" json:"id"`
	Items     []StockLine       `bson:"items" json:"items"`
	Status    ReservationStatus `bson:"status" json:"status"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time         `bson:"expires_at" json:"expires_at"`
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
