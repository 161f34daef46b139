package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/helden/internal/domain"
)

// Common errors returned by the store
var (
	ErrProductNotFound     = errors.New("product not found")
	ErrSizeNotFound        = errors.New("size not available for product")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation has expired")
	ErrInvalidStatus       = errors.New("invalid reservation status for this operation")
)

// ShortageError names the stock bucket that could not cover a requested quantity.
type ShortageError struct {
	ProductID string
	Size      string
	Requested int
	Available int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s: requested %d, available %d",
		e.ProductID, e.Size, e.Requested, e.Available)
}

func (e *ShortageError) Unwrap() error {
	return ErrInsufficientStock
}

// Store is the per-product, per-size stock ledger.
// Quantities are changed with atomic increments only, never read-modify-write.
type Store interface {
	// Available returns the quantity on hand for one stock bucket.
	Available(ctx context.Context, productID, size string) (int, error)

	// Decrement removes every line from stock, or none of them.
	// A line that cannot be covered yields a *ShortageError.
	Decrement(ctx context.Context, lines []domain.StockLine) error

	// Increment returns lines to stock.
	Increment(ctx context.Context, lines []domain.StockLine) error

	// Reserve takes lines out of stock and holds them under id until expiresAt.
	Reserve(ctx context.Context, id string, lines []domain.StockLine, expiresAt time.Time) (*domain.Reservation, error)

	// GetReservation returns the reservation held under id.
	GetReservation(ctx context.Context, id string) (*domain.Reservation, error)

	// Commit makes a reservation permanent. Only reservations in status "reserved" can be committed.
	Commit(ctx context.Context, id string) error

	// Release returns a reserved quantity to stock.
	Release(ctx context.Context, id string) error

	// ReleaseExpired releases every reservation that expired at or before now and reports how many.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

// merge folds lines that share a stock bucket so a bucket is checked against its combined quantity.
func merge(lines []domain.StockLine) []domain.StockLine {
	out := make([]domain.StockLine, 0, len(lines))
	index := make(map[[2]string]int, len(lines))
	for _, l := range lines {
		key := [2]string{l.ProductID, l.Size}
		if i, ok := index[key]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, l)
	}
	return out
}
