package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/helden/internal/domain"
)

// CleanupInterval is how often the background cleanup runs
const CleanupInterval = 30 * time.Second

// MemoryStore implements Store with in-memory storage
type MemoryStore struct {
	mu           sync.RWMutex
	stock        map[string]map[string]int      // productID -> size -> quantity
	reservations map[string]*domain.Reservation // reservationID -> reservation
	now          func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

// NewMemoryStore creates a new in-memory stock ledger
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		stock:        make(map[string]map[string]int),
		reservations: make(map[string]*domain.Reservation),
		now:          time.Now,
		stopCleanup:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.ReleaseExpired(context.Background(), s.now())
		case <-s.stopCleanup:
			return
		}
	}
}

// SetStock sets the stock level for every listed size of a product
func (s *MemoryStore) SetStock(productID string, entries ...domain.StockEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sizes := make(map[string]int, len(entries))
	for _, e := range entries {
		sizes[e.Size] = e.Quantity
	}
	s.stock[productID] = sizes
}

func (s *MemoryStore) Available(_ context.Context, productID, size string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableLocked(productID, size)
}

func (s *MemoryStore) availableLocked(productID, size string) (int, error) {
	sizes, ok := s.stock[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	q, ok := sizes[size]
	if !ok {
		return 0, ErrSizeNotFound
	}
	return q, nil
}

func (s *MemoryStore) Decrement(_ context.Context, lines []domain.StockLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrementLocked(lines)
}

func (s *MemoryStore) decrementLocked(lines []domain.StockLine) error {
	merged := merge(lines)

	// First pass: validate every bucket covers its quantity
	for _, l := range merged {
		available, err := s.availableLocked(l.ProductID, l.Size)
		if err != nil {
			return err
		}
		if available < l.Quantity {
			return &ShortageError{ProductID: l.ProductID, Size: l.Size, Requested: l.Quantity, Available: available}
		}
	}

	// Second pass: apply
	for _, l := range merged {
		s.stock[l.ProductID][l.Size] -= l.Quantity
	}
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, lines []domain.StockLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrementLocked(lines)
}

func (s *MemoryStore) incrementLocked(lines []domain.StockLine) error {
	for _, l := range merge(lines) {
		if _, err := s.availableLocked(l.ProductID, l.Size); err != nil {
			return err
		}
	}
	for _, l := range merge(lines) {
		s.stock[l.ProductID][l.Size] += l.Quantity
	}
	return nil
}

func (s *MemoryStore) Reserve(_ context.Context, id string, lines []domain.StockLine, expiresAt time.Time) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.decrementLocked(lines); err != nil {
		return nil, err
	}

	reservation := &domain.Reservation{
		ID:        id,
		Items:     lines,
		Status:    domain.ReservationReserved,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
	}
	s.reservations[id] = reservation

	copied := *reservation
	return &copied, nil
}

func (s *MemoryStore) GetReservation(_ context.Context, id string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, exists := s.reservations[id]
	if !exists {
		return nil, ErrReservationNotFound
	}
	copied := *reservation
	return &copied, nil
}

func (s *MemoryStore) Commit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[id]
	if !exists {
		return ErrReservationNotFound
	}
	if reservation.Status != domain.ReservationReserved {
		return ErrInvalidStatus
	}
	if reservation.IsExpired(s.now()) {
		return ErrReservationExpired
	}

	reservation.Status = domain.ReservationCommitted
	return nil
}

func (s *MemoryStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[id]
	if !exists {
		return ErrReservationNotFound
	}
	if reservation.Status != domain.ReservationReserved {
		return ErrInvalidStatus
	}
	return s.releaseLocked(reservation)
}

func (s *MemoryStore) releaseLocked(reservation *domain.Reservation) error {
	if err := s.incrementLocked(reservation.Items); err != nil {
		return err
	}
	reservation.Status = domain.ReservationReleased
	return nil
}

func (s *MemoryStore) ReleaseExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for _, reservation := range s.reservations {
		if reservation.Status == domain.ReservationReserved && reservation.IsExpired(now) {
			if err := s.releaseLocked(reservation); err != nil {
				return released, err
			}
			released++
		}
	}
	return released, nil
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}

var _ Store = (*MemoryStore)(nil)
