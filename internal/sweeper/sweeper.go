// Package sweeper removes checkout drafts that passed their confirmation window
// and returns stock held for them.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/metrics"
)

// DraftStore deletes expired drafts and returns them.
type DraftStore interface {
	DeleteExpiredDrafts(ctx context.Context, now time.Time) ([]*domain.Order, error)
}

// ReservationReleaser returns expired reservations to stock.
type ReservationReleaser interface {
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

type Sweeper struct {
	drafts   DraftStore
	stock    ReservationReleaser // nil when drafts hold no stock
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func New(drafts DraftStore, stock ReservationReleaser, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{drafts: drafts, stock: stock, interval: interval, now: time.Now, log: logging.New("sweeper")}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass and reports how many drafts were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()

	expired, err := s.drafts.DeleteExpiredDrafts(ctx, now)
	if err != nil {
		s.log.Error("failed to delete expired drafts", "error", err)
	} else if len(expired) > 0 {
		metrics.DraftsExpired.Add(float64(len(expired)))
		s.log.Info("expired drafts removed", "count", len(expired))
	}

	if s.stock != nil {
		released, err := s.stock.ReleaseExpired(ctx, now)
		if err != nil {
			s.log.Error("failed to release expired reservations", "error", err)
		} else if released > 0 {
			s.log.Info("expired reservations released", "count", released)
		}
	}
	return len(expired)
}
