package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/metrics"
	"github.com/fjod/helden/internal/wallet"
	"github.com/google/uuid"
)

type WalletService struct {
	repo     wallet.Repository
	pageSize int
	now      func() time.Time
	log      *slog.Logger
}

func NewWalletService(repo wallet.Repository, pageSize int, now func() time.Time) *WalletService {
	if pageSize < 1 {
		pageSize = 5
	}
	if now == nil {
		now = time.Now
	}
	return &WalletService{repo: repo, pageSize: pageSize, now: now, log: logging.New("wallet")}
}

// Credit adds amount to the user's wallet. applied is false when a credit with
// the same reference was already recorded; that is not an error.
func (s *WalletService) Credit(ctx context.Context, userID string, amount float64, description, reference string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	tx := domain.WalletTransaction{
		ID:          uuid.NewString(),
		Amount:      amount,
		Type:        domain.TransactionCredit,
		Description: description,
		Reference:   reference,
		CreatedAt:   s.now().UTC(),
	}
	err := s.repo.Credit(ctx, userID, tx)
	if errors.Is(err, wallet.ErrDuplicateReference) {
		s.log.Info("wallet credit already applied", "user_id", userID, "reference", reference)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("credit wallet: %w", err)
	}

	metrics.WalletCredits.WithLabelValues(creditSource(reference)).Inc()
	s.log.Info("wallet credited", "user_id", userID, "amount", amount, "reference", reference)
	return true, nil
}

// Get returns one page of the wallet. A user without a wallet sees an empty one.
func (s *WalletService) Get(ctx context.Context, userID string, page, limit int) (*domain.WalletPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.pageSize
	}
	p, err := s.repo.Page(ctx, userID, page, limit)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		return &domain.WalletPage{Transactions: []domain.WalletTransaction{}, CurrentPage: page}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return p, nil
}

// creditSource is the reference prefix ("cancel", "return", "referral").
func creditSource(reference string) string {
	source, _, found := strings.Cut(reference, ":")
	if !found || source == "" {
		return "other"
	}
	return source
}
