// Package wallet stores wallet balances and their transaction history.
// Two backends exist: MongoDB (a wallet document per user) and Postgres.
package wallet

import (
	"context"
	"errors"

	"github.com/fjod/helden/internal/domain"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrDuplicateReference means a transaction with the same reference was already applied.
	ErrDuplicateReference = errors.New("wallet transaction already applied")
)

type Repository interface {
	// Credit adds tx to the user's wallet, creating the wallet on first use.
	// A non-empty tx.Reference is applied at most once per user.
	Credit(ctx context.Context, userID string, tx domain.WalletTransaction) error
	// Page returns the balance and one page of transactions, newest first.
	Page(ctx context.Context, userID string, page, limit int) (*domain.WalletPage, error)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 5
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
