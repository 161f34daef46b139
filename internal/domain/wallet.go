package domain

import "time"

type TransactionType string

const (
	TransactionCredit TransactionType = "Credit"
	TransactionDebit  TransactionType = "Debit"
)

type WalletTransaction struct {
	ID          string          `bson:"id" json:"id"`
	Amount      float64         `bson:"amount" json:"amount"`
	Type        TransactionType `bson:"type" json:"type"`
	Description string          `bson:"description" json:"description"`
	Reference   string          `bson:"reference,omitempty" json:"reference,omitempty"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
}

// Signed returns the amount with credits positive and debits negative.
func (t WalletTransaction) Signed() float64 {
	if t.Type == TransactionDebit {
		return -t.Amount
	}
	return t.Amount
}

type Wallet struct {
	ID           string              `bson:"_id,omitempty" json:"-"`
	UserID       string              `bson:"user_id" json:"user_id"`
	Balance      float64             `bson:"balance" json:"balance"`
	Transactions []WalletTransaction `bson:"transactions" json:"transactions"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updated_at"`
}

// WalletPage is one page of a wallet's transactions, newest first.
type WalletPage struct {
	Balance      float64             `json:"balance"`
	Transactions []WalletTransaction `json:"transactions"`
	TotalPages   int                 `json:"totalPages"`
	CurrentPage  int                 `json:"currentPage"`
}
