package models

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID        string    `json:"id"`
	Balance   int64     `json:"balance"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Transaction struct {
	ID          uuid.UUID `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      int64     `json:"amount"`
	Kind        string    `json:"type"`   // "deposit", "withdrawal", "transfer"
	Status      string    `json:"status"` // "pending", "completed", "failed", "reversed"
	Description string    `json:"description,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransactionFilter narrows a transaction listing. Zero values mean "no constraint".
type TransactionFilter struct {
	Kind  string
	Start *time.Time
	End   *time.Time
	Page  int
	Limit int
}

// TransactionPage is one window of a filtered, newest-first transaction listing.
type TransactionPage struct {
	Items      []Transaction `json:"data"`
	Total      int64         `json:"total"`
	TotalPages int64         `json:"total_pages"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
}
