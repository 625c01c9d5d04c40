package repository

import (
	"context"
	"errors"

	"github.com/ayo6706/axis-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateAccount is returned when an account id is already taken.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrNegativeBalance is returned when a write would drive a balance below zero.
	ErrNegativeBalance = errors.New("balance cannot be negative")
	// ErrBalanceOverflow is returned when a credit would exceed the balance column's range.
	ErrBalanceOverflow = errors.New("balance out of range")
)

// Querier is the ledger's storage contract. It is implemented by *Queries
// (Postgres) and by the memory store.
type Querier interface {
	CreateAccount(ctx context.Context, arg CreateAccountParams) (models.Account, error)
	GetAccount(ctx context.Context, id string) (models.Account, error)
	CreditAccount(ctx context.Context, arg CreditAccountParams) (int64, error)
	DebitAccount(ctx context.Context, arg DebitAccountParams) (int64, error)

	CreateTransaction(ctx context.Context, arg CreateTransactionParams) (models.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	GetTransactionStatusForUpdate(ctx context.Context, id uuid.UUID) (string, error)
	UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (int64, error)
	ListAccountTransactions(ctx context.Context, arg ListAccountTransactionsParams) ([]models.Transaction, error)
	CountAccountTransactions(ctx context.Context, arg CountAccountTransactionsParams) (int64, error)
	ListStalePendingTransactions(ctx context.Context, arg ListStalePendingTransactionsParams) ([]models.Transaction, error)

	GetBalanceDrifts(ctx context.Context) ([]BalanceDrift, error)
	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error)
}

var _ Querier = (*Queries)(nil)

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.ConstraintName == "accounts_pkey" {
				return ErrDuplicateAccount
			}
		case "23514": // check_violation
			if pgErr.ConstraintName == "accounts_balance_check" {
				return ErrNegativeBalance
			}
		case "22003": // numeric_value_out_of_range
			return ErrBalanceOverflow
		}
	}
	return err
}
