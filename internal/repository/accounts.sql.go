package repository

import (
	"context"
	"time"

	"github.com/ayo6706/axis-ledger/internal/models"
)

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (id, balance, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING id, balance, status, created_at, updated_at
`

type CreateAccountParams struct {
	ID        string
	Balance   int64
	Status    string
	CreatedAt time.Time
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (models.Account, error) {
	row := q.db.QueryRow(ctx, createAccount, arg.ID, arg.Balance, arg.Status, arg.CreatedAt)
	var i models.Account
	err := row.Scan(&i.ID, &i.Balance, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	return i, mapError(err)
}

const getAccount = `-- name: GetAccount :one
SELECT id, balance, status, created_at, updated_at FROM accounts WHERE id = $1
`

func (q *Queries) GetAccount(ctx context.Context, id string) (models.Account, error) {
	row := q.db.QueryRow(ctx, getAccount, id)
	var i models.Account
	err := row.Scan(&i.ID, &i.Balance, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	return i, mapError(err)
}

const creditAccount = `-- name: CreditAccount :execrows
UPDATE accounts
SET balance = balance + $2, updated_at = $3
WHERE id = $1
`

type CreditAccountParams struct {
	ID        string
	Amount    int64
	UpdatedAt time.Time
}

func (q *Queries) CreditAccount(ctx context.Context, arg CreditAccountParams) (int64, error) {
	result, err := q.db.Exec(ctx, creditAccount, arg.ID, arg.Amount, arg.UpdatedAt)
	if err != nil {
		return 0, mapError(err)
	}
	return result.RowsAffected(), nil
}

// The balance predicate makes the decrement a compare-and-swap: a concurrent
// writer that already consumed the funds causes this statement to match zero rows.
const debitAccount = `-- name: DebitAccount :execrows
UPDATE accounts
SET balance = balance - $2, updated_at = $3
WHERE id = $1 AND balance >= $2
`

type DebitAccountParams struct {
	ID        string
	Amount    int64
	UpdatedAt time.Time
}

func (q *Queries) DebitAccount(ctx context.Context, arg DebitAccountParams) (int64, error) {
	result, err := q.db.Exec(ctx, debitAccount, arg.ID, arg.Amount, arg.UpdatedAt)
	if err != nil {
		return 0, mapError(err)
	}
	return result.RowsAffected(), nil
}
