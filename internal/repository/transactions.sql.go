package repository

import (
	"context"
	"time"

	"github.com/ayo6706/axis-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const transactionColumns = `id, account_id, amount, kind, status, description, reference, created_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var (
		i  models.Transaction
		id pgtype.UUID
	)
	err := row.Scan(&id, &i.AccountID, &i.Amount, &i.Kind, &i.Status, &i.Description, &i.Reference, &i.CreatedAt)
	i.ID = FromPgUUID(id)
	return i, err
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var items []models.Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (id, account_id, amount, kind, status, description, reference, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	ID          uuid.UUID
	AccountID   string
	Amount      int64
	Kind        string
	Status      string
	Description string
	Reference   string
	CreatedAt   time.Time
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (models.Transaction, error) {
	row := q.db.QueryRow(ctx, createTransaction,
		ToPgUUID(arg.ID),
		arg.AccountID,
		arg.Amount,
		arg.Kind,
		arg.Status,
		arg.Description,
		arg.Reference,
		arg.CreatedAt,
	)
	i, err := scanTransaction(row)
	return i, mapError(err)
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	i, err := scanTransaction(q.db.QueryRow(ctx, getTransaction, ToPgUUID(id)))
	return i, mapError(err)
}

const getTransactionStatusForUpdate = `-- name: GetTransactionStatusForUpdate :one
SELECT status FROM transactions WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetTransactionStatusForUpdate(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := q.db.QueryRow(ctx, getTransactionStatusForUpdate, ToPgUUID(id)).Scan(&status)
	return status, mapError(err)
}

const updateTransactionStatus = `-- name: UpdateTransactionStatus :execrows
UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1
`

type UpdateTransactionStatusParams struct {
	ID        uuid.UUID
	Status    string
	UpdatedAt time.Time
}

func (q *Queries) UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateTransactionStatus, ToPgUUID(arg.ID), arg.Status, arg.UpdatedAt)
	if err != nil {
		return 0, mapError(err)
	}
	return result.RowsAffected(), nil
}

const transactionFilter = `
WHERE account_id = $1
  AND ($2::text = '' OR kind = $2::text)
  AND ($3::timestamptz IS NULL OR created_at >= $3::timestamptz)
  AND ($4::timestamptz IS NULL OR created_at <= $4::timestamptz)`

const listAccountTransactions = `-- name: ListAccountTransactions :many
SELECT ` + transactionColumns + ` FROM transactions` + transactionFilter + `
ORDER BY created_at DESC, seq DESC
LIMIT $5 OFFSET $6`

type ListAccountTransactionsParams struct {
	AccountID string
	Kind      string
	Start     *time.Time
	End       *time.Time
	// Limit <= 0 returns every matching row.
	Limit  int32
	Offset int32
}

func (q *Queries) ListAccountTransactions(ctx context.Context, arg ListAccountTransactionsParams) ([]models.Transaction, error) {
	rows, err := q.db.Query(ctx, listAccountTransactions,
		arg.AccountID,
		arg.Kind,
		toPgTimestamptz(arg.Start),
		toPgTimestamptz(arg.End),
		toPgLimit(arg.Limit),
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

const countAccountTransactions = `-- name: CountAccountTransactions :one
SELECT COUNT(*) FROM transactions` + transactionFilter

type CountAccountTransactionsParams struct {
	AccountID string
	Kind      string
	Start     *time.Time
	End       *time.Time
}

func (q *Queries) CountAccountTransactions(ctx context.Context, arg CountAccountTransactionsParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countAccountTransactions,
		arg.AccountID,
		arg.Kind,
		toPgTimestamptz(arg.Start),
		toPgTimestamptz(arg.End),
	).Scan(&count)
	return count, err
}

const listStalePendingTransactions = `-- name: ListStalePendingTransactions :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE status = 'pending' AND updated_at < $1
ORDER BY updated_at
LIMIT $2
FOR UPDATE SKIP LOCKED`

type ListStalePendingTransactionsParams struct {
	Before time.Time
	Limit  int32
}

func (q *Queries) ListStalePendingTransactions(ctx context.Context, arg ListStalePendingTransactionsParams) ([]models.Transaction, error) {
	rows, err := q.db.Query(ctx, listStalePendingTransactions, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}
