package service

import (
	"context"

	"github.com/ayo6706/axis-ledger/internal/repository"
)

// QueryStore defines the minimal data access contract required by services.
// It is satisfied by *repository.Store and *memory.Store.
type QueryStore interface {
	Queries() repository.Querier
	RunInTx(ctx context.Context, fn func(q repository.Querier) error) error
}
