package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/axis-ledger/internal/repository"
)

// IdempotencyKeys is the in-process counterpart of the idempotency_keys table.
type IdempotencyKeys struct {
	mu   sync.Mutex
	rows map[string]repository.IdempotencyKey
}

var _ repository.IdempotencyQuerier = (*IdempotencyKeys)(nil)

func NewIdempotencyKeys() *IdempotencyKeys {
	return &IdempotencyKeys{rows: make(map[string]repository.IdempotencyKey)}
}

func (k *IdempotencyKeys) GetIdempotencyKey(ctx context.Context, key string) (repository.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	row, ok := k.rows[key]
	if !ok {
		return repository.IdempotencyKey{}, repository.ErrNotFound
	}
	return row, nil
}

func (k *IdempotencyKeys) ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.rows[arg.IdempotencyKey]; exists {
		return repository.IdempotencyKey{}, repository.ErrNotFound
	}
	now := time.Now()
	row := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		InProgress:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	k.rows[arg.IdempotencyKey] = row
	return row, nil
}

func (k *IdempotencyKeys) FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	row, ok := k.rows[arg.IdempotencyKey]
	if !ok || row.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, repository.ErrNotFound
	}
	row.ResponseStatus = arg.ResponseStatus
	row.ResponseBody = append([]byte(nil), arg.ResponseBody...)
	row.ContentType = arg.ContentType
	row.InProgress = false
	row.UpdatedAt = time.Now()
	k.rows[arg.IdempotencyKey] = row
	return row, nil
}

func (k *IdempotencyKeys) ReleaseIdempotencyKey(ctx context.Context, key, requestHash string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	row, ok := k.rows[key]
	if !ok || row.RequestHash != requestHash || !row.InProgress {
		return 0, nil
	}
	delete(k.rows, key)
	return 1, nil
}
