package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/axis-ledger/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReserveFinalizeLookup(t *testing.T) {
	s := NewStore(nil, memory.NewIdempotencyKeys(), time.Hour)
	ctx := context.Background()

	_, err := s.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Reserve(ctx, "k1", "h1", "POST", "/v1/accounts/x/deposit")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Reserve(ctx, "k1", "h1", "POST", "/v1/accounts/x/deposit")
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must lose")

	_, err = s.Lookup(ctx, "k1", "h1")
	assert.ErrorIs(t, err, ErrInProgress)

	_, err = s.Finalize(ctx, "k1", "h1", 201, []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)

	rec, err := s.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Body))
	assert.Equal(t, "store", rec.ServedBy)

	_, err = s.Lookup(ctx, "k1", "other")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestStoreReleaseAllowsRetry(t *testing.T) {
	s := NewStore(nil, memory.NewIdempotencyKeys(), time.Hour)
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "k2", "h", "POST", "/p")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Release(ctx, "k2", "h"))

	ok, err = s.Reserve(ctx, "k2", "h", "POST", "/p")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitForCompletion(t *testing.T) {
	s := NewStore(nil, memory.NewIdempotencyKeys(), time.Hour)
	ctx := context.Background()
	_, err := s.Reserve(ctx, "k3", "h", "POST", "/p")
	require.NoError(t, err)

	go func() {
		time.Sleep(80 * time.Millisecond)
		_, _ = s.Finalize(context.Background(), "k3", "h", 200, []byte("done"), "text/plain")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rec, err := s.WaitForCompletion(waitCtx, "k3", "h")
	require.NoError(t, err)
	assert.Equal(t, "done", string(rec.Body))

	_, err = s.Reserve(ctx, "k4", "h", "POST", "/p")
	require.NoError(t, err)
	shortCtx, cancelShort := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancelShort()
	_, err = s.WaitForCompletion(shortCtx, "k4", "h")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
