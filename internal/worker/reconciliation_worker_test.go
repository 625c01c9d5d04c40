package worker

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"github.com/ayo6706/axis-ledger/internal/repository/memory"
	"github.com/ayo6706/axis-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationWorkerSweepsOnStartAndStops(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	accountID := "29901011234567"

	_, err := store.Queries().CreateAccount(ctx, repository.CreateAccountParams{
		ID: accountID, Status: domain.AccountStatusActive, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	txID := uuid.New()
	_, err = store.Queries().CreateTransaction(ctx, repository.CreateTransactionParams{
		ID: txID, AccountID: accountID, Amount: 10, Kind: domain.TxKindDeposit,
		Status: domain.TxStatusPending, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, store.SetTransactionUpdatedAt(txID, time.Now().Add(-time.Hour)))

	w := NewReconciliationWorker(service.NewReconciliationService(store, time.Minute)).WithInterval(time.Hour)
	stop := w.Run(ctx)

	require.Eventually(t, func() bool {
		tx, err := store.Queries().GetTransaction(ctx, txID)
		return err == nil && tx.Status == domain.TxStatusFailed
	}, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		stop()
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.NotPanics(t, w.Stop)
}
