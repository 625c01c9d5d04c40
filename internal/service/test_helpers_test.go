package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/axis-ledger/internal/db"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"github.com/ayo6706/axis-ledger/internal/repository/memory"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load("../../.env")
}

const testAccountID = "30001011234567"

// setupTestDB connects to Postgres, applies the schema and empties the ledger tables.
func setupTestDB(t *testing.T) *repository.Store {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))

	_, err = pool.Exec(ctx, "TRUNCATE TABLE audit_log, transactions, accounts CASCADE")
	require.NoError(t, err)
	return repository.NewStore(pool)
}

// forEachStore runs fn against the memory store and, when configured, Postgres.
func forEachStore(t *testing.T, fn func(t *testing.T, store QueryStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, memory.NewStore())
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, setupTestDB(t))
	})
}

// stepClock advances by step on every reading so records get distinct timestamps.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func (c *stepClock) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = 0
}

// hookStore lets a test intercept the querier handed to a unit of work, or
// report an error after a successful commit.
type hookStore struct {
	QueryStore
	wrap        func(repository.Querier) repository.Querier
	afterCommit error
}

func (h *hookStore) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	err := h.QueryStore.RunInTx(ctx, func(q repository.Querier) error {
		if h.wrap != nil {
			q = h.wrap(q)
		}
		return fn(q)
	})
	if err == nil && h.afterCommit != nil {
		return h.afterCommit
	}
	return err
}

// debitHook simulates a competing writer between the balance check and the
// conditional debit.
type debitHook struct {
	repository.Querier
	drain   bool
	swallow bool
}

func (d debitHook) DebitAccount(ctx context.Context, arg repository.DebitAccountParams) (int64, error) {
	if d.swallow {
		return 0, nil
	}
	if d.drain {
		acc, err := d.Querier.GetAccount(ctx, arg.ID)
		if err != nil {
			return 0, err
		}
		if _, err := d.Querier.DebitAccount(ctx, repository.DebitAccountParams{ID: arg.ID, Amount: acc.Balance, UpdatedAt: arg.UpdatedAt}); err != nil {
			return 0, err
		}
	}
	return d.Querier.DebitAccount(ctx, arg)
}

// slowCommit blocks inside the unit until ctx ends.
type slowCommit struct {
	repository.Querier
}

func (s slowCommit) UpdateTransactionStatus(ctx context.Context, arg repository.UpdateTransactionStatusParams) (int64, error) {
	rows, err := s.Querier.UpdateTransactionStatus(ctx, arg)
	<-ctx.Done()
	return rows, err
}

func listAll(t *testing.T, store QueryStore, accountID string) []string {
	t.Helper()
	items, err := store.Queries().ListAccountTransactions(context.Background(), repository.ListAccountTransactionsParams{AccountID: accountID})
	require.NoError(t, err)
	statuses := make([]string, 0, len(items))
	for _, tx := range items {
		statuses = append(statuses, tx.Kind+":"+tx.Status)
	}
	return statuses
}
