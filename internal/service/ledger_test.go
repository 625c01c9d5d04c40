package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"github.com/ayo6706/axis-ledger/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerDepositWithdrawScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, store QueryStore) {
		ctx := context.Background()
		ledger := NewLedgerService(store)
		accounts := NewAccountService(store)

		_, err := ledger.CreateAccount(ctx, testAccountID, 0, "")
		require.NoError(t, err)

		_, err = ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 500})
		require.NoError(t, err)
		balance, err := accounts.GetBalance(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(500), balance)

		_, err = ledger.Withdraw(ctx, MovementRequest{AccountID: testAccountID, Amount: 200})
		require.NoError(t, err)
		balance, err = accounts.GetBalance(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(300), balance)

		_, err = ledger.Withdraw(ctx, MovementRequest{AccountID: testAccountID, Amount: 1000})
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
		balance, err = accounts.GetBalance(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(300), balance)

		assert.ElementsMatch(t, []string{"deposit:completed", "withdrawal:completed"}, listAll(t, store, testAccountID))
	})
}

func TestDepositRecordsCompletedTransaction(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	txID := uuid.MustParse("5b6f0a3e-6f52-4c57-9a36-0f2b8f6d9d11")
	clock := newStepClock()
	ledger := NewLedgerService(store, WithClock(clock.Now), WithIDGenerator(func() uuid.UUID { return txID }))

	_, err := ledger.CreateAccount(ctx, testAccountID, 0, "")
	require.NoError(t, err)

	id, err := ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 1250, Reference: "inv-7", ActorID: testAccountID})
	require.NoError(t, err)
	assert.Equal(t, txID, id)

	tx, err := store.Queries().GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, tx.Status)
	assert.Equal(t, domain.TxKindDeposit, tx.Kind)
	assert.Equal(t, int64(1250), tx.Amount)
	assert.Equal(t, domain.DefaultDepositDescription, tx.Description)
	assert.Equal(t, "inv-7", tx.Reference)

	var actions []string
	for _, entry := range store.AuditEntries() {
		if entry.EntityID == txID.String() {
			actions = append(actions, entry.Action)
			require.NotNil(t, entry.ActorID)
			assert.Equal(t, testAccountID, *entry.ActorID)
		}
	}
	assert.Equal(t, []string{"create", "complete"}, actions)
}

func TestWithdrawUsesDefaultDescription(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	ledger := NewLedgerService(store)

	_, err := ledger.CreateAccount(ctx, testAccountID, 100, "")
	require.NoError(t, err)

	id, err := ledger.Withdraw(ctx, MovementRequest{AccountID: testAccountID, Amount: 40})
	require.NoError(t, err)
	tx, err := store.Queries().GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWithdrawalDescription, tx.Description)

	id, err = ledger.Withdraw(ctx, MovementRequest{AccountID: testAccountID, Amount: 10, Description: "ATM"})
	require.NoError(t, err)
	tx, err = store.Queries().GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ATM", tx.Description)
}

func TestMovementsOnMissingAccount(t *testing.T) {
	forEachStore(t, func(t *testing.T, store QueryStore) {
		ctx := context.Background()
		txID := uuid.New()
		ledger := NewLedgerService(store, WithIDGenerator(func() uuid.UUID { return txID }))

		_, err := ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 10})
		require.ErrorIs(t, err, domain.NotFound("account"))

		_, err = ledger.Withdraw(ctx, MovementRequest{AccountID: testAccountID, Amount: 10})
		require.ErrorIs(t, err, domain.NotFound("account"))

		_, err = store.Queries().GetTransaction(ctx, txID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestMovementValidation(t *testing.T) {
	store := memory.NewStore()
	ledger := NewLedgerService(store)
	ctx := context.Background()

	cases := []struct {
		name string
		req  MovementRequest
	}{
		{"zero amount", MovementRequest{AccountID: testAccountID, Amount: 0}},
		{"negative amount", MovementRequest{AccountID: testAccountID, Amount: -5}},
		{"malformed account", MovementRequest{AccountID: "12345", Amount: 5}},
		{"impossible birth date", MovementRequest{AccountID: "30013011234567", Amount: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Deposit(ctx, tc.req)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			_, err = ledger.Withdraw(ctx, tc.req)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestDepositBeyondMaxBalanceIsRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, store QueryStore) {
		ctx := context.Background()
		ledger := NewLedgerService(store)
		accounts := NewAccountService(store)

		_, err := ledger.CreateAccount(ctx, testAccountID, 1, "")
		require.NoError(t, err)

		_, err = ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: math.MaxInt64})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.NotErrorIs(t, err, domain.ErrInsufficientFunds)

		balance, err := accounts.GetBalance(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), balance)
		assert.Equal(t, []string{"deposit:completed"}, listAll(t, store, testAccountID))

		_, err = ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: math.MaxInt64 - 1})
		require.NoError(t, err)
		balance, err = accounts.GetBalance(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64), balance)
	})
}

func TestStoreErrorMapsOverflowToInvalidArgument(t *testing.T) {
	err := storeError("account", fmt.Errorf("apply deposit: %w", repository.ErrBalanceOverflow))
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
}

func TestCreateAccount(t *testing.T) {
	forEachStore(t, func(t *testing.T, store QueryStore) {
		ctx := context.Background()
		ledger := NewLedgerService(store)

		acc, err := ledger.CreateAccount(ctx, testAccountID, 700, "")
		require.NoError(t, err)
		assert.Equal(t, int64(700), acc.Balance)
		assert.Equal(t, domain.AccountStatusActive, acc.Status)

		items, err := store.Queries().ListAccountTransactions(ctx, repository.ListAccountTransactionsParams{AccountID: testAccountID})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, domain.DefaultInitialDepositDescription, items[0].Description)
		assert.Equal(t, domain.TxStatusCompleted, items[0].Status)
		assert.Equal(t, int64(700), items[0].Amount)

		_, err = ledger.CreateAccount(ctx, testAccountID, 0, "")
		assert.ErrorIs(t, err, domain.ErrConflict)

		_, err = ledger.CreateAccount(ctx, "29902021234567", -1, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = ledger.CreateAccount(ctx, "not-an-id", 0, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		empty, err := ledger.CreateAccount(ctx, "29902021234567", 0, "")
		require.NoError(t, err)
		assert.Empty(t, listAll(t, store, empty.ID))
	})
}

func TestCreateAccountRollsBackInitialDeposit(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	ledger := NewLedgerService(store)
	store.FailNext("CreateTransaction", errors.New("disk full"))

	_, err := ledger.CreateAccount(ctx, testAccountID, 700, "")
	require.ErrorIs(t, err, domain.ErrInternal)

	_, err = store.Queries().GetAccount(ctx, testAccountID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, store.AuditEntries())
}

func TestConditionalDebitMissMarksTransactionFailed(t *testing.T) {
	cases := []struct {
		name    string
		hook    debitHook
		wantErr error
		balance int64
	}{
		{"competing writer drained funds", debitHook{drain: true}, domain.ErrInsufficientFunds, 0},
		{"lost update", debitHook{swallow: true}, domain.ErrInternal, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mem := memory.NewStore()
			ctx := context.Background()
			_, err := NewLedgerService(mem).CreateAccount(ctx, testAccountID, 100, "")
			require.NoError(t, err)

			store := &hookStore{QueryStore: mem, wrap: func(q repository.Querier) repository.Querier {
				h := tc.hook
				h.Querier = q
				return h
			}}
			txID := uuid.New()
			ledger := NewLedgerService(store, WithIDGenerator(func() uuid.UUID { return txID }))

			_, err = ledger.Withdraw(ctx, MovementRequest{AccountID: testAccountID, Amount: 60})
			require.ErrorIs(t, err, tc.wantErr)

			tx, err := mem.Queries().GetTransaction(ctx, txID)
			require.NoError(t, err)
			assert.Equal(t, domain.TxStatusFailed, tx.Status)

			acc, err := mem.Queries().GetAccount(ctx, testAccountID)
			require.NoError(t, err)
			assert.Equal(t, tc.balance, acc.Balance)
		})
	}
}

func TestDepositZeroRowsMarksTransactionFailed(t *testing.T) {
	mem := memory.NewStore()
	ctx := context.Background()
	_, err := NewLedgerService(mem).CreateAccount(ctx, testAccountID, 0, "")
	require.NoError(t, err)

	store := &hookStore{QueryStore: mem, wrap: func(q repository.Querier) repository.Querier {
		return zeroCredit{q}
	}}
	txID := uuid.New()
	ledger := NewLedgerService(store, WithIDGenerator(func() uuid.UUID { return txID }))

	_, err = ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 10})
	require.ErrorIs(t, err, domain.ErrNotFound)

	tx, err := mem.Queries().GetTransaction(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
}

// zeroCredit reports the account vanished between the read and the credit.
type zeroCredit struct {
	repository.Querier
}

func (z zeroCredit) CreditAccount(context.Context, repository.CreditAccountParams) (int64, error) {
	return 0, nil
}

func TestStorageFailureRollsBackUnit(t *testing.T) {
	for _, op := range []string{"CreditAccount", "UpdateTransactionStatus", "InsertAuditLog", "Commit"} {
		t.Run(op, func(t *testing.T) {
			store := memory.NewStore()
			ctx := context.Background()
			txID := uuid.New()
			ledger := NewLedgerService(store, WithIDGenerator(func() uuid.UUID { return txID }))
			_, err := NewLedgerService(store).CreateAccount(ctx, testAccountID, 50, "")
			require.NoError(t, err)
			auditBefore := len(store.AuditEntries())

			store.FailNext(op, errors.New("connection reset"))
			_, err = ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 25})
			require.ErrorIs(t, err, domain.ErrInternal)

			acc, err := store.Queries().GetAccount(ctx, testAccountID)
			require.NoError(t, err)
			assert.Equal(t, int64(50), acc.Balance)

			_, err = store.Queries().GetTransaction(ctx, txID)
			assert.ErrorIs(t, err, repository.ErrNotFound, "no pending record may survive a rollback")
			assert.Len(t, store.AuditEntries(), auditBefore)
		})
	}
}

func TestUnitTimeoutAbortsWithoutPartialWrites(t *testing.T) {
	mem := memory.NewStore()
	ctx := context.Background()
	_, err := NewLedgerService(mem).CreateAccount(ctx, testAccountID, 0, "")
	require.NoError(t, err)

	store := &hookStore{QueryStore: mem, wrap: func(q repository.Querier) repository.Querier {
		return slowCommit{q}
	}}
	txID := uuid.New()
	ledger := NewLedgerService(store,
		WithUnitTimeout(30*time.Millisecond),
		WithIDGenerator(func() uuid.UUID { return txID }),
	)

	_, err = ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 10})
	require.ErrorIs(t, err, domain.ErrInternal)

	acc, err := mem.Queries().GetAccount(ctx, testAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.Balance)
	_, err = mem.Queries().GetTransaction(ctx, txID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAmbiguousCommitResolvedByLookup(t *testing.T) {
	mem := memory.NewStore()
	ctx := context.Background()
	_, err := NewLedgerService(mem).CreateAccount(ctx, testAccountID, 0, "")
	require.NoError(t, err)

	// The commit lands but the caller only sees the deadline.
	store := &hookStore{QueryStore: mem, afterCommit: context.DeadlineExceeded}
	txID := uuid.New()
	ledger := NewLedgerService(store, WithIDGenerator(func() uuid.UUID { return txID }))

	id, err := ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, txID, id)
}

func TestAccountLockerFallsBackWhenUnavailable(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	locker := &failingLocker{}
	ledger := NewLedgerService(store, WithAccountLocker(locker))

	_, err := ledger.CreateAccount(ctx, testAccountID, 0, "")
	require.NoError(t, err)
	_, err = ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.calls)
}

type failingLocker struct {
	calls int
}

func (f *failingLocker) Lock(context.Context, string) (func(), error) {
	f.calls++
	return nil, errors.New("redis down")
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	forEachStore(t, func(t *testing.T, store QueryStore) {
		const (
			initial  = int64(1000)
			amount   = int64(300)
			attempts = 12
		)
		ctx := context.Background()
		ledger := NewLedgerService(store)
		_, err := ledger.CreateAccount(ctx, testAccountID, initial, "")
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			rejected  int
		)
		start := make(chan struct{})
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := ledger.Withdraw(ctx, MovementRequest{AccountID: testAccountID, Amount: amount})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, domain.ErrInsufficientFunds):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int(initial/amount), succeeded)
		assert.Equal(t, attempts-succeeded, rejected)

		balance, err := NewAccountService(store).GetBalance(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, initial-int64(succeeded)*amount, balance)

		completed := 0
		for _, s := range listAll(t, store, testAccountID) {
			assert.NotEqual(t, "withdrawal:pending", s)
			if s == "withdrawal:completed" {
				completed++
			}
		}
		assert.Equal(t, succeeded, completed)
	})
}

func TestConcurrentDepositsAllApply(t *testing.T) {
	forEachStore(t, func(t *testing.T, store QueryStore) {
		ctx := context.Background()
		ledger := NewLedgerService(store)
		_, err := ledger.CreateAccount(ctx, testAccountID, 0, "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 5})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		balance, err := NewAccountService(store).GetBalance(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance)
	})
}
