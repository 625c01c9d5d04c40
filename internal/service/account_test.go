package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/models"
	"github.com/ayo6706/axis-ledger/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedHistory creates the account and five movements one second apart,
// starting at 09:00:02. Newest first the amounts are 25, 300, 50, 200, 100.
func seedHistory(t *testing.T, store QueryStore) {
	t.Helper()
	ctx := context.Background()
	ledger := NewLedgerService(store, WithClock(newStepClock().Now))

	_, err := ledger.CreateAccount(ctx, testAccountID, 0, "")
	require.NoError(t, err)
	steps := []struct {
		kind   string
		amount int64
	}{
		{domain.TxKindDeposit, 100},
		{domain.TxKindDeposit, 200},
		{domain.TxKindWithdrawal, 50},
		{domain.TxKindDeposit, 300},
		{domain.TxKindWithdrawal, 25},
	}
	for _, step := range steps {
		req := MovementRequest{AccountID: testAccountID, Amount: step.amount}
		if step.kind == domain.TxKindDeposit {
			_, err = ledger.Deposit(ctx, req)
		} else {
			_, err = ledger.Withdraw(ctx, req)
		}
		require.NoError(t, err)
	}
}

func amounts(page *models.TransactionPage) []int64 {
	out := make([]int64, 0, len(page.Items))
	for _, tx := range page.Items {
		out = append(out, tx.Amount)
	}
	return out
}

func at(sec int) *time.Time {
	t := time.Date(2024, 1, 1, 9, 0, sec, 0, time.UTC)
	return &t
}

func TestListTransactions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store QueryStore) {
		seedHistory(t, store)
		svc := NewAccountService(store)
		ctx := context.Background()

		cases := []struct {
			name      string
			filter    models.TransactionFilter
			want      []int64
			wantTotal int64
			wantPage  int
		}{
			{"unbounded", models.TransactionFilter{}, []int64{25, 300, 50, 200, 100}, 5, 1},
			{"unbounded ignores page", models.TransactionFilter{Page: 3}, []int64{25, 300, 50, 200, 100}, 5, 1},
			{"first page", models.TransactionFilter{Page: 1, Limit: 2}, []int64{25, 300}, 5, 1},
			{"second page", models.TransactionFilter{Page: 2, Limit: 2}, []int64{50, 200}, 5, 2},
			{"last partial page", models.TransactionFilter{Page: 3, Limit: 2}, []int64{100}, 5, 3},
			{"past the end", models.TransactionFilter{Page: 4, Limit: 2}, []int64{}, 5, 4},
			{"absurd page", models.TransactionFilter{Page: math.MaxInt, Limit: domain.MaxPageSize}, []int64{}, 5, math.MaxInt},
			{"page zero means one", models.TransactionFilter{Page: 0, Limit: 1}, []int64{25}, 5, 1},
			{"deposits only", models.TransactionFilter{Kind: domain.TxKindDeposit}, []int64{300, 200, 100}, 3, 1},
			{"withdrawals paged", models.TransactionFilter{Kind: domain.TxKindWithdrawal, Page: 2, Limit: 1}, []int64{50}, 2, 2},
			{"inclusive range", models.TransactionFilter{Start: at(3), End: at(5)}, []int64{300, 50, 200}, 3, 1},
			{"open start", models.TransactionFilter{End: at(2)}, []int64{100}, 1, 1},
			{"transfer kind matches nothing", models.TransactionFilter{Kind: domain.TxKindTransfer}, []int64{}, 0, 1},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				page, err := svc.ListTransactions(ctx, testAccountID, tc.filter)
				require.NoError(t, err)
				assert.Equal(t, tc.want, amounts(page))
				assert.Equal(t, tc.wantTotal, page.Total)
				assert.Equal(t, tc.wantPage, page.Page)
			})
		}
	})
}

func TestListTransactionsTotalPages(t *testing.T) {
	store := memory.NewStore()
	seedHistory(t, store)
	svc := NewAccountService(store)
	ctx := context.Background()

	cases := []struct {
		filter models.TransactionFilter
		want   int64
	}{
		{models.TransactionFilter{Limit: 2}, 3},
		{models.TransactionFilter{Limit: 5}, 1},
		{models.TransactionFilter{Limit: 0}, 1},
		{models.TransactionFilter{Kind: domain.TxKindTransfer, Limit: 2}, 0},
	}
	for _, tc := range cases {
		page, err := svc.ListTransactions(ctx, testAccountID, tc.filter)
		require.NoError(t, err)
		assert.Equal(t, tc.want, page.TotalPages, "%+v", tc.filter)
	}
}

func TestPageOffsetNeverWraps(t *testing.T) {
	assert.Equal(t, int32(0), pageOffset(1, 10))
	assert.Equal(t, int32(0), pageOffset(5, 0))
	assert.Equal(t, int32(20), pageOffset(3, 10))
	assert.Equal(t, int32(math.MaxInt32), pageOffset(math.MaxInt, 100))
	assert.Equal(t, int32(math.MaxInt32), pageOffset(math.MaxInt32/100+2, 100))
}

func TestListTransactionsRejectsBadFilters(t *testing.T) {
	store := memory.NewStore()
	seedHistory(t, store)
	svc := NewAccountService(store)
	ctx := context.Background()

	bad := []models.TransactionFilter{
		{Limit: -1},
		{Limit: domain.MaxPageSize + 1},
		{Start: at(5), End: at(3)},
		{Kind: "refund"},
	}
	for _, f := range bad {
		_, err := svc.ListTransactions(ctx, testAccountID, f)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}

	_, err := svc.ListTransactions(ctx, "29912319876543", models.TransactionFilter{})
	assert.ErrorIs(t, err, domain.NotFound("account"))

	page, err := svc.ListTransactions(ctx, testAccountID, models.TransactionFilter{Limit: domain.MaxPageSize})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
}

func TestListTransactionsBreaksTimestampTiesByInsertion(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	clock := newStepClock()
	clock.Freeze()
	ledger := NewLedgerService(store, WithClock(clock.Now))

	_, err := ledger.CreateAccount(ctx, testAccountID, 0, "")
	require.NoError(t, err)
	for _, amount := range []int64{1, 2, 3} {
		_, err := ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: amount})
		require.NoError(t, err)
	}

	page, err := NewAccountService(store).ListTransactions(ctx, testAccountID, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, amounts(page))
}

func TestGetAccountAndTransactionByID(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	ledger := NewLedgerService(store)
	svc := NewAccountService(store)

	_, err := svc.GetAccount(ctx, testAccountID)
	assert.ErrorIs(t, err, domain.NotFound("account"))
	_, err = svc.GetBalance(ctx, testAccountID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ledger.CreateAccount(ctx, testAccountID, 0, "")
	require.NoError(t, err)
	id, err := ledger.Deposit(ctx, MovementRequest{AccountID: testAccountID, Amount: 10})
	require.NoError(t, err)

	acc, err := svc.GetAccount(ctx, testAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acc.Balance)

	tx, err := svc.GetTransactionByID(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, testAccountID, tx.AccountID)

	_, err = svc.GetTransactionByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.GetTransactionByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.NotFound("transaction"))
}
