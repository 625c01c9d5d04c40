// Package memory is an in-process implementation of repository.Querier used
// for local runs and tests. A store-wide mutex is held for the duration of a
// unit of work and an undo log restores state when the unit fails.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/models"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"github.com/google/uuid"
)

type transactionRecord struct {
	seq       int64
	updatedAt time.Time
	tx        models.Transaction
}

// AuditEntry is a stored audit_log row.
type AuditEntry struct {
	ID int64
	repository.InsertAuditLogParams
}

// Store keeps accounts, transactions and audit entries in maps.
type Store struct {
	mu sync.Mutex

	accounts     map[string]*models.Account
	transactions map[uuid.UUID]*transactionRecord
	audit        []AuditEntry
	seq          int64

	faultsMu sync.Mutex
	faults   map[string]error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*models.Account),
		transactions: make(map[uuid.UUID]*transactionRecord),
		faults:       make(map[string]error),
	}
}

// Queries returns a query set where every call is individually atomic.
func (s *Store) Queries() repository.Querier {
	return &queries{s: s}
}

// RunInTx runs fn while holding the store lock. When fn fails, or ctx is done
// before the unit completes, every write made by fn is undone.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q := &queries{s: s, inTx: true}
	if err := fn(q); err != nil {
		q.rollback()
		return err
	}
	if err := s.takeFault("Commit"); err != nil {
		q.rollback()
		return fmt.Errorf("commit transaction: %w", err)
	}
	if err := ctx.Err(); err != nil {
		q.rollback()
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FailNext makes the next call of the named operation return err. Operation
// names are the Querier method names plus "Commit".
func (s *Store) FailNext(operation string, err error) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	s.faults[operation] = err
}

// AuditEntries returns a copy of the audit log.
func (s *Store) AuditEntries() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// SetTransactionUpdatedAt backdates a transaction. Used to age pending records.
func (s *Store) SetTransactionUpdatedAt(id uuid.UUID, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.transactions[id]
	if ok {
		rec.updatedAt = at
	}
	return ok
}

// SetBalance overwrites a balance without recording a movement. Used to
// simulate drift.
func (s *Store) SetBalance(id string, balance int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if ok {
		acc.Balance = balance
	}
	return ok
}

func (s *Store) takeFault(operation string) error {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	err, ok := s.faults[operation]
	if !ok {
		return nil
	}
	delete(s.faults, operation)
	return err
}

type queries struct {
	s    *Store
	inTx bool
	undo []func()
}

var _ repository.Querier = (*queries)(nil)

// begin locks the store for a standalone call and checks for an injected fault.
func (q *queries) begin(operation string) (func(), error) {
	if err := q.s.takeFault(operation); err != nil {
		return nil, err
	}
	if q.inTx {
		return func() {}, nil
	}
	q.s.mu.Lock()
	return q.s.mu.Unlock, nil
}

func (q *queries) onRollback(fn func()) {
	if q.inTx {
		q.undo = append(q.undo, fn)
	}
}

func (q *queries) rollback() {
	for i := len(q.undo) - 1; i >= 0; i-- {
		q.undo[i]()
	}
	q.undo = nil
}

func (q *queries) CreateAccount(ctx context.Context, arg repository.CreateAccountParams) (models.Account, error) {
	unlock, err := q.begin("CreateAccount")
	if err != nil {
		return models.Account{}, err
	}
	defer unlock()

	if _, exists := q.s.accounts[arg.ID]; exists {
		return models.Account{}, repository.ErrDuplicateAccount
	}
	if arg.Balance < 0 {
		return models.Account{}, repository.ErrNegativeBalance
	}
	acc := &models.Account{
		ID:        arg.ID,
		Balance:   arg.Balance,
		Status:    arg.Status,
		CreatedAt: arg.CreatedAt,
		UpdatedAt: arg.CreatedAt,
	}
	q.s.accounts[arg.ID] = acc
	q.onRollback(func() { delete(q.s.accounts, arg.ID) })
	return *acc, nil
}

func (q *queries) GetAccount(ctx context.Context, id string) (models.Account, error) {
	unlock, err := q.begin("GetAccount")
	if err != nil {
		return models.Account{}, err
	}
	defer unlock()

	acc, ok := q.s.accounts[id]
	if !ok {
		return models.Account{}, repository.ErrNotFound
	}
	return *acc, nil
}

func (q *queries) CreditAccount(ctx context.Context, arg repository.CreditAccountParams) (int64, error) {
	unlock, err := q.begin("CreditAccount")
	if err != nil {
		return 0, err
	}
	defer unlock()

	acc, ok := q.s.accounts[arg.ID]
	if !ok {
		return 0, nil
	}
	if arg.Amount > math.MaxInt64-acc.Balance {
		return 0, repository.ErrBalanceOverflow
	}
	q.adjust(acc, arg.Amount, arg.UpdatedAt)
	return 1, nil
}

func (q *queries) DebitAccount(ctx context.Context, arg repository.DebitAccountParams) (int64, error) {
	unlock, err := q.begin("DebitAccount")
	if err != nil {
		return 0, err
	}
	defer unlock()

	acc, ok := q.s.accounts[arg.ID]
	if !ok || acc.Balance < arg.Amount {
		return 0, nil
	}
	q.adjust(acc, -arg.Amount, arg.UpdatedAt)
	return 1, nil
}

func (q *queries) adjust(acc *models.Account, delta int64, at time.Time) {
	prevBalance, prevUpdated := acc.Balance, acc.UpdatedAt
	acc.Balance += delta
	acc.UpdatedAt = at
	q.onRollback(func() {
		acc.Balance = prevBalance
		acc.UpdatedAt = prevUpdated
	})
}

func (q *queries) CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (models.Transaction, error) {
	unlock, err := q.begin("CreateTransaction")
	if err != nil {
		return models.Transaction{}, err
	}
	defer unlock()

	if _, ok := q.s.accounts[arg.AccountID]; !ok {
		return models.Transaction{}, fmt.Errorf("transactions.account_id %q violates foreign key", arg.AccountID)
	}
	if _, exists := q.s.transactions[arg.ID]; exists {
		return models.Transaction{}, fmt.Errorf("duplicate transaction id %s", arg.ID)
	}

	q.s.seq++
	rec := &transactionRecord{
		seq:       q.s.seq,
		updatedAt: arg.CreatedAt,
		tx: models.Transaction{
			ID:          arg.ID,
			AccountID:   arg.AccountID,
			Amount:      arg.Amount,
			Kind:        arg.Kind,
			Status:      arg.Status,
			Description: arg.Description,
			Reference:   arg.Reference,
			CreatedAt:   arg.CreatedAt,
		},
	}
	q.s.transactions[arg.ID] = rec
	q.onRollback(func() { delete(q.s.transactions, arg.ID) })
	return rec.tx, nil
}

func (q *queries) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	unlock, err := q.begin("GetTransaction")
	if err != nil {
		return models.Transaction{}, err
	}
	defer unlock()

	rec, ok := q.s.transactions[id]
	if !ok {
		return models.Transaction{}, repository.ErrNotFound
	}
	return rec.tx, nil
}

func (q *queries) GetTransactionStatusForUpdate(ctx context.Context, id uuid.UUID) (string, error) {
	unlock, err := q.begin("GetTransactionStatusForUpdate")
	if err != nil {
		return "", err
	}
	defer unlock()

	rec, ok := q.s.transactions[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return rec.tx.Status, nil
}

func (q *queries) UpdateTransactionStatus(ctx context.Context, arg repository.UpdateTransactionStatusParams) (int64, error) {
	unlock, err := q.begin("UpdateTransactionStatus")
	if err != nil {
		return 0, err
	}
	defer unlock()

	rec, ok := q.s.transactions[arg.ID]
	if !ok {
		return 0, nil
	}
	prevStatus, prevUpdated := rec.tx.Status, rec.updatedAt
	rec.tx.Status = arg.Status
	rec.updatedAt = arg.UpdatedAt
	q.onRollback(func() {
		rec.tx.Status = prevStatus
		rec.updatedAt = prevUpdated
	})
	return 1, nil
}

func (q *queries) ListAccountTransactions(ctx context.Context, arg repository.ListAccountTransactionsParams) ([]models.Transaction, error) {
	unlock, err := q.begin("ListAccountTransactions")
	if err != nil {
		return nil, err
	}
	defer unlock()

	matched := q.filter(arg.AccountID, arg.Kind, arg.Start, arg.End)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.tx.CreatedAt.Equal(b.tx.CreatedAt) {
			return a.tx.CreatedAt.After(b.tx.CreatedAt)
		}
		return a.seq > b.seq
	})

	offset := int(arg.Offset)
	if offset < 0 || offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if arg.Limit > 0 && int(arg.Limit) < len(matched) {
		matched = matched[:arg.Limit]
	}

	items := make([]models.Transaction, 0, len(matched))
	for _, rec := range matched {
		items = append(items, rec.tx)
	}
	return items, nil
}

func (q *queries) CountAccountTransactions(ctx context.Context, arg repository.CountAccountTransactionsParams) (int64, error) {
	unlock, err := q.begin("CountAccountTransactions")
	if err != nil {
		return 0, err
	}
	defer unlock()

	return int64(len(q.filter(arg.AccountID, arg.Kind, arg.Start, arg.End))), nil
}

func (q *queries) filter(accountID, kind string, start, end *time.Time) []*transactionRecord {
	var out []*transactionRecord
	for _, rec := range q.s.transactions {
		tx := rec.tx
		if tx.AccountID != accountID {
			continue
		}
		if kind != "" && tx.Kind != kind {
			continue
		}
		if start != nil && tx.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && tx.CreatedAt.After(*end) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (q *queries) ListStalePendingTransactions(ctx context.Context, arg repository.ListStalePendingTransactionsParams) ([]models.Transaction, error) {
	unlock, err := q.begin("ListStalePendingTransactions")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var stale []*transactionRecord
	for _, rec := range q.s.transactions {
		if rec.tx.Status == domain.TxStatusPending && rec.updatedAt.Before(arg.Before) {
			stale = append(stale, rec)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].updatedAt.Before(stale[j].updatedAt) })
	if arg.Limit > 0 && int(arg.Limit) < len(stale) {
		stale = stale[:arg.Limit]
	}

	items := make([]models.Transaction, 0, len(stale))
	for _, rec := range stale {
		items = append(items, rec.tx)
	}
	return items, nil
}

func (q *queries) GetBalanceDrifts(ctx context.Context) ([]repository.BalanceDrift, error) {
	unlock, err := q.begin("GetBalanceDrifts")
	if err != nil {
		return nil, err
	}
	defer unlock()

	net := make(map[string]int64, len(q.s.accounts))
	for _, rec := range q.s.transactions {
		if rec.tx.Status != domain.TxStatusCompleted {
			continue
		}
		switch rec.tx.Kind {
		case domain.TxKindDeposit:
			net[rec.tx.AccountID] += rec.tx.Amount
		case domain.TxKindWithdrawal:
			net[rec.tx.AccountID] -= rec.tx.Amount
		}
	}

	var drifts []repository.BalanceDrift
	for id, acc := range q.s.accounts {
		if acc.Balance != net[id] {
			drifts = append(drifts, repository.BalanceDrift{AccountID: id, Balance: acc.Balance, LedgerNet: net[id]})
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].AccountID < drifts[j].AccountID })
	return drifts, nil
}

func (q *queries) InsertAuditLog(ctx context.Context, arg repository.InsertAuditLogParams) (int64, error) {
	unlock, err := q.begin("InsertAuditLog")
	if err != nil {
		return 0, err
	}
	defer unlock()

	id := int64(len(q.s.audit) + 1)
	q.s.audit = append(q.s.audit, AuditEntry{ID: id, InsertAuditLogParams: arg})
	n := len(q.s.audit) - 1
	q.onRollback(func() { q.s.audit = q.s.audit[:n] })
	return id, nil
}
