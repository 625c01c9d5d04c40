package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/lock"
	"github.com/ayo6706/axis-ledger/internal/models"
	"github.com/ayo6706/axis-ledger/internal/observability"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultUnitTimeout   = 5 * time.Second
	outcomeLookupTimeout = 2 * time.Second
)

// LedgerService moves funds into and out of single accounts. Each call is one
// atomic unit of work: the balance change and its transaction record commit
// together or not at all.
type LedgerService struct {
	store       QueryStore
	audit       *AuditService
	locker      lock.AccountLocker
	now         func() time.Time
	newID       func() uuid.UUID
	unitTimeout time.Duration
}

// LedgerOption customizes a LedgerService.
type LedgerOption func(*LedgerService)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

// WithIDGenerator overrides the transaction id source.
func WithIDGenerator(newID func() uuid.UUID) LedgerOption {
	return func(s *LedgerService) { s.newID = newID }
}

// WithUnitTimeout bounds every unit of work.
func WithUnitTimeout(d time.Duration) LedgerOption {
	return func(s *LedgerService) {
		if d > 0 {
			s.unitTimeout = d
		}
	}
}

// WithAccountLocker serializes writes per account before the unit begins.
func WithAccountLocker(l lock.AccountLocker) LedgerOption {
	return func(s *LedgerService) {
		if l != nil {
			s.locker = l
		}
	}
}

func NewLedgerService(store QueryStore, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:       store,
		audit:       NewAuditService(store),
		locker:      lock.Nop{},
		now:         time.Now,
		newID:       uuid.New,
		unitTimeout: defaultUnitTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MovementRequest describes a single deposit or withdrawal.
type MovementRequest struct {
	AccountID   string
	Amount      int64
	Description string
	Reference   string
	// ActorID is recorded in the audit trail. Empty means system.
	ActorID string
}

func (r MovementRequest) validate() error {
	if !domain.ValidAccountID(r.AccountID) {
		return domain.InvalidArgument("account id must be a 14-digit national id")
	}
	if r.Amount <= 0 {
		return domain.InvalidArgument("amount must be greater than zero")
	}
	return nil
}

// CreateAccount opens an account with an optional initial balance. A positive
// initial balance is recorded as a completed deposit in the same unit.
func (s *LedgerService) CreateAccount(ctx context.Context, accountID string, initialBalance int64, actorID string) (acc *models.Account, err error) {
	start := time.Now()
	defer func() { observability.ObserveLedgerOperation("create_account", outcomeLabel(err), time.Since(start)) }()

	if !domain.ValidAccountID(accountID) {
		return nil, domain.InvalidArgument("account id must be a 14-digit national id")
	}
	if initialBalance < 0 {
		return nil, domain.InvalidArgument("initial balance cannot be negative")
	}

	unitCtx, cancel := context.WithTimeout(ctx, s.unitTimeout)
	defer cancel()

	now := s.now().UTC().Truncate(time.Microsecond)
	var created models.Account
	err = s.store.RunInTx(unitCtx, func(qtx repository.Querier) error {
		var err error
		created, err = qtx.CreateAccount(unitCtx, repository.CreateAccountParams{
			ID:        accountID,
			Balance:   initialBalance,
			Status:    domain.AccountStatusActive,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		if err := s.audit.Write(unitCtx, qtx, auditEntityAccount, accountID, actorID, "create", "", domain.AccountStatusActive, nil); err != nil {
			return err
		}
		if initialBalance == 0 {
			return nil
		}

		txID := s.newID()
		if _, err := qtx.CreateTransaction(unitCtx, repository.CreateTransactionParams{
			ID:          txID,
			AccountID:   accountID,
			Amount:      initialBalance,
			Kind:        domain.TxKindDeposit,
			Status:      domain.TxStatusCompleted,
			Description: domain.DefaultInitialDepositDescription,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("record initial deposit: %w", err)
		}
		return s.audit.Write(unitCtx, qtx, auditEntityTransaction, txID.String(), actorID, "create", "", domain.TxStatusCompleted, movementMetadata(initialBalance, ""))
	})
	if err != nil {
		if isContextError(unitCtx, err) {
			if existing, lookupErr := s.lookupAccount(accountID); lookupErr == nil && existing.CreatedAt.Equal(now) {
				return existing, nil
			}
			return nil, domain.Internal("create account aborted", err)
		}
		return nil, storeError("account", err)
	}

	zap.L().Info("account created", zap.String("account_id", accountID), zap.String("initial_balance", domain.FormatMinor(initialBalance)))
	return &created, nil
}

// Deposit credits req.Amount to the account and returns the transaction id.
func (s *LedgerService) Deposit(ctx context.Context, req MovementRequest) (uuid.UUID, error) {
	if req.Description == "" {
		req.Description = domain.DefaultDepositDescription
	}
	return s.move(ctx, domain.TxKindDeposit, req)
}

// Withdraw debits req.Amount from the account and returns the transaction id.
// The balance never goes below zero.
func (s *LedgerService) Withdraw(ctx context.Context, req MovementRequest) (uuid.UUID, error) {
	if req.Description == "" {
		req.Description = domain.DefaultWithdrawalDescription
	}
	return s.move(ctx, domain.TxKindWithdrawal, req)
}

func (s *LedgerService) move(ctx context.Context, kind string, req MovementRequest) (id uuid.UUID, err error) {
	start := time.Now()
	defer func() { observability.ObserveLedgerOperation(kind, outcomeLabel(err), time.Since(start)) }()

	if err := req.validate(); err != nil {
		return uuid.Nil, err
	}

	release := s.lockAccount(ctx, req.AccountID)
	defer release()

	unitCtx, cancel := context.WithTimeout(ctx, s.unitTimeout)
	defer cancel()

	txID := s.newID()
	// outcome carries a business failure out of a unit that still commits.
	var outcome error
	err = s.store.RunInTx(unitCtx, func(qtx repository.Querier) error {
		var err error
		outcome, err = s.apply(unitCtx, qtx, kind, txID, req)
		return err
	})
	if err != nil {
		return s.resolveAborted(unitCtx, kind, txID, outcome, err)
	}
	if outcome != nil {
		zap.L().Info("ledger movement rejected",
			zap.String("kind", kind),
			zap.String("account_id", req.AccountID),
			zap.String("transaction_id", txID.String()),
			zap.Error(outcome),
		)
		return uuid.Nil, outcome
	}
	return txID, nil
}

// apply runs inside the unit. A non-nil outcome is a business failure that
// commits; a non-nil error aborts the unit.
func (s *LedgerService) apply(ctx context.Context, qtx repository.Querier, kind string, txID uuid.UUID, req MovementRequest) (outcome error, err error) {
	acc, err := qtx.GetAccount(ctx, req.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound("account"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if kind == domain.TxKindWithdrawal && acc.Balance < req.Amount {
		return domain.InsufficientFunds(), nil
	}
	if kind == domain.TxKindDeposit && acc.Balance > math.MaxInt64-req.Amount {
		return domain.InvalidArgument("deposit would exceed the maximum balance"), nil
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if _, err := qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
		ID:          txID,
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Kind:        kind,
		Status:      domain.TxStatusPending,
		Description: req.Description,
		Reference:   req.Reference,
		CreatedAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("create pending transaction: %w", err)
	}
	metadata := movementMetadata(req.Amount, req.Reference)
	if err := s.audit.Write(ctx, qtx, auditEntityTransaction, txID.String(), req.ActorID, "create", "", domain.TxStatusPending, metadata); err != nil {
		return nil, err
	}

	var rows int64
	if kind == domain.TxKindDeposit {
		rows, err = qtx.CreditAccount(ctx, repository.CreditAccountParams{ID: req.AccountID, Amount: req.Amount, UpdatedAt: now})
	} else {
		rows, err = qtx.DebitAccount(ctx, repository.DebitAccountParams{ID: req.AccountID, Amount: req.Amount, UpdatedAt: now})
	}
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", kind, err)
	}

	if rows == 0 {
		outcome, err := s.explainMiss(ctx, qtx, kind, req)
		if err != nil {
			return nil, err
		}
		if err := transitionTransactionState(ctx, qtx, s.audit, transition{
			transactionID: txID,
			next:          domain.TxStatusFailed,
			actorID:       req.ActorID,
			action:        "fail",
			metadata:      failureMetadata(outcome),
			at:            now,
		}); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	if err := transitionTransactionState(ctx, qtx, s.audit, transition{
		transactionID: txID,
		next:          domain.TxStatusCompleted,
		actorID:       req.ActorID,
		action:        "complete",
		metadata:      metadata,
		at:            now,
	}); err != nil {
		return nil, err
	}
	return nil, nil
}

// explainMiss classifies a balance update that matched no row. An
// unconditional credit can only miss when the account is gone.
func (s *LedgerService) explainMiss(ctx context.Context, qtx repository.Querier, kind string, req MovementRequest) (error, error) {
	if kind == domain.TxKindDeposit {
		return domain.NotFound("account"), nil
	}
	acc, err := qtx.GetAccount(ctx, req.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound("account"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("re-read account: %w", err)
	}
	if acc.Balance < req.Amount {
		return domain.InsufficientFunds(), nil
	}
	zap.L().Error("conditional balance update matched no rows",
		zap.String("kind", kind),
		zap.String("account_id", req.AccountID),
		zap.Int64("balance", acc.Balance),
		zap.Int64("amount", req.Amount),
	)
	return domain.Internal(kind+" lost update", nil), nil
}

// resolveAborted decides the result of a unit that did not report success.
// When the context ended, the commit may still have landed, so the stored
// record is the authority.
func (s *LedgerService) resolveAborted(unitCtx context.Context, kind string, txID uuid.UUID, outcome, err error) (uuid.UUID, error) {
	if !isContextError(unitCtx, err) {
		zap.L().Error("ledger unit rolled back", zap.String("kind", kind), zap.String("transaction_id", txID.String()), zap.Error(err))
		return uuid.Nil, storeError("account", err)
	}

	lookupCtx, cancel := context.WithTimeout(context.Background(), outcomeLookupTimeout)
	defer cancel()
	tx, lookupErr := s.store.Queries().GetTransaction(lookupCtx, txID)
	if lookupErr == nil {
		switch tx.Status {
		case domain.TxStatusCompleted:
			return txID, nil
		case domain.TxStatusFailed:
			if outcome != nil {
				return uuid.Nil, outcome
			}
		}
	}
	zap.L().Warn("ledger unit aborted by context", zap.String("kind", kind), zap.String("transaction_id", txID.String()), zap.Error(err))
	return uuid.Nil, domain.Internal(kind+" aborted", err)
}

func (s *LedgerService) lookupAccount(accountID string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(context.Background(), outcomeLookupTimeout)
	defer cancel()
	acc, err := s.store.Queries().GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *LedgerService) lockAccount(ctx context.Context, accountID string) func() {
	release, err := s.locker.Lock(ctx, accountID)
	if err != nil {
		observability.IncrementAccountLockEvent("bypassed")
		zap.L().Warn("account lock unavailable, proceeding without it", zap.String("account_id", accountID), zap.Error(err))
		return func() {}
	}
	observability.IncrementAccountLockEvent("acquired")
	return release
}

func isContextError(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(domain.KindOf(err))
}

func movementMetadata(amount int64, reference string) []byte {
	payload := map[string]string{"amount": domain.FormatMinor(amount)}
	if reference != "" {
		payload["reference"] = reference
	}
	out, _ := json.Marshal(payload)
	return out
}

func failureMetadata(reason error) []byte {
	out, _ := json.Marshal(map[string]string{
		"reason": string(domain.KindOf(reason)),
		"detail": reason.Error(),
	})
	return out
}
