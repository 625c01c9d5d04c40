package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/observability"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultPendingMaxAge = 2 * time.Minute
	sweepBatchSize       = 100
)

// ReconciliationService verifies ledger integrity invariants.
type ReconciliationService struct {
	store         QueryStore
	audit         *AuditService
	pendingMaxAge time.Duration
	now           func() time.Time
}

// NewReconciliationService creates a reconciliation service. Transactions
// pending for longer than pendingMaxAge are treated as abandoned.
func NewReconciliationService(store QueryStore, pendingMaxAge time.Duration) *ReconciliationService {
	if pendingMaxAge <= 0 {
		pendingMaxAge = defaultPendingMaxAge
	}
	return &ReconciliationService{
		store:         store,
		audit:         NewAuditService(store),
		pendingMaxAge: pendingMaxAge,
		now:           time.Now,
	}
}

// ReconciliationReport summarizes one run.
type ReconciliationReport struct {
	SweptPending int
	Drifts       []repository.BalanceDrift
}

// Run finalizes abandoned pending transactions, then checks that every
// balance equals the net of its completed transactions.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationReport, error) {
	swept, err := s.SweepStalePending(ctx)
	if err != nil {
		return nil, err
	}

	drifts, err := s.store.Queries().GetBalanceDrifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("run balance drift query: %w", err)
	}

	for _, d := range drifts {
		observability.IncrementBalanceDrift()
		zap.L().Error("CRITICAL: account balance drift detected",
			zap.String("account_id", d.AccountID),
			zap.Int64("balance", d.Balance),
			zap.Int64("ledger_net", d.LedgerNet),
		)
	}
	if len(drifts) == 0 {
		zap.L().Info("Ledger Balanced", zap.Int("swept_pending", swept))
	}

	return &ReconciliationReport{SweptPending: swept, Drifts: drifts}, nil
}

// SweepStalePending marks pending transactions older than the configured age
// as failed. Balances are untouched: a pending record never had its balance
// change committed.
func (s *ReconciliationService) SweepStalePending(ctx context.Context) (int, error) {
	total := 0
	for {
		var swept int
		err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
			now := s.now().UTC()
			stale, err := qtx.ListStalePendingTransactions(ctx, repository.ListStalePendingTransactionsParams{
				Before: now.Add(-s.pendingMaxAge),
				Limit:  sweepBatchSize,
			})
			if err != nil {
				return fmt.Errorf("list stale pending transactions: %w", err)
			}
			for _, tx := range stale {
				if err := transitionTransactionState(ctx, qtx, s.audit, transition{
					transactionID: tx.ID,
					next:          domain.TxStatusFailed,
					action:        "expire",
					metadata:      []byte(`{"reason":"pending_timeout"}`),
					at:            now,
				}); err != nil {
					return err
				}
				zap.L().Warn("stale pending transaction marked failed",
					zap.String("transaction_id", tx.ID.String()),
					zap.String("account_id", tx.AccountID),
				)
			}
			swept = len(stale)
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("sweep stale pending: %w", err)
		}
		total += swept
		observability.AddStalePendingSwept(swept)
		if swept < sweepBatchSize {
			return total, nil
		}
	}
}
