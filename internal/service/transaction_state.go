package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"github.com/google/uuid"
)

// A transaction leaves pending exactly once. Reversal of a completed
// transaction is modelled but no ledger operation produces it.
var transactionTransitions = map[string]map[string]struct{}{
	domain.TxStatusPending: {
		domain.TxStatusCompleted: {},
		domain.TxStatusFailed:    {},
	},
	domain.TxStatusCompleted: {
		domain.TxStatusReversed: {},
	},
	domain.TxStatusFailed:   {},
	domain.TxStatusReversed: {},
}

func normalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

func canTransition(current, next string) bool {
	current = normalizeState(current)
	next = normalizeState(next)
	nextStates, ok := transactionTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

type transition struct {
	transactionID uuid.UUID
	next          string
	actorID       string
	action        string
	metadata      []byte
	at            time.Time
}

func transitionTransactionState(ctx context.Context, qtx repository.Querier, audit *AuditService, t transition) error {
	currentState, err := qtx.GetTransactionStatusForUpdate(ctx, t.transactionID)
	if err != nil {
		return fmt.Errorf("get current transaction state: %w", err)
	}

	if normalizeState(currentState) == normalizeState(t.next) {
		return nil
	}
	if !canTransition(currentState, t.next) {
		return fmt.Errorf("invalid transaction state transition: %s -> %s", currentState, t.next)
	}

	rows, err := qtx.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{
		ID:        t.transactionID,
		Status:    t.next,
		UpdatedAt: t.at,
	})
	if err != nil {
		return fmt.Errorf("update transaction state: %w", err)
	}
	if err := requireExactlyOne(rows, "update transaction state"); err != nil {
		return err
	}

	return audit.Write(ctx, qtx, auditEntityTransaction, t.transactionID.String(), t.actorID, t.action, currentState, t.next, t.metadata)
}
