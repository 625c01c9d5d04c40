package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/axis-ledger/internal/repository"
)

// Audit entity types.
const (
	auditEntityAccount     = "account"
	auditEntityTransaction = "transaction"
)

// AuditService writes immutable audit trail entries.
type AuditService struct {
	store QueryStore
}

func NewAuditService(store QueryStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record through qtx so it commits or
// rolls back with the surrounding unit.
func (s *AuditService) Write(ctx context.Context, qtx repository.Querier, entityType, entityID, actorID, action, prevState, nextState string, metadata []byte) error {
	if _, err := qtx.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    textParam(actorID),
		Action:     action,
		PrevState:  textParam(prevState),
		NextState:  textParam(nextState),
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
