package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/axis-ledger/internal/api/middleware"
	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type TransactionHandler struct {
	ledger   *service.LedgerService
	accounts *service.AccountService
}

func NewTransactionHandler(ledger *service.LedgerService, accounts *service.AccountService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, accounts: accounts}
}

type movementRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type movementResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
}

func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, domain.TxKindDeposit, h.ledger.Deposit)
}

func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, domain.TxKindWithdrawal, h.ledger.Withdraw)
}

func (h *TransactionHandler) move(w http.ResponseWriter, r *http.Request, kind string, op func(ctx context.Context, req service.MovementRequest) (uuid.UUID, error)) {
	var body movementRequest
	if err := decodeJSON(r, &body); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	accountID := chi.URLParam(r, "accountId")
	txID, err := op(r.Context(), service.MovementRequest{
		AccountID:   accountID,
		Amount:      body.Amount,
		Description: body.Description,
		Reference:   body.Reference,
		ActorID:     middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusCreated, movementResponse{
		TransactionID: txID,
		AccountID:     accountID,
		Type:          kind,
		Amount:        body.Amount,
		Status:        domain.TxStatusCompleted,
	})
}

// GetTransaction hides transactions of other accounts behind a 404.
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.accounts.GetTransactionByID(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	if !middleware.CanAccessAccount(r.Context(), tx.AccountID) {
		RespondServiceError(w, r, domain.NotFound("transaction"))
		return
	}
	RespondJSON(w, http.StatusOK, tx)
}
