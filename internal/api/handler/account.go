package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayo6706/axis-ledger/internal/api/middleware"
	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/models"
	"github.com/ayo6706/axis-ledger/internal/service"
	"github.com/go-chi/chi/v5"
)

// defaultListLimit applies when the caller sends no limit parameter.
const defaultListLimit = 10

type AccountHandler struct {
	ledger   *service.LedgerService
	accounts *service.AccountService
}

func NewAccountHandler(ledger *service.LedgerService, accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{ledger: ledger, accounts: accounts}
}

type createAccountRequest struct {
	AccountID      string `json:"account_id"`
	InitialBalance int64  `json:"initial_balance"`
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if !middleware.CanAccessAccount(r.Context(), req.AccountID) {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), req.AccountID, req.InitialBalance, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Formatted string `json:"formatted"`
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	balance, err := h.accounts.GetBalance(r.Context(), accountID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, balanceResponse{
		AccountID: accountID,
		Balance:   balance,
		Formatted: domain.FormatMinor(balance),
	})
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}

	page, err := h.accounts.ListTransactions(r.Context(), chi.URLParam(r, "accountId"), filter)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, page)
}

func parseTransactionFilter(r *http.Request) (models.TransactionFilter, error) {
	q := r.URL.Query()
	filter := models.TransactionFilter{
		Kind:  q.Get("type"),
		Page:  1,
		Limit: defaultListLimit,
	}

	var err error
	if v := q.Get("page"); v != "" {
		if filter.Page, err = strconv.Atoi(v); err != nil {
			return filter, domain.InvalidArgument("page must be an integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return filter, domain.InvalidArgument("limit must be an integer")
		}
	}
	if filter.Start, err = parseDate(q.Get("startDate"), "startDate"); err != nil {
		return filter, err
	}
	if filter.End, err = parseDate(q.Get("endDate"), "endDate"); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseDate(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.InvalidArgument(name + " must be an RFC 3339 timestamp or YYYY-MM-DD date")
}
