package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayo6706/axis-ledger/internal/api/middleware"
	"github.com/ayo6706/axis-ledger/internal/api/problem"
	"github.com/ayo6706/axis-ledger/internal/domain"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondServiceError maps a ledger error kind to its problem response.
// Internal details are logged, never returned.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	detail := err.Error()
	var derr *domain.Error
	if errors.As(err, &derr) {
		detail = derr.Detail
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		RespondError(w, r, http.StatusNotFound, "ledger/not-found", detail)
	case domain.KindConflict:
		RespondError(w, r, http.StatusConflict, "ledger/conflict", detail)
	case domain.KindInsufficientFunds:
		RespondError(w, r, http.StatusUnprocessableEntity, "ledger/insufficient-funds", detail)
	case domain.KindInvalidArgument:
		RespondError(w, r, http.StatusBadRequest, "ledger/invalid-argument", detail)
	default:
		zap.L().Error("ledger request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
		)
		RespondError(w, r, http.StatusInternalServerError, "ledger/internal", "internal error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
