package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/idempotency"
	"fulfillment-engine/internal/logger"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: logger.RequestID(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps a service error onto its HTTP status and error code.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, r, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrInsufficientStock):
		writeError(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusConflict)
	case errors.Is(err, core.ErrInvalidStateTransition):
		writeError(w, r, err.Error(), "INVALID_STATE_TRANSITION", http.StatusConflict)
	case errors.Is(err, idempotency.ErrInProgress):
		writeError(w, r, err.Error(), "IDEMPOTENCY_IN_PROGRESS", http.StatusConflict)
	case errors.Is(err, core.ErrTransientConflict):
		w.Header().Set("Retry-After", "1")
		writeError(w, r, "the request conflicted with concurrent updates, retry shortly", "TRANSIENT_CONFLICT", http.StatusServiceUnavailable)
	default:
		logger.FromContext(r.Context(), h.log).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
