package web

import (
	"net/http"

	"fulfillment-engine/internal/app"

	"github.com/go-chi/chi/v5"
)

// apiNextSequence handles POST /api/sequences/{namespace}/next.
func (h *Handler) apiNextSequence(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.NextSequence(r.Context(), chi.URLParam(r, "namespace"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRecordFinanceEntry handles POST /api/finance/entries.
// Body: { kind, amount, category, related_order_id?, detail? }
func (h *Handler) apiRecordFinanceEntry(w http.ResponseWriter, r *http.Request) {
	var req app.FinanceEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.svc.RecordFinanceEntry(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}

// apiBalance handles GET /api/finance/balance?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) apiBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.GetBalance(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiFinanceReport handles GET /api/reports/finance?from=YYYY-MM-DD&to=YYYY-MM-DD&top=N.
func (h *Handler) apiFinanceReport(w http.ResponseWriter, r *http.Request) {
	top, ok := queryInt(w, r, "top", 0)
	if !ok {
		return
	}
	q := r.URL.Query()
	report, err := h.svc.FinanceMetrics(r.Context(), app.MetricsRequest{
		FromDate: q.Get("from"),
		ToDate:   q.Get("to"),
		Top:      top,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}
