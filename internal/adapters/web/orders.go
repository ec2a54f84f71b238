package web

import (
	"net/http"

	"fulfillment-engine/internal/app"

	"github.com/go-chi/chi/v5"
)

// IdempotencyKeyHeader lets clients retry order creation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// apiListOrders handles GET /api/orders?status=&channel=&from=&to=.
func (h *Handler) apiListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.ListOrders(r.Context(), app.ListOrdersRequest{
		Status:   q.Get("status"),
		Channel:  q.Get("channel"),
		FromDate: q.Get("from"),
		ToDate:   q.Get("to"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateOrder handles POST /api/orders.
// Body: { customer_id? | customer?, channel, lines: [{product_id, quantity}], currency?, exchange_rate?, notes? }
// A replayed Idempotency-Key answers 200 with the original order instead of 201.
func (h *Handler) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)

	result, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, result)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiGetOrder handles GET /api/orders/{id}.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiSetOrderStatus handles POST /api/orders/{id}/status.
// Body: { status }
func (h *Handler) apiSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body app.StatusRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.SetOrderStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCancelOrder handles POST /api/orders/{id}/cancel.
func (h *Handler) apiCancelOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAddOrderLines handles POST /api/orders/{id}/lines.
// Body: { lines: [{product_id, quantity}] }
func (h *Handler) apiAddOrderLines(w http.ResponseWriter, r *http.Request) {
	var body app.AddLinesRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.AddOrderLines(r.Context(), chi.URLParam(r, "id"), body.Lines)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListAdjustments handles GET /api/orders/{id}/adjustments.
func (h *Handler) apiListAdjustments(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListAdjustments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiIssueDeliveryNote handles POST /api/orders/{id}/delivery-note.
func (h *Handler) apiIssueDeliveryNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.IssueDeliveryNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, note)
}
