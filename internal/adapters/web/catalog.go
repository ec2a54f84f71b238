package web

import (
	"net/http"

	"fulfillment-engine/internal/app"

	"github.com/go-chi/chi/v5"
)

// apiListProducts handles GET /api/products.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateProduct handles POST /api/products.
// Body: { code, name, list_price, on_hand?, unit_cost? }
func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req app.CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, product)
}

// apiGetProduct handles GET /api/products/{id}.
func (h *Handler) apiGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// apiReceiveStock handles POST /api/products/{id}/receipts.
// Body: { quantity, unit_cost, received_at? }
func (h *Handler) apiReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req app.ReceiveStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProductID = chi.URLParam(r, "id")
	product, err := h.svc.ReceiveStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// apiCorrectStock handles POST /api/products/{id}/corrections.
// Body: { delta, note? }
func (h *Handler) apiCorrectStock(w http.ResponseWriter, r *http.Request) {
	var req app.CorrectStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProductID = chi.URLParam(r, "id")
	product, err := h.svc.CorrectStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// apiListMovements handles GET /api/products/{id}/movements.
func (h *Handler) apiListMovements(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListMovements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiQuotePrice handles GET /api/products/{id}/price?qty=N.
func (h *Handler) apiQuotePrice(w http.ResponseWriter, r *http.Request) {
	qty, ok := queryInt(w, r, "qty", 1)
	if !ok {
		return
	}
	result, err := h.svc.QuotePrice(r.Context(), chi.URLParam(r, "id"), qty)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListOffers handles GET /api/offers.
func (h *Handler) apiListOffers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListOffers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateOffer handles POST /api/offers.
func (h *Handler) apiCreateOffer(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	offer, err := h.svc.CreateOffer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, offer)
}

// apiSetOfferActive handles POST /api/offers/{id}/active.
// Body: { active }
func (h *Handler) apiSetOfferActive(w http.ResponseWriter, r *http.Request) {
	var body app.OfferActiveRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Active == nil {
		writeError(w, r, "active is required", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}
	offer, err := h.svc.SetOfferActive(r.Context(), chi.URLParam(r, "id"), *body.Active)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, offer)
}
