package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fulfillment-engine/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitBurst     int
	Logger             *zap.Logger
}

// Handler holds the ApplicationService and the request schemas it serves.
type Handler struct {
	svc     app.ApplicationService
	log     *zap.Logger
	schemas map[string][]byte
}

// NewHandler creates and wires the chi router with all routes. Background
// maintenance stops when ctx is cancelled.
func NewHandler(ctx context.Context, svc app.ApplicationService, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:     svc,
		log:     log,
		schemas: buildSchemas(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health & schemas (public) ─────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/api/schema/{name}", h.apiSchema)

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(ctx, opts.RateLimitPerMinute, opts.RateLimitBurst))
		r.Use(RequestBodyLimit(1 << 20))

		// ── Catalog ───────────────────────────────────────────────────────────
		r.Get("/api/products", h.apiListProducts)
		r.Post("/api/products", h.apiCreateProduct)
		r.Get("/api/products/{id}", h.apiGetProduct)
		r.Post("/api/products/{id}/receipts", h.apiReceiveStock)
		r.Post("/api/products/{id}/corrections", h.apiCorrectStock)
		r.Get("/api/products/{id}/movements", h.apiListMovements)
		r.Get("/api/products/{id}/price", h.apiQuotePrice)

		// ── Offers ────────────────────────────────────────────────────────────
		r.Get("/api/offers", h.apiListOffers)
		r.Post("/api/offers", h.apiCreateOffer)
		r.Post("/api/offers/{id}/active", h.apiSetOfferActive)

		// ── Orders ────────────────────────────────────────────────────────────
		r.Get("/api/orders", h.apiListOrders)
		r.Post("/api/orders", h.apiCreateOrder)
		r.Get("/api/orders/{id}", h.apiGetOrder)
		r.Post("/api/orders/{id}/status", h.apiSetOrderStatus)
		r.Post("/api/orders/{id}/cancel", h.apiCancelOrder)
		r.Post("/api/orders/{id}/lines", h.apiAddOrderLines)
		r.Get("/api/orders/{id}/adjustments", h.apiListAdjustments)
		r.Post("/api/orders/{id}/delivery-note", h.apiIssueDeliveryNote)

		// ── Sequences, finance, reports ───────────────────────────────────────
		r.Post("/api/sequences/{namespace}/next", h.apiNextSequence)
		r.Post("/api/finance/entries", h.apiRecordFinanceEntry)
		r.Get("/api/finance/balance", h.apiBalance)
		r.Get("/api/reports/finance", h.apiFinanceReport)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, name+" must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}
