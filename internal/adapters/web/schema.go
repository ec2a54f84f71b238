package web

import (
	"encoding/json"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"fulfillment-engine/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// requestTypes names the payloads clients may ask a schema for.
var requestTypes = map[string]any{
	"product":       app.CreateProductRequest{},
	"receipt":       app.ReceiveStockRequest{},
	"correction":    app.CorrectStockRequest{},
	"offer":         app.CreateOfferRequest{},
	"offer-active":  app.OfferActiveRequest{},
	"order":         app.CreateOrderRequest{},
	"order-lines":   app.AddLinesRequest{},
	"order-status":  app.StatusRequest{},
	"finance-entry": app.FinanceEntryRequest{},
}

// buildSchemas reflects every request payload once at startup.
func buildSchemas() map[string][]byte {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	out := make(map[string][]byte, len(requestTypes))
	for name, v := range requestTypes {
		raw, err := json.Marshal(reflector.Reflect(v))
		if err != nil {
			panic("jsonschema reflection failed for " + name + ": " + err.Error())
		}
		out[name] = raw
	}
	return out
}

// apiSchema handles GET /api/schema/{name}.
func (h *Handler) apiSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, ok := h.schemas[name]
	if !ok {
		names := make([]string, 0, len(h.schemas))
		for n := range h.schemas {
			names = append(names, n)
		}
		sort.Strings(names)
		writeError(w, r, "unknown schema "+name+"; available: "+strings.Join(names, ", "), "NOT_FOUND", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(raw)
}
