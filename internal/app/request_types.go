package app

import (
	"time"

	"fulfillment-engine/internal/core"

	"github.com/shopspring/decimal"
)

// CreateProductRequest is the input for creating a catalog product.
type CreateProductRequest struct {
	Code      string           `json:"code" jsonschema:"required"`
	Name      string           `json:"name" jsonschema:"required"`
	ListPrice decimal.Decimal  `json:"list_price" jsonschema:"required"`
	OnHand    int              `json:"on_hand,omitempty" jsonschema:"minimum=0"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

// ReceiveStockRequest registers purchased units for a product.
type ReceiveStockRequest struct {
	ProductID string          `json:"-"`
	Quantity  int             `json:"quantity" jsonschema:"required,minimum=1"`
	UnitCost  decimal.Decimal `json:"unit_cost" jsonschema:"required"`
	// ReceivedAt is optional; empty means now.
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

// CorrectStockRequest is a signed manual stock correction.
type CorrectStockRequest struct {
	ProductID string `json:"-"`
	Delta     int    `json:"delta" jsonschema:"required"`
	Note      string `json:"note,omitempty"`
}

// CreateOfferRequest is the input for creating an offer.
type CreateOfferRequest struct {
	Name          string           `json:"name" jsonschema:"required"`
	Kind          core.OfferKind   `json:"kind" jsonschema:"required,enum=date_window,enum=volume_threshold"`
	Active        *bool            `json:"active,omitempty"`
	Priority      int              `json:"priority,omitempty"`
	ProductIDs    []string         `json:"product_ids" jsonschema:"required,minItems=1"`
	DiscountPct   *decimal.Decimal `json:"discount_pct,omitempty"`
	OverridePrice *decimal.Decimal `json:"override_price,omitempty"`
	StartsAt      *time.Time       `json:"starts_at,omitempty"`
	EndsAt        *time.Time       `json:"ends_at,omitempty"`
	MinUnits      int              `json:"min_units,omitempty"`
}

// OfferActiveRequest toggles an offer on or off.
type OfferActiveRequest struct {
	Active *bool `json:"active" jsonschema:"required"`
}

// CreateOrderRequest is the input for opening an order.
type CreateOrderRequest struct {
	IdempotencyKey string                 `json:"-"`
	CustomerID     string                 `json:"customer_id,omitempty"`
	Customer       *core.CustomerSnapshot `json:"customer,omitempty"`
	Channel        core.Channel           `json:"channel" jsonschema:"required,enum=manual,enum=web"`
	Lines          []core.LineInput       `json:"lines" jsonschema:"required,minItems=1"`
	Currency       string                 `json:"currency,omitempty"`
	ExchangeRate   decimal.Decimal        `json:"exchange_rate,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
}

// ListOrdersRequest filters order listings. Dates are YYYY-MM-DD and optional.
type ListOrdersRequest struct {
	Status   string
	Channel  string
	FromDate string
	ToDate   string
}

// AddLinesRequest is the body of an order amendment.
type AddLinesRequest struct {
	Lines []core.LineInput `json:"lines" jsonschema:"required,minItems=1"`
}

// StatusRequest is the body of a status transition.
type StatusRequest struct {
	Status string `json:"status" jsonschema:"required,enum=pending,enum=confirmed,enum=dispatched,enum=cancelled"`
}

// FinanceEntryRequest is a manually entered income or expense.
type FinanceEntryRequest struct {
	Kind           core.EntryKind  `json:"kind" jsonschema:"required,enum=income,enum=expense"`
	Amount         decimal.Decimal `json:"amount" jsonschema:"required"`
	Category       string          `json:"category" jsonschema:"required"`
	RelatedOrderID *string         `json:"related_order_id,omitempty"`
	Detail         string          `json:"detail,omitempty"`
}

// MetricsRequest selects the reporting window. Dates are YYYY-MM-DD.
type MetricsRequest struct {
	FromDate string
	ToDate   string
	Top      int
}
