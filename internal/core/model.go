package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalog item together with its on-hand stock.
// OnHand is only mutated through the StockLedger and never goes negative.
type Product struct {
	ID           string           `json:"id"`
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	ListPrice    decimal.Decimal  `json:"list_price"`
	OnHand       int              `json:"on_hand"`
	LastUnitCost *decimal.Decimal `json:"last_unit_cost,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// CostRecord is one entry of a product's purchase-cost history.
type CostRecord struct {
	ProductID  string          `json:"product_id"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	RecordedAt time.Time       `json:"recorded_at"`
}

type MovementDirection string

const (
	DirectionIn  MovementDirection = "in"
	DirectionOut MovementDirection = "out"
)

// Stock movement reason codes.
const (
	ReasonSale             = "sale"
	ReasonCancellation     = "cancellation"
	ReasonAdjustment       = "adjustment"
	ReasonPurchase         = "purchase"
	ReasonManualCorrection = "manual_correction"
)

// StockMovement is one append-only row per atomic stock change.
type StockMovement struct {
	ID             string            `json:"id"`
	ProductID      string            `json:"product_id"`
	Direction      MovementDirection `json:"direction"`
	Quantity       int               `json:"quantity"`
	Reason         string            `json:"reason"`
	RelatedOrderID *string           `json:"related_order_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type EntryKind string

const (
	EntryIncome  EntryKind = "income"
	EntryExpense EntryKind = "expense"
)

// Finance entry categories written by the engine itself.
const (
	CategorySales             = "sales"
	CategoryOrderAdjustment   = "order_adjustment"
	CategoryOrderCancellation = "order_cancellation"
	CategoryPurchase          = "purchase"
)

// FinanceEntry is an append-only income or expense record. Amount is always positive;
// the sign comes from Kind.
type FinanceEntry struct {
	ID             string          `json:"id"`
	Kind           EntryKind       `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	RelatedOrderID *string         `json:"related_order_id,omitempty"`
	Detail         string          `json:"detail"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Counter is a namespaced monotonically increasing integer.
type Counter struct {
	ID           string `json:"id"`
	CurrentValue int64  `json:"current_value"`
}

// CashPosition is a fold over finance entries.
type CashPosition struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Entries int             `json:"entries"`
}

// RoundMoney rounds an amount to the smallest currency unit.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func strPtr(s string) *string { return &s }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func timePtr(t time.Time) *time.Time { return &t }
