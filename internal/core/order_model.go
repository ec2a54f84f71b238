package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusDispatched OrderStatus = "dispatched"
	StatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus accepts the lowercase status names used on the wire.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusDispatched, StatusCancelled:
		return st, nil
	}
	return "", invalid("status", "unknown order status %q", s)
}

// rank orders the non-terminal statuses; an order may only move forward.
func (s OrderStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusDispatched:
		return 2
	}
	return -1
}

// Channel identifies where an order came from. Manual admin sales apply their side
// effects immediately; web checkouts stay pending until confirmed.
type Channel string

const (
	ChannelManual Channel = "manual"
	ChannelWeb    Channel = "web"
)

// CustomerSnapshot is embedded for guest or manual sales without a customer record.
type CustomerSnapshot struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Order is the aggregate the lifecycle state machine owns.
//
//	pending → confirmed → dispatched
//	any non-cancelled status → cancelled (terminal)
type Order struct {
	ID             string            `json:"id"`
	CustomerID     *string           `json:"customer_id,omitempty"`
	Customer       *CustomerSnapshot `json:"customer,omitempty"`
	Channel        Channel           `json:"channel"`
	Status         OrderStatus       `json:"status"`
	Lines          []OrderLine       `json:"items"`
	Total          decimal.Decimal   `json:"total"`
	Currency       string            `json:"currency"`
	ExchangeRate   decimal.Decimal   `json:"exchange_rate"`
	StockApplied   bool              `json:"stock_applied"`
	FinanceApplied bool              `json:"finance_applied"`
	HasAdjustments bool              `json:"has_adjustments"`
	Notes          string            `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ConfirmedAt    *time.Time        `json:"confirmed_at,omitempty"`
	DispatchedAt   *time.Time        `json:"dispatched_at,omitempty"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
}

// OrderLine carries the snapshots taken when the line was priced and fulfilled.
type OrderLine struct {
	ProductID   string           `json:"product_id"`
	ProductName string           `json:"product_name"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Quantity    int              `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	ListPrice   decimal.Decimal  `json:"list_price"`
	OfferID     *string          `json:"offer_id,omitempty"`
}

// Subtotal is unitPrice * quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// computeTotal sums the line subtotals and rounds to currency precision.
func computeTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return RoundMoney(total)
}

// Qualifies reports whether the order counts towards sales figures.
func (o Order) Qualifies() bool {
	return o.Status == StatusConfirmed || o.Status == StatusDispatched
}

// LineInput is a requested product quantity.
type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderInput is the intent to open a new order.
type CreateOrderInput struct {
	CustomerID   string            `json:"customer_id,omitempty"`
	Customer     *CustomerSnapshot `json:"customer,omitempty"`
	Channel      Channel           `json:"channel"`
	Lines        []LineInput       `json:"lines"`
	Currency     string            `json:"currency,omitempty"`
	ExchangeRate decimal.Decimal   `json:"exchange_rate"`
	Notes        string            `json:"notes,omitempty"`
}

// Validate rejects malformed order intents before a transaction opens.
func (in CreateOrderInput) Validate() error {
	switch in.Channel {
	case ChannelManual, ChannelWeb:
	default:
		return invalid("channel", "unknown channel %q", in.Channel)
	}
	if in.CustomerID == "" && (in.Customer == nil || strings.TrimSpace(in.Customer.Name) == "") {
		return invalid("customer", "customer_id or a customer snapshot with a name is required")
	}
	if in.ExchangeRate.IsNegative() {
		return invalid("exchange_rate", "cannot be negative")
	}
	return validateLines(in.Lines)
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return invalid("lines", "at least one line is required")
	}
	for i, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return invalid("lines", "line %d: product_id is required", i+1)
		}
		if l.Quantity < 1 {
			return invalid("lines", "line %d: quantity must be positive, got %d", i+1, l.Quantity)
		}
	}
	return nil
}

// mergeLines sums quantities per product, keeping first-seen order.
func mergeLines(lines []LineInput) []LineInput {
	idx := make(map[string]int, len(lines))
	merged := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

// OrderAdjustment is the audit record of lines added to an existing order.
type OrderAdjustment struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	PreviousTotal  decimal.Decimal `json:"previous_total"`
	NextTotal      decimal.Decimal `json:"next_total"`
	DeltaTotal     decimal.Decimal `json:"delta_total"`
	AddedLines     []OrderLine     `json:"added_lines"`
	StockApplied   bool            `json:"stock_applied"`
	FinanceApplied bool            `json:"finance_applied"`
	CreatedAt      time.Time       `json:"created_at"`
}

// OrderFilter narrows order listings. Zero values mean "no filter".
type OrderFilter struct {
	Status  OrderStatus
	Channel Channel
	From    time.Time
	To      time.Time
}

// Match applies the filter to an order; stores without native filtering use it directly.
func (f OrderFilter) Match(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Channel != "" && o.Channel != f.Channel {
		return false
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && o.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// DeliveryNote is issued for confirmed or dispatched orders.
type DeliveryNote struct {
	Number   string      `json:"number"`
	OrderID  string      `json:"order_id"`
	Customer string      `json:"customer"`
	Lines    []OrderLine `json:"lines"`
	IssuedAt time.Time   `json:"issued_at"`
}
