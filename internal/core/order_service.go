package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fulfillment-engine/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultCurrency is used when an order is created without one.
	DefaultCurrency = "USD"

	deliveryNoteNamespace = "delivery-note"
	deliveryNotePrefix    = "DN"
)

// OrderService owns the order lifecycle. Every mutating operation runs as one store
// transaction that keeps the order, product stock and the finance ledger consistent.
type OrderService interface {
	// Create prices and opens an order. Manual sales are confirmed immediately with
	// stock and income applied; web checkouts stay pending with no side effects.
	Create(ctx context.Context, in CreateOrderInput) (*Order, error)
	// TransitionStatus moves an order forward. Deferred stock and income are applied
	// exactly once on the first move out of pending. Cancelling delegates to Cancel.
	TransitionStatus(ctx context.Context, orderID string, next OrderStatus) (*Order, error)
	// Cancel reverses applied stock and income and makes the order terminal.
	Cancel(ctx context.Context, orderID string) (*Order, error)
	// ApplyAdjustment adds lines to a non-cancelled order and records only the delta.
	ApplyAdjustment(ctx context.Context, orderID string, lines []LineInput) (*Order, error)

	Get(ctx context.Context, orderID string) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
	Adjustments(ctx context.Context, orderID string) ([]OrderAdjustment, error)

	// IssueDeliveryNote numbers a delivery note for a confirmed or dispatched order.
	IssueDeliveryNote(ctx context.Context, orderID string) (*DeliveryNote, error)
}

type orderService struct {
	store    Store
	stock    StockLedger
	finance  FinanceLedger
	sequence SequenceService
	clock    Clock
	log      *zap.Logger
}

func NewOrderService(store Store, stock StockLedger, finance FinanceLedger, sequence SequenceService, clock Clock, log *zap.Logger) OrderService {
	if clock == nil {
		clock = systemClock
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &orderService{
		store:    store,
		stock:    stock,
		finance:  finance,
		sequence: sequence,
		clock:    clock,
		log:      log,
	}
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func (s *orderService) Create(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	lines := mergeLines(in.Lines)

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	rate := in.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	// Fixed before the transaction so a retried attempt writes identical documents.
	now := s.clock()
	orderID := uuid.NewString()
	applyNow := in.Channel == ChannelManual

	var created *Order
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		o := &Order{
			ID:           orderID,
			Customer:     in.Customer,
			Channel:      in.Channel,
			Status:       StatusPending,
			Currency:     currency,
			ExchangeRate: rate,
			Notes:        in.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if in.CustomerID != "" {
			o.CustomerID = strPtr(in.CustomerID)
		}

		for _, l := range lines {
			line, err := s.priceLine(ctx, tx, l, now, true)
			if err != nil {
				return err
			}
			if applyNow {
				p, err := s.stock.Adjust(ctx, tx, StockAdjustment{
					ProductID:      l.ProductID,
					Delta:          -l.Quantity,
					Reason:         ReasonSale,
					RelatedOrderID: strPtr(orderID),
					At:             now,
				})
				if err != nil {
					return err
				}
				line.UnitCost = costSnapshot(p)
			}
			o.Lines = append(o.Lines, line)
		}
		o.Total = computeTotal(o.Lines)

		if applyNow {
			o.Status = StatusConfirmed
			o.ConfirmedAt = timePtr(now)
			o.StockApplied = true
			if err := s.recordIncome(ctx, tx, o, o.Total, CategorySales, now); err != nil {
				return err
			}
			o.FinanceApplied = true
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).Info("order created",
		zap.String("order_id", created.ID),
		zap.String("channel", string(created.Channel)),
		zap.String("status", string(created.Status)),
		zap.String("total", created.Total.StringFixed(2)),
	)
	return created, nil
}

// priceLine re-reads the product inside the transaction and resolves its price at
// the requested quantity. With checkStock it also fails when on-hand stock is short.
func (s *orderService) priceLine(ctx context.Context, tx Tx, l LineInput, now time.Time, checkStock bool) (OrderLine, error) {
	p, err := tx.Product(ctx, l.ProductID)
	if err != nil {
		return OrderLine{}, err
	}
	offers, err := tx.OffersForProduct(ctx, p.ID)
	if err != nil {
		return OrderLine{}, fmt.Errorf("failed to load offers for product %s: %w", p.ID, err)
	}
	if checkStock && p.OnHand < l.Quantity {
		return OrderLine{}, &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.OnHand,
			Requested:   l.Quantity,
		}
	}

	price := ResolvePrice(*p, offers, l.Quantity, now)
	line := OrderLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   price.FinalPrice,
		Quantity:    l.Quantity,
		ListPrice:   price.ListPrice,
	}
	if price.Offer != nil {
		line.OfferID = strPtr(price.Offer.ID)
	}
	return line, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, orderID string, next OrderStatus) (*Order, error) {
	switch next {
	case StatusCancelled:
		return s.Cancel(ctx, orderID)
	case StatusPending, StatusConfirmed, StatusDispatched:
	default:
		return nil, invalid("status", "unknown order status %q", next)
	}

	now := s.clock()
	var (
		updated *Order
		from    OrderStatus
		changed bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		changed = false
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status

		if o.Status == StatusCancelled {
			return &StateTransitionError{OrderID: o.ID, From: o.Status, To: next, Reason: "cancelled orders are terminal"}
		}
		if next.rank() < o.Status.rank() {
			return &StateTransitionError{OrderID: o.ID, From: o.Status, To: next, Reason: "orders only move forward"}
		}
		if next == StatusPending {
			updated = o
			return nil
		}

		applied, err := s.applyDeferred(ctx, tx, o, now)
		if err != nil {
			return err
		}
		changed = applied

		if o.Status != next {
			o.Status = next
			if o.ConfirmedAt == nil {
				o.ConfirmedAt = timePtr(now)
			}
			if next == StatusDispatched {
				o.DispatchedAt = timePtr(now)
			}
			changed = true
		}

		if changed {
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return fmt.Errorf("failed to update order status: %w", err)
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logger.FromContext(ctx, s.log).Info("order status changed",
			zap.String("order_id", updated.ID),
			zap.String("from", string(from)),
			zap.String("to", string(updated.Status)),
		)
	}
	return updated, nil
}

// applyDeferred deducts stock and records income for an order that has not had them
// applied yet. Each effect is guarded by its flag. Reports whether anything changed.
func (s *orderService) applyDeferred(ctx context.Context, tx Tx, o *Order, now time.Time) (bool, error) {
	changed := false
	if !o.StockApplied {
		for i := range o.Lines {
			line := &o.Lines[i]
			p, err := s.stock.Adjust(ctx, tx, StockAdjustment{
				ProductID:      line.ProductID,
				Delta:          -line.Quantity,
				Reason:         ReasonSale,
				RelatedOrderID: strPtr(o.ID),
				At:             now,
			})
			if err != nil {
				return false, err
			}
			if line.UnitCost == nil {
				line.UnitCost = costSnapshot(p)
			}
		}
		o.StockApplied = true
		changed = true
	}
	if !o.FinanceApplied {
		if err := s.recordIncome(ctx, tx, o, o.Total, CategorySales, now); err != nil {
			return false, err
		}
		o.FinanceApplied = true
		changed = true
	}
	return changed, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID string) (*Order, error) {
	now := s.clock()
	var (
		cancelled *Order
		from      OrderStatus
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		if o.Status == StatusCancelled {
			return &StateTransitionError{OrderID: o.ID, From: o.Status, To: StatusCancelled, Reason: "order is already cancelled"}
		}

		if o.StockApplied {
			for _, line := range o.Lines {
				if _, err := s.stock.Adjust(ctx, tx, StockAdjustment{
					ProductID:      line.ProductID,
					Delta:          line.Quantity,
					Reason:         ReasonCancellation,
					RelatedOrderID: strPtr(o.ID),
					At:             now,
				}); err != nil {
					return err
				}
			}
		}
		if o.FinanceApplied && o.Total.IsPositive() {
			if err := s.finance.Record(ctx, tx, FinanceRecord{
				Kind:           EntryExpense,
				Amount:         o.Total,
				Category:       CategoryOrderCancellation,
				RelatedOrderID: strPtr(o.ID),
				Detail:         fmt.Sprintf("cancellation of order %s", o.ID),
				At:             now,
			}); err != nil {
				return err
			}
		}

		o.Status = StatusCancelled
		o.CancelledAt = timePtr(now)
		o.StockApplied = false
		o.FinanceApplied = false
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).Info("order cancelled",
		zap.String("order_id", cancelled.ID),
		zap.String("from", string(from)),
		zap.String("total", cancelled.Total.StringFixed(2)),
	)
	return cancelled, nil
}

func (s *orderService) ApplyAdjustment(ctx context.Context, orderID string, lines []LineInput) (*Order, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	added := mergeLines(lines)

	now := s.clock()
	adjustmentID := uuid.NewString()

	var (
		adjusted *Order
		delta    decimal.Decimal
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == StatusCancelled {
			return &StateTransitionError{OrderID: o.ID, From: o.Status, Reason: "cancelled orders cannot be adjusted"}
		}

		previous := o.Total
		addedLines := make([]OrderLine, 0, len(added))
		for _, l := range added {
			// Pending orders check availability when they leave pending.
			line, err := s.priceLine(ctx, tx, l, now, o.StockApplied)
			if err != nil {
				return err
			}
			if o.StockApplied {
				p, err := s.stock.Adjust(ctx, tx, StockAdjustment{
					ProductID:      l.ProductID,
					Delta:          -l.Quantity,
					Reason:         ReasonAdjustment,
					RelatedOrderID: strPtr(o.ID),
					At:             now,
				})
				if err != nil {
					return err
				}
				line.UnitCost = costSnapshot(p)
			}
			addedLines = append(addedLines, line)
			o.Lines = mergeOrderLine(o.Lines, line)
		}

		o.Total = computeTotal(o.Lines)
		d := o.Total.Sub(previous)
		if o.FinanceApplied && d.IsPositive() {
			if err := s.finance.Record(ctx, tx, FinanceRecord{
				Kind:           EntryIncome,
				Amount:         d,
				Category:       CategoryOrderAdjustment,
				RelatedOrderID: strPtr(o.ID),
				Detail:         fmt.Sprintf("adjustment of order %s", o.ID),
				At:             now,
			}); err != nil {
				return err
			}
		}

		if err := tx.AppendOrderAdjustment(ctx, OrderAdjustment{
			ID:             adjustmentID,
			OrderID:        o.ID,
			PreviousTotal:  previous,
			NextTotal:      o.Total,
			DeltaTotal:     d,
			AddedLines:     addedLines,
			StockApplied:   o.StockApplied,
			FinanceApplied: o.FinanceApplied,
			CreatedAt:      now,
		}); err != nil {
			return fmt.Errorf("failed to append order adjustment: %w", err)
		}

		o.HasAdjustments = true
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to update adjusted order: %w", err)
		}
		adjusted = o
		delta = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).Info("order adjusted",
		zap.String("order_id", adjusted.ID),
		zap.String("delta", delta.StringFixed(2)),
		zap.String("total", adjusted.Total.StringFixed(2)),
	)
	return adjusted, nil
}

func (s *orderService) recordIncome(ctx context.Context, tx Tx, o *Order, amount decimal.Decimal, category string, now time.Time) error {
	if !amount.IsPositive() {
		return nil
	}
	return s.finance.Record(ctx, tx, FinanceRecord{
		Kind:           EntryIncome,
		Amount:         amount,
		Category:       category,
		RelatedOrderID: strPtr(o.ID),
		Detail:         fmt.Sprintf("sale of order %s", o.ID),
		At:             now,
	})
}

// mergeOrderLine folds an added line into an existing one only when every snapshot
// matches; otherwise the pre-existing portion keeps its own price and cost.
func mergeOrderLine(lines []OrderLine, added OrderLine) []OrderLine {
	for i := range lines {
		l := &lines[i]
		if l.ProductID == added.ProductID &&
			l.UnitPrice.Equal(added.UnitPrice) &&
			equalDecPtr(l.UnitCost, added.UnitCost) &&
			equalStrPtr(l.OfferID, added.OfferID) {
			l.Quantity += added.Quantity
			return lines
		}
	}
	return append(lines, added)
}

func costSnapshot(p *Product) *decimal.Decimal {
	if p == nil || p.LastUnitCost == nil {
		return nil
	}
	return decPtr(*p.LastUnitCost)
}

func equalDecPtr(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *orderService) List(ctx context.Context, filter OrderFilter) ([]Order, error) {
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) Adjustments(ctx context.Context, orderID string) ([]OrderAdjustment, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListOrderAdjustments(ctx, orderID)
}

// ── Documents ────────────────────────────────────────────────────────────────

func (s *orderService) IssueDeliveryNote(ctx context.Context, orderID string) (*DeliveryNote, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Qualifies() {
		return nil, &StateTransitionError{OrderID: o.ID, From: o.Status, Reason: "delivery notes require a confirmed or dispatched order"}
	}

	number, err := s.sequence.NextDocumentNumber(ctx, deliveryNoteNamespace, deliveryNotePrefix)
	if err != nil {
		return nil, err
	}

	customer := ""
	switch {
	case o.Customer != nil:
		customer = o.Customer.Name
	case o.CustomerID != nil:
		customer = *o.CustomerID
	}

	logger.FromContext(ctx, s.log).Info("delivery note issued",
		zap.String("order_id", o.ID),
		zap.String("number", number),
	)
	return &DeliveryNote{
		Number:   number,
		OrderID:  o.ID,
		Customer: customer,
		Lines:    o.Lines,
		IssuedAt: s.clock(),
	}, nil
}
