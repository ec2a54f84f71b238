package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StockAdjustment is a signed change to one product's on-hand quantity.
type StockAdjustment struct {
	ProductID      string
	Delta          int
	Reason         string
	RelatedOrderID *string
	At             time.Time
}

// StockLedger maintains on-hand quantities and the append-only movement log.
type StockLedger interface {
	// Adjust applies one stock change inside the caller's transaction. A deduction
	// that would leave the product negative fails with *InsufficientStockError and
	// must abort the enclosing transaction. Returns the updated product.
	Adjust(ctx context.Context, tx Tx, adj StockAdjustment) (*Product, error)

	// Movements lists committed movements for a product, oldest first.
	Movements(ctx context.Context, productID string) ([]StockMovement, error)
}

type stockLedger struct {
	reader Reader
}

func NewStockLedger(reader Reader) StockLedger {
	return &stockLedger{reader: reader}
}

func (l *stockLedger) Adjust(ctx context.Context, tx Tx, adj StockAdjustment) (*Product, error) {
	if adj.Delta == 0 {
		return nil, invalid("delta", "stock adjustment for product %s must be non-zero", adj.ProductID)
	}
	if adj.Reason == "" {
		return nil, invalid("reason", "stock adjustment requires a reason code")
	}

	p, err := tx.Product(ctx, adj.ProductID)
	if err != nil {
		return nil, err
	}

	next := p.OnHand + adj.Delta
	if next < 0 {
		return nil, &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.OnHand,
			Requested:   -adj.Delta,
		}
	}

	p.OnHand = next
	p.UpdatedAt = adj.At
	if err := tx.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update stock for product %s: %w", p.ID, err)
	}

	m := StockMovement{
		ID:             uuid.NewString(),
		ProductID:      p.ID,
		Direction:      DirectionIn,
		Quantity:       adj.Delta,
		Reason:         adj.Reason,
		RelatedOrderID: adj.RelatedOrderID,
		CreatedAt:      adj.At,
	}
	if adj.Delta < 0 {
		m.Direction = DirectionOut
		m.Quantity = -adj.Delta
	}
	if err := tx.AppendStockMovement(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to append stock movement for product %s: %w", p.ID, err)
	}
	return p, nil
}

func (l *stockLedger) Movements(ctx context.Context, productID string) ([]StockMovement, error) {
	if _, err := l.reader.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return l.reader.ListStockMovements(ctx, productID)
}
