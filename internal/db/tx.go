package db

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-engine/internal/core"

	"github.com/jackc/pgx/v5"
)

// pgTx implements core.Tx on a SERIALIZABLE pgx transaction. Rows the caller may
// mutate are read with FOR UPDATE.
type pgTx struct {
	tx pgx.Tx
}

var _ core.Tx = (*pgTx)(nil)

// ── Products ─────────────────────────────────────────────────────────────────

func (t *pgTx) Product(ctx context.Context, id string) (*core.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "product", id)
	}
	return p, nil
}

func (t *pgTx) InsertProduct(ctx context.Context, p *core.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products (id, code, name, list_price, on_hand, last_unit_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Code, p.Name, p.ListPrice, p.OnHand, toNullDecimal(p.LastUnitCost), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &core.ValidationError{Field: "code", Details: fmt.Sprintf("product code %s already exists", p.Code)}
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateProduct(ctx context.Context, p *core.Product) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products
		SET name = $2, list_price = $3, on_hand = $4, last_unit_cost = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Name, p.ListPrice, p.OnHand, toNullDecimal(p.LastUnitCost), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFound("product", p.ID)
	}
	return nil
}

// ── Offers ───────────────────────────────────────────────────────────────────

func (t *pgTx) OffersForProduct(ctx context.Context, productID string) ([]core.Offer, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+offerColumns+`
		FROM offers
		WHERE $1 = ANY(product_ids)
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	return collectOffers(rows)
}

func (t *pgTx) Offer(ctx context.Context, id string) (*core.Offer, error) {
	o, err := scanOffer(t.tx.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "offer", id)
	}
	return o, nil
}

func (t *pgTx) InsertOffer(ctx context.Context, o *core.Offer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO offers (id, name, kind, active, priority, product_ids, discount_pct, override_price,
			starts_at, ends_at, min_units, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, o.ID, o.Name, o.Kind, o.Active, o.Priority, o.ProductIDs, toNullDecimal(o.DiscountPct),
		toNullDecimal(o.OverridePrice), o.StartsAt, o.EndsAt, o.MinUnits, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert offer: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOffer(ctx context.Context, o *core.Offer) error {
	tag, err := t.tx.Exec(ctx, `UPDATE offers SET active = $2 WHERE id = $1`, o.ID, o.Active)
	if err != nil {
		return fmt.Errorf("failed to update offer %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFound("offer", o.ID)
	}
	return nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (t *pgTx) Order(ctx context.Context, id string) (*core.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "order", id)
	}
	return o, nil
}

// orderParams encodes the JSONB columns of an order.
func orderParams(o *core.Order) (customer any, items []byte, err error) {
	if o.Customer != nil {
		customer, err = jsonParam(o.Customer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode customer: %w", err)
		}
	}
	lines := o.Lines
	if lines == nil {
		lines = []core.OrderLine{}
	}
	items, err = json.Marshal(lines)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode order items: %w", err)
	}
	return customer, items, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *core.Order) error {
	customer, items, err := orderParams(o)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, customer, channel, status, items, total, currency, exchange_rate,
			stock_applied, finance_applied, has_adjustments, notes, created_at, updated_at,
			confirmed_at, dispatched_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, o.ID, o.CustomerID, customer, o.Channel, o.Status, string(items), o.Total, o.Currency, o.ExchangeRate,
		o.StockApplied, o.FinanceApplied, o.HasAdjustments, o.Notes, o.CreatedAt, o.UpdatedAt,
		o.ConfirmedAt, o.DispatchedAt, o.CancelledAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *core.Order) error {
	_, items, err := orderParams(o)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, items = $3, total = $4, stock_applied = $5, finance_applied = $6,
			has_adjustments = $7, updated_at = $8, confirmed_at = $9, dispatched_at = $10, cancelled_at = $11
		WHERE id = $1
	`, o.ID, o.Status, string(items), o.Total, o.StockApplied, o.FinanceApplied, o.HasAdjustments,
		o.UpdatedAt, o.ConfirmedAt, o.DispatchedAt, o.CancelledAt)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFound("order", o.ID)
	}
	return nil
}

// ── Append-only logs ─────────────────────────────────────────────────────────

func (t *pgTx) AppendStockMovement(ctx context.Context, m core.StockMovement) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_movements (id, product_id, direction, quantity, reason, related_order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.ProductID, m.Direction, m.Quantity, m.Reason, m.RelatedOrderID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stock movement: %w", err)
	}
	return nil
}

func (t *pgTx) AppendFinanceEntry(ctx context.Context, e core.FinanceEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO finance (id, kind, amount, category, related_order_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Kind, e.Amount, e.Category, e.RelatedOrderID, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert finance entry: %w", err)
	}
	return nil
}

func (t *pgTx) AppendOrderAdjustment(ctx context.Context, a core.OrderAdjustment) error {
	lines, err := json.Marshal(a.AddedLines)
	if err != nil {
		return fmt.Errorf("failed to encode added lines: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO order_adjustments (id, order_id, previous_total, next_total, delta_total, added_lines,
			stock_applied, finance_applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.OrderID, a.PreviousTotal, a.NextTotal, a.DeltaTotal, string(lines),
		a.StockApplied, a.FinanceApplied, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order adjustment: %w", err)
	}
	return nil
}

func (t *pgTx) AppendCostRecord(ctx context.Context, c core.CostRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO product_costs (product_id, unit_cost, recorded_at)
		VALUES ($1, $2, $3)
	`, c.ProductID, c.UnitCost, c.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product cost: %w", err)
	}
	return nil
}

// ── Counters ─────────────────────────────────────────────────────────────────

// IncrementCounter is the gapless upsert: the row lock taken by ON CONFLICT DO UPDATE
// serializes concurrent callers, and a rolled-back transaction leaves no gap.
func (t *pgTx) IncrementCounter(ctx context.Context, namespace string) (int64, error) {
	var value int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO counters (id, current_value)
		VALUES ($1, 1)
		ON CONFLICT (id)
		DO UPDATE SET current_value = counters.current_value + 1
		RETURNING current_value
	`, namespace).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", namespace, err)
	}
	return value, nil
}
