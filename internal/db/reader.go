package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fulfillment-engine/internal/core"
)

func (s *Store) GetProduct(ctx context.Context, id string) (*core.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "product", id)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY code, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return collectProducts(rows)
}

func (s *Store) ListOffers(ctx context.Context) ([]core.Offer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	return collectOffers(rows)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*core.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "order", id)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, filter core.OrderFilter) ([]core.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Channel != "" {
		add("channel = $%d", filter.Channel)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return collectOrders(rows)
}

func (s *Store) ListStockMovements(ctx context.Context, productID string) ([]core.StockMovement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, direction, quantity, reason, related_order_id, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY seq
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var out []core.StockMovement
	for rows.Next() {
		var m core.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Direction, &m.Quantity, &m.Reason, &m.RelatedOrderID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListFinanceEntries(ctx context.Context, from, to time.Time) ([]core.FinanceEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, amount, category, related_order_id, detail, created_at
		FROM finance
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at, seq
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query finance entries: %w", err)
	}
	defer rows.Close()

	var out []core.FinanceEntry
	for rows.Next() {
		var e core.FinanceEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Amount, &e.Category, &e.RelatedOrderID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan finance entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListOrderAdjustments(ctx context.Context, orderID string) ([]core.OrderAdjustment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, previous_total, next_total, delta_total, added_lines,
			stock_applied, finance_applied, created_at
		FROM order_adjustments
		WHERE order_id = $1
		ORDER BY seq
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order adjustments: %w", err)
	}
	defer rows.Close()

	var out []core.OrderAdjustment
	for rows.Next() {
		var a core.OrderAdjustment
		var lines []byte
		if err := rows.Scan(&a.ID, &a.OrderID, &a.PreviousTotal, &a.NextTotal, &a.DeltaTotal, &lines,
			&a.StockApplied, &a.FinanceApplied, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order adjustment: %w", err)
		}
		if err := json.Unmarshal(lines, &a.AddedLines); err != nil {
			return nil, fmt.Errorf("failed to decode added lines of adjustment %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CostHistory(ctx context.Context, productIDs []string) (map[string][]core.CostRecord, error) {
	out := make(map[string][]core.CostRecord, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, unit_cost, recorded_at
		FROM product_costs
		WHERE product_id = ANY($1)
		ORDER BY product_id, recorded_at, seq
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c core.CostRecord
		if err := rows.Scan(&c.ProductID, &c.UnitCost, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cost record: %w", err)
		}
		out[c.ProductID] = append(out[c.ProductID], c)
	}
	return out, rows.Err()
}
