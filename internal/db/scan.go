package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfillment-engine/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `id, code, name, list_price, on_hand, last_unit_cost, created_at, updated_at`

const offerColumns = `id, name, kind, active, priority, product_ids, discount_pct, override_price,
	starts_at, ends_at, min_units, created_at`

const orderColumns = `id, customer_id, customer, channel, status, items, total, currency, exchange_rate,
	stock_applied, finance_applied, has_adjustments, notes, created_at, updated_at,
	confirmed_at, dispatched_at, cancelled_at`

func scanProduct(row pgx.Row) (*core.Product, error) {
	var p core.Product
	var cost decimal.NullDecimal
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.ListPrice, &p.OnHand, &cost, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.LastUnitCost = fromNullDecimal(cost)
	return &p, nil
}

func scanOffer(row pgx.Row) (*core.Offer, error) {
	var o core.Offer
	var pct, override decimal.NullDecimal
	if err := row.Scan(&o.ID, &o.Name, &o.Kind, &o.Active, &o.Priority, &o.ProductIDs, &pct, &override,
		&o.StartsAt, &o.EndsAt, &o.MinUnits, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.DiscountPct = fromNullDecimal(pct)
	o.OverridePrice = fromNullDecimal(override)
	return &o, nil
}

func scanOrder(row pgx.Row) (*core.Order, error) {
	var o core.Order
	var customer, items []byte
	if err := row.Scan(&o.ID, &o.CustomerID, &customer, &o.Channel, &o.Status, &items, &o.Total, &o.Currency,
		&o.ExchangeRate, &o.StockApplied, &o.FinanceApplied, &o.HasAdjustments, &o.Notes, &o.CreatedAt,
		&o.UpdatedAt, &o.ConfirmedAt, &o.DispatchedAt, &o.CancelledAt); err != nil {
		return nil, err
	}
	if len(customer) > 0 {
		o.Customer = &core.CustomerSnapshot{}
		if err := json.Unmarshal(customer, o.Customer); err != nil {
			return nil, fmt.Errorf("failed to decode customer of order %s: %w", o.ID, err)
		}
	}
	if err := json.Unmarshal(items, &o.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode items of order %s: %w", o.ID, err)
	}
	return &o, nil
}

func collectProducts(rows pgx.Rows) ([]core.Product, error) {
	defer rows.Close()
	var out []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func collectOffers(rows pgx.Rows) ([]core.Offer, error) {
	defer rows.Close()
	var out []core.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func collectOrders(rows pgx.Rows) ([]core.Order, error) {
	defer rows.Close()
	var out []core.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// notFoundOr maps pgx.ErrNoRows to core.ErrNotFound and wraps everything else.
func notFoundOr(err error, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NotFound(kind, id)
	}
	return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// jsonParam encodes v for a JSONB parameter; nil stays NULL.
func jsonParam(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
