package memstore

import (
	"context"
	"fmt"
	"slices"

	"fulfillment-engine/internal/core"

	"github.com/shopspring/decimal"
)

// txn is one attempt of a transaction. Reads record the committed version they saw;
// writes are staged here and only reach the Store in commit.
type txn struct {
	s     *Store
	reads map[docKey]uint64

	// insertedProducts makes commit invalidate concurrent code-uniqueness checks.
	insertedProducts bool

	products    map[string]core.Product
	offers      map[string]core.Offer
	orders      map[string]core.Order
	counters    map[string]int64
	movements   []core.StockMovement
	entries     []core.FinanceEntry
	adjustments []core.OrderAdjustment
	costs       []core.CostRecord
}

func newTxn(s *Store) *txn {
	return &txn{
		s:        s,
		reads:    make(map[docKey]uint64),
		products: make(map[string]core.Product),
		offers:   make(map[string]core.Offer),
		orders:   make(map[string]core.Order),
		counters: make(map[string]int64),
	}
}

var _ core.Tx = (*txn)(nil)

// track registers k in the read set the first time it is seen. Must be called with
// s.mu held.
func (t *txn) track(k docKey) {
	if _, ok := t.reads[k]; !ok {
		t.reads[k] = t.s.versions[k]
	}
}

// ── Products ─────────────────────────────────────────────────────────────────

func (t *txn) Product(_ context.Context, id string) (*core.Product, error) {
	if p, ok := t.products[id]; ok {
		p = cloneProduct(p)
		return &p, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.track(docKey{kindProduct, id})
	p, ok := t.s.products[id]
	if !ok {
		return nil, core.NotFound("product", id)
	}
	p = cloneProduct(p)
	return &p, nil
}

func (t *txn) InsertProduct(_ context.Context, p *core.Product) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.track(docKey{kindProduct, p.ID})
	t.track(docKey{kind: kindCodeSet})
	if _, ok := t.s.products[p.ID]; ok {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	for _, existing := range t.s.products {
		if existing.Code == p.Code {
			return &core.ValidationError{Field: "code", Details: fmt.Sprintf("product code %s already exists", p.Code)}
		}
	}
	for _, staged := range t.products {
		if staged.Code == p.Code {
			return &core.ValidationError{Field: "code", Details: fmt.Sprintf("product code %s already exists", p.Code)}
		}
	}
	t.products[p.ID] = cloneProduct(*p)
	t.insertedProducts = true
	return nil
}

func (t *txn) UpdateProduct(_ context.Context, p *core.Product) error {
	if _, staged := t.products[p.ID]; !staged {
		t.s.mu.RLock()
		t.track(docKey{kindProduct, p.ID})
		_, ok := t.s.products[p.ID]
		t.s.mu.RUnlock()
		if !ok {
			return core.NotFound("product", p.ID)
		}
	}
	t.products[p.ID] = cloneProduct(*p)
	return nil
}

// ── Offers ───────────────────────────────────────────────────────────────────

func (t *txn) OffersForProduct(_ context.Context, productID string) ([]core.Offer, error) {
	t.s.mu.RLock()
	t.track(docKey{kind: kindOfferSet})
	merged := make(map[string]core.Offer, len(t.s.offers))
	for id, o := range t.s.offers {
		merged[id] = o
	}
	t.s.mu.RUnlock()
	for id, o := range t.offers {
		merged[id] = o
	}

	var out []core.Offer
	for _, o := range merged {
		if o.AppliesTo(productID) {
			out = append(out, cloneOffer(o))
		}
	}
	sortOffers(out)
	return out, nil
}

func (t *txn) Offer(_ context.Context, id string) (*core.Offer, error) {
	if o, ok := t.offers[id]; ok {
		o = cloneOffer(o)
		return &o, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.track(docKey{kindOffer, id})
	o, ok := t.s.offers[id]
	if !ok {
		return nil, core.NotFound("offer", id)
	}
	o = cloneOffer(o)
	return &o, nil
}

func (t *txn) InsertOffer(_ context.Context, o *core.Offer) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.track(docKey{kindOffer, o.ID})
	if _, ok := t.s.offers[o.ID]; ok {
		return fmt.Errorf("offer %s already exists", o.ID)
	}
	t.offers[o.ID] = cloneOffer(*o)
	return nil
}

func (t *txn) UpdateOffer(_ context.Context, o *core.Offer) error {
	if _, staged := t.offers[o.ID]; !staged {
		t.s.mu.RLock()
		t.track(docKey{kindOffer, o.ID})
		_, ok := t.s.offers[o.ID]
		t.s.mu.RUnlock()
		if !ok {
			return core.NotFound("offer", o.ID)
		}
	}
	t.offers[o.ID] = cloneOffer(*o)
	return nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (t *txn) Order(_ context.Context, id string) (*core.Order, error) {
	if o, ok := t.orders[id]; ok {
		o = cloneOrder(o)
		return &o, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.track(docKey{kindOrder, id})
	o, ok := t.s.orders[id]
	if !ok {
		return nil, core.NotFound("order", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (t *txn) InsertOrder(_ context.Context, o *core.Order) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	t.track(docKey{kindOrder, o.ID})
	if _, ok := t.s.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	t.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *txn) UpdateOrder(_ context.Context, o *core.Order) error {
	if _, staged := t.orders[o.ID]; !staged {
		t.s.mu.RLock()
		t.track(docKey{kindOrder, o.ID})
		_, ok := t.s.orders[o.ID]
		t.s.mu.RUnlock()
		if !ok {
			return core.NotFound("order", o.ID)
		}
	}
	t.orders[o.ID] = cloneOrder(*o)
	return nil
}

// ── Append-only logs ─────────────────────────────────────────────────────────

func (t *txn) AppendStockMovement(_ context.Context, m core.StockMovement) error {
	t.movements = append(t.movements, m)
	return nil
}

func (t *txn) AppendFinanceEntry(_ context.Context, e core.FinanceEntry) error {
	t.entries = append(t.entries, e)
	return nil
}

func (t *txn) AppendOrderAdjustment(_ context.Context, a core.OrderAdjustment) error {
	a.AddedLines = cloneLines(a.AddedLines)
	t.adjustments = append(t.adjustments, a)
	return nil
}

func (t *txn) AppendCostRecord(_ context.Context, c core.CostRecord) error {
	t.costs = append(t.costs, c)
	return nil
}

// ── Counters ─────────────────────────────────────────────────────────────────

func (t *txn) IncrementCounter(_ context.Context, namespace string) (int64, error) {
	current, staged := t.counters[namespace]
	if !staged {
		t.s.mu.RLock()
		t.track(docKey{kindCounter, namespace})
		current = t.s.counters[namespace]
		t.s.mu.RUnlock()
	}
	current++
	t.counters[namespace] = current
	return current, nil
}

// ── Copies ───────────────────────────────────────────────────────────────────

func cloneDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneProduct(p core.Product) core.Product {
	p.LastUnitCost = cloneDec(p.LastUnitCost)
	return p
}

func cloneOffer(o core.Offer) core.Offer {
	o.ProductIDs = slices.Clone(o.ProductIDs)
	o.DiscountPct = cloneDec(o.DiscountPct)
	o.OverridePrice = cloneDec(o.OverridePrice)
	if o.StartsAt != nil {
		v := *o.StartsAt
		o.StartsAt = &v
	}
	if o.EndsAt != nil {
		v := *o.EndsAt
		o.EndsAt = &v
	}
	return o
}

func cloneLines(lines []core.OrderLine) []core.OrderLine {
	if lines == nil {
		return nil
	}
	out := make([]core.OrderLine, len(lines))
	for i, l := range lines {
		l.UnitCost = cloneDec(l.UnitCost)
		l.OfferID = cloneStr(l.OfferID)
		out[i] = l
	}
	return out
}

func cloneOrder(o core.Order) core.Order {
	o.Lines = cloneLines(o.Lines)
	o.CustomerID = cloneStr(o.CustomerID)
	if o.Customer != nil {
		c := *o.Customer
		o.Customer = &c
	}
	return o
}
