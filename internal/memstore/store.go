// Package memstore is an in-process implementation of core.Store with optimistic
// concurrency control. It backs tests and single-node deployments without Postgres.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/logger"

	"go.uber.org/zap"
)

const (
	DefaultMaxRetries = 10
	defaultBackoff    = 2 * time.Millisecond
)

// errConflict marks an attempt whose reads went stale before commit.
var errConflict = errors.New("optimistic conflict")

type kind string

const (
	kindProduct  kind = "product"
	kindOffer    kind = "offer"
	kindOrder    kind = "order"
	kindCounter  kind = "counter"
	kindOfferSet kind = "offer-set"
	kindCodeSet  kind = "product-codes"
)

type docKey struct {
	kind kind
	id   string
}

// Store keeps committed documents with a version per document. Transactions read
// committed state, stage their writes privately, and publish them at commit only if
// every version they read is still current.
type Store struct {
	mu sync.RWMutex

	versions    map[docKey]uint64
	products    map[string]core.Product
	offers      map[string]core.Offer
	orders      map[string]core.Order
	counters    map[string]int64
	movements   []core.StockMovement
	entries     []core.FinanceEntry
	adjustments []core.OrderAdjustment
	costs       map[string][]core.CostRecord

	maxRetries int
	backoff    time.Duration
	log        *zap.Logger
}

type Option func(*Store)

// WithMaxRetries bounds how many times a conflicting transaction is re-run.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay between attempts. Zero disables sleeping.
func WithBackoff(d time.Duration) Option {
	return func(s *Store) { s.backoff = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		versions:   make(map[docKey]uint64),
		products:   make(map[string]core.Product),
		offers:     make(map[string]core.Offer),
		orders:     make(map[string]core.Order),
		counters:   make(map[string]int64),
		costs:      make(map[string][]core.CostRecord),
		maxRetries: DefaultMaxRetries,
		backoff:    defaultBackoff,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ core.Store = (*Store)(nil)

// RunInTx runs fn until it commits, fails with a business error on a consistent
// snapshot, or exhausts the retry budget.
func (s *Store) RunInTx(ctx context.Context, fn core.TxFunc) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := newTxn(s)
		err := fn(ctx, tx)
		if err == nil {
			err = s.commit(tx)
		} else if s.isStale(tx) {
			// The failure may have been caused by an inconsistent read.
			err = errConflict
		}
		if !errors.Is(err, errConflict) {
			return err
		}

		if attempt >= s.maxRetries {
			logger.FromContext(ctx, s.log).Warn("transaction retries exhausted", zap.Int("attempts", attempt+1))
			return fmt.Errorf("transaction aborted after %d attempts: %w", attempt+1, core.ErrTransientConflict)
		}
		logger.FromContext(ctx, s.log).Debug("transaction conflict, retrying", zap.Int("attempt", attempt+1))
		if err := s.sleep(ctx, attempt); err != nil {
			return err
		}
	}
}

func (s *Store) sleep(ctx context.Context, attempt int) error {
	if s.backoff <= 0 {
		return nil
	}
	d := s.backoff*time.Duration(attempt+1) + time.Duration(rand.Int64N(int64(s.backoff)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Store) isStale(tx *txn) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.readsCurrent(tx)
}

// readsCurrent must be called with s.mu held.
func (s *Store) readsCurrent(tx *txn) bool {
	for k, v := range tx.reads {
		if s.versions[k] != v {
			return false
		}
	}
	return true
}

func (s *Store) commit(tx *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readsCurrent(tx) {
		return errConflict
	}

	for id, p := range tx.products {
		s.products[id] = p
		s.versions[docKey{kindProduct, id}]++
	}
	if tx.insertedProducts {
		s.versions[docKey{kind: kindCodeSet}]++
	}
	if len(tx.offers) > 0 {
		for id, o := range tx.offers {
			s.offers[id] = o
			s.versions[docKey{kindOffer, id}]++
		}
		s.versions[docKey{kind: kindOfferSet}]++
	}
	for id, o := range tx.orders {
		s.orders[id] = o
		s.versions[docKey{kindOrder, id}]++
	}
	for ns, v := range tx.counters {
		s.counters[ns] = v
		s.versions[docKey{kindCounter, ns}]++
	}
	s.movements = append(s.movements, tx.movements...)
	s.entries = append(s.entries, tx.entries...)
	s.adjustments = append(s.adjustments, tx.adjustments...)
	for _, c := range tx.costs {
		s.costs[c.ProductID] = append(s.costs[c.ProductID], c)
	}
	return nil
}

// ── Reader ───────────────────────────────────────────────────────────────────

func (s *Store) GetProduct(_ context.Context, id string) (*core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, core.NotFound("product", id)
	}
	p = cloneProduct(p)
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListOffers(_ context.Context) ([]core.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Offer, 0, len(s.offers))
	for _, o := range s.offers {
		out = append(out, cloneOffer(o))
	}
	sortOffers(out)
	return out, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*core.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, core.NotFound("order", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context, filter core.OrderFilter) ([]core.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Order
	for _, o := range s.orders {
		if filter.Match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListStockMovements(_ context.Context, productID string) ([]core.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.StockMovement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ListFinanceEntries(_ context.Context, from, to time.Time) ([]core.FinanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FinanceEntry
	for _, e := range s.entries {
		if !from.IsZero() && e.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.CreatedAt.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ListOrderAdjustments(_ context.Context, orderID string) ([]core.OrderAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.OrderAdjustment
	for _, a := range s.adjustments {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CostHistory(_ context.Context, productIDs []string) (map[string][]core.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]core.CostRecord, len(productIDs))
	for _, id := range productIDs {
		h := append([]core.CostRecord(nil), s.costs[id]...)
		sort.SliceStable(h, func(i, j int) bool {
			return h[i].RecordedAt.Before(h[j].RecordedAt)
		})
		if len(h) > 0 {
			out[id] = h
		}
	}
	return out, nil
}

func sortOffers(offers []core.Offer) {
	sort.Slice(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.Before(offers[j].CreatedAt)
		}
		return offers[i].ID < offers[j].ID
	})
}
