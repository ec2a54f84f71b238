package core

import (
	"context"
	"time"
)

// TxFunc is the body of an atomic transaction. It may run more than once when the
// store retries after a conflict, so it must not perform external side effects:
// everything it does goes through tx and is discarded if the attempt aborts.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the transactional document store the engine runs against.
// RunInTx either commits every write made through tx or none of them. Conflicting
// concurrent transactions are retried transparently; when the retry budget is
// exhausted the error wraps ErrTransientConflict.
type Store interface {
	RunInTx(ctx context.Context, fn TxFunc) error
	Reader
}

// Tx is the read-modify-write surface available inside a transaction.
// Reads of a document register it for conflict detection; lookups of missing
// documents return an error wrapping ErrNotFound.
type Tx interface {
	Product(ctx context.Context, id string) (*Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error

	// OffersForProduct returns every stored offer targeting the product, active or not.
	OffersForProduct(ctx context.Context, productID string) ([]Offer, error)
	Offer(ctx context.Context, id string) (*Offer, error)
	InsertOffer(ctx context.Context, o *Offer) error
	UpdateOffer(ctx context.Context, o *Offer) error

	Order(ctx context.Context, id string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error

	AppendStockMovement(ctx context.Context, m StockMovement) error
	AppendFinanceEntry(ctx context.Context, e FinanceEntry) error
	AppendOrderAdjustment(ctx context.Context, a OrderAdjustment) error
	AppendCostRecord(ctx context.Context, c CostRecord) error

	// IncrementCounter reads the namespace counter (absent = 0), adds one,
	// persists and returns the new value.
	IncrementCounter(ctx context.Context, namespace string) (int64, error)
}

// Reader is the read side over committed data. It never observes uncommitted writes.
type Reader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListOffers(ctx context.Context) ([]Offer, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	ListStockMovements(ctx context.Context, productID string) ([]StockMovement, error)
	ListFinanceEntries(ctx context.Context, from, to time.Time) ([]FinanceEntry, error)
	ListOrderAdjustments(ctx context.Context, orderID string) ([]OrderAdjustment, error)
	// CostHistory returns, per product, cost records sorted by RecordedAt ascending.
	CostHistory(ctx context.Context, productIDs []string) (map[string][]CostRecord, error)
}

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
