package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by every service of a fixture.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memstore.Store
	clock    *testClock
	stock    core.StockLedger
	finance  core.FinanceLedger
	sequence core.SequenceService
	catalog  core.CatalogService
	orders   core.OrderService
	reports  core.ReportingService
}

func newFixture(t *testing.T, opts ...memstore.Option) *fixture {
	t.Helper()
	opts = append([]memstore.Option{memstore.WithBackoff(0)}, opts...)
	store := memstore.New(opts...)
	clock := &testClock{now: baseTime}

	stock := core.NewStockLedger(store)
	finance := core.NewFinanceLedger(store, clock.Now)
	sequence := core.NewSequenceService(store)
	return &fixture{
		store:    store,
		clock:    clock,
		stock:    stock,
		finance:  finance,
		sequence: sequence,
		catalog:  core.NewCatalogService(store, stock, finance, clock.Now, nil),
		orders:   core.NewOrderService(store, stock, finance, sequence, clock.Now, nil),
		reports:  core.NewReportingService(store, time.UTC),
	}
}

func (f *fixture) product(t *testing.T, code string, listPrice string, onHand int) *core.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), core.ProductInput{
		Code:      code,
		Name:      "Product " + code,
		ListPrice: decimal.RequireFromString(listPrice),
		OnHand:    onHand,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) onHand(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.OnHand
}

func (f *fixture) entries(t *testing.T) []core.FinanceEntry {
	t.Helper()
	entries, err := f.finance.Entries(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	return entries
}

func manualOrder(lines ...core.LineInput) core.CreateOrderInput {
	return core.CreateOrderInput{
		Customer: &core.CustomerSnapshot{Name: "Walk-in"},
		Channel:  core.ChannelManual,
		Lines:    lines,
	}
}

func webOrder(lines ...core.LineInput) core.CreateOrderInput {
	in := manualOrder(lines...)
	in.Channel = core.ChannelWeb
	return in
}

func line(productID string, qty int) core.LineInput {
	return core.LineInput{ProductID: productID, Quantity: qty}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func timep(t time.Time) *time.Time {
	return &t
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}
