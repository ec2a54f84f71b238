package core_test

import (
	"context"
	"testing"
	"time"

	"fulfillment-engine/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.catalog.CreateProduct(ctx, core.ProductInput{
		Code: " TEE ", Name: "T-shirt", ListPrice: dec("12.345"), OnHand: 7, UnitCost: decp("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "TEE", p.Code)
	assertDec(t, "12.35", p.ListPrice)
	assert.Equal(t, 7, p.OnHand)
	require.NotNil(t, p.LastUnitCost)

	history, err := f.store.CostHistory(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, history[p.ID], 1)
	assertDec(t, "5", history[p.ID][0].UnitCost)

	movements, err := f.stock.Movements(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, movements, "opening stock is not a movement")

	_, err = f.catalog.CreateProduct(ctx, core.ProductInput{Code: "TEE", Name: "Again", ListPrice: dec("1")})
	assert.ErrorIs(t, err, core.ErrValidation)

	products, err := f.catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestCreateProductValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		in   core.ProductInput
	}{
		{"missing code", core.ProductInput{Name: "x", ListPrice: dec("1")}},
		{"missing name", core.ProductInput{Code: "x", ListPrice: dec("1")}},
		{"negative price", core.ProductInput{Code: "x", Name: "x", ListPrice: dec("-1")}},
		{"negative stock", core.ProductInput{Code: "x", Name: "x", ListPrice: dec("1"), OnHand: -1}},
		{"negative cost", core.ProductInput{Code: "x", Name: "x", ListPrice: dec("1"), UnitCost: decp("-2")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.catalog.CreateProduct(ctx, tt.in)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestReceiveStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "R", "10", 0)

	at := baseTime.Add(-24 * time.Hour)
	updated, err := f.catalog.ReceiveStock(ctx, core.StockReceipt{ProductID: p.ID, Quantity: 5, UnitCost: dec("4"), At: at})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.OnHand)
	require.NotNil(t, updated.LastUnitCost)
	assertDec(t, "4", *updated.LastUnitCost)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, core.EntryExpense, entries[0].Kind)
	assert.Equal(t, core.CategoryPurchase, entries[0].Category)
	assertDec(t, "20", entries[0].Amount)
	assert.True(t, entries[0].CreatedAt.Equal(at))

	movements, err := f.stock.Movements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, core.DirectionIn, movements[0].Direction)
	assert.Equal(t, core.ReasonPurchase, movements[0].Reason)
	assert.Equal(t, 5, movements[0].Quantity)

	history, err := f.store.CostHistory(ctx, []string{p.ID})
	require.NoError(t, err)
	assert.Len(t, history[p.ID], 1)

	// Free samples move stock without an expense.
	_, err = f.catalog.ReceiveStock(ctx, core.StockReceipt{ProductID: p.ID, Quantity: 1, UnitCost: dec("0")})
	require.NoError(t, err)
	assert.Len(t, f.entries(t), 1)

	_, err = f.catalog.ReceiveStock(ctx, core.StockReceipt{ProductID: p.ID, Quantity: 0, UnitCost: dec("1")})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.catalog.ReceiveStock(ctx, core.StockReceipt{ProductID: p.ID, Quantity: 1, UnitCost: dec("-1")})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.catalog.ReceiveStock(ctx, core.StockReceipt{ProductID: "missing", Quantity: 1, UnitCost: dec("1")})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCorrectStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "K", "10", 5)

	_, err := f.catalog.CorrectStock(ctx, p.ID, -10, "lost")
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
	assert.Equal(t, 5, f.onHand(t, p.ID))

	updated, err := f.catalog.CorrectStock(ctx, p.ID, -2, "damaged")
	require.NoError(t, err)
	assert.Equal(t, 3, updated.OnHand)
	updated, err = f.catalog.CorrectStock(ctx, p.ID, 1, "found")
	require.NoError(t, err)
	assert.Equal(t, 4, updated.OnHand)

	_, err = f.catalog.CorrectStock(ctx, p.ID, 0, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	movements, err := f.stock.Movements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, core.DirectionOut, movements[0].Direction)
	assert.Equal(t, 2, movements[0].Quantity)
	assert.Equal(t, core.ReasonManualCorrection, movements[0].Reason)
	assert.Equal(t, core.DirectionIn, movements[1].Direction)
	assert.Empty(t, f.entries(t))
}

func TestOffers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "O", "10", 5)

	_, err := f.catalog.CreateOffer(ctx, core.Offer{
		Name: "No discount", Kind: core.OfferVolumeThreshold, Active: true, ProductIDs: []string{p.ID}, MinUnits: 2,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.catalog.CreateOffer(ctx, core.Offer{
		Name: "Ghost", Kind: core.OfferVolumeThreshold, Active: true, ProductIDs: []string{"missing"},
		DiscountPct: decp("10"), MinUnits: 2,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.catalog.CreateOffer(ctx, core.Offer{
		Name: "Odd third", Kind: core.OfferVolumeThreshold, Active: true, ProductIDs: []string{p.ID},
		DiscountPct: decp("33.333"), MinUnits: 3,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	offer, err := f.catalog.CreateOffer(ctx, core.Offer{
		Name: "Pair", Kind: core.OfferVolumeThreshold, Active: true, ProductIDs: []string{p.ID},
		DiscountPct: decp("10"), MinUnits: 2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, offer.ID)
	assert.True(t, offer.CreatedAt.Equal(baseTime))

	off, err := f.catalog.SetOfferActive(ctx, offer.ID, false)
	require.NoError(t, err)
	assert.False(t, off.Active)
	again, err := f.catalog.SetOfferActive(ctx, offer.ID, false)
	require.NoError(t, err)
	assert.False(t, again.Active)

	offers, err := f.catalog.ListOffers(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.False(t, offers[0].Active)

	_, err = f.catalog.SetOfferActive(ctx, "missing", true)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestFinanceLedgerManualEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	e, err := f.finance.RecordManual(ctx, core.FinanceRecord{Kind: core.EntryExpense, Amount: dec("12.345"), Category: "rent"})
	require.NoError(t, err)
	assertDec(t, "12.35", e.Amount)
	assert.True(t, e.CreatedAt.Equal(baseTime))

	_, err = f.finance.RecordManual(ctx, core.FinanceRecord{Kind: core.EntryIncome, Amount: dec("0"), Category: "x"})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.finance.RecordManual(ctx, core.FinanceRecord{Kind: "refund", Amount: dec("1"), Category: "x"})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.finance.RecordManual(ctx, core.FinanceRecord{Kind: core.EntryIncome, Amount: dec("1"), Category: " "})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.finance.RecordManual(ctx, core.FinanceRecord{Kind: core.EntryIncome, Amount: dec("1"), Category: "x", RelatedOrderID: strp("missing")})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.finance.RecordManual(ctx, core.FinanceRecord{Kind: core.EntryIncome, Amount: dec("40"), Category: "misc", At: baseTime.Add(48 * time.Hour)})
	require.NoError(t, err)

	all, err := f.finance.Balance(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Entries)
	assertDec(t, "27.65", all.Net)

	window, err := f.finance.Balance(ctx, baseTime.Add(time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, window.Entries)
	assertDec(t, "40", window.Income)
}
