package core_test

import (
	"testing"
	"time"

	"fulfillment-engine/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestOfferValidate(t *testing.T) {
	start := baseTime
	end := baseTime.Add(time.Hour)

	valid := func() core.Offer { return volumeOffer("v", 2, "10") }

	tests := []struct {
		name    string
		mutate  func(o *core.Offer)
		wantErr bool
	}{
		{"valid volume offer", func(o *core.Offer) {}, false},
		{"valid window offer", func(o *core.Offer) {
			*o = windowOffer("w", start, end, "5")
		}, false},
		{"both discounts", func(o *core.Offer) { o.OverridePrice = decp("3") }, false},
		{"percentage of 100", func(o *core.Offer) { o.DiscountPct = decp("100") }, false},
		{"no products", func(o *core.Offer) { o.ProductIDs = nil }, true},
		{"no discount", func(o *core.Offer) { o.DiscountPct = nil }, true},
		{"zero percentage", func(o *core.Offer) { o.DiscountPct = decp("0") }, true},
		{"percentage over 100", func(o *core.Offer) { o.DiscountPct = decp("100.01") }, true},
		{"negative override", func(o *core.Offer) { o.DiscountPct = nil; o.OverridePrice = decp("-1") }, true},
		{"percentage with three places", func(o *core.Offer) { o.DiscountPct = decp("33.333") }, true},
		{"percentage with trailing zero", func(o *core.Offer) { o.DiscountPct = decp("12.500") }, false},
		{"override with three places", func(o *core.Offer) { o.DiscountPct = nil; o.OverridePrice = decp("9.999") }, true},
		{"zero threshold", func(o *core.Offer) { o.MinUnits = 0 }, true},
		{"unknown kind", func(o *core.Offer) { o.Kind = "flash" }, true},
		{"window without end", func(o *core.Offer) {
			*o = windowOffer("w", start, end, "5")
			o.EndsAt = nil
		}, true},
		{"window ending at its start", func(o *core.Offer) {
			*o = windowOffer("w", start, start, "5")
		}, true},
		{"window ending before its start", func(o *core.Offer) {
			*o = windowOffer("w", end, start, "5")
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOfferUnitPriceClampsAndRounds(t *testing.T) {
	o := volumeOffer("v", 1, "33.33")
	assertDec(t, "6.67", o.UnitPrice(dec("10")))

	o = volumeOffer("v", 1, "100")
	assertDec(t, "0", o.UnitPrice(dec("10")))

	free := windowOffer("w", baseTime, baseTime.Add(time.Hour), "0")
	assertDec(t, "0", free.UnitPrice(dec("10")))
}

func TestStoredOfferWithBadDiscountIsNeverEnabled(t *testing.T) {
	o := volumeOffer("v", 1, "150")
	assert.False(t, o.Enabled(baseTime))

	o.DiscountPct = nil
	o.OverridePrice = decp("-3")
	assert.False(t, o.Enabled(baseTime))

	o.OverridePrice = decp("3")
	assert.True(t, o.Enabled(baseTime))
}

func TestParseOrderStatus(t *testing.T) {
	st, err := core.ParseOrderStatus(" Confirmed ")
	assert.NoError(t, err)
	assert.Equal(t, core.StatusConfirmed, st)

	_, err = core.ParseOrderStatus("shipped")
	assert.ErrorIs(t, err, core.ErrValidation)
}
