package core_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"fulfillment-engine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pricedProduct(listPrice string) core.Product {
	return core.Product{ID: "p1", Code: "P1", Name: "Widget", ListPrice: dec(listPrice)}
}

func volumeOffer(id string, minUnits int, pct string) core.Offer {
	return core.Offer{
		ID: id, Name: id, Kind: core.OfferVolumeThreshold, Active: true,
		ProductIDs: []string{"p1"}, DiscountPct: decp(pct), MinUnits: minUnits,
	}
}

func windowOffer(id string, start, end time.Time, override string) core.Offer {
	return core.Offer{
		ID: id, Name: id, Kind: core.OfferDateWindow, Active: true,
		ProductIDs: []string{"p1"}, OverridePrice: decp(override),
		StartsAt: timep(start), EndsAt: timep(end),
	}
}

func TestResolvePriceNoOffers(t *testing.T) {
	res := core.ResolvePrice(pricedProduct("19.99"), nil, 2, baseTime)
	assertDec(t, "19.99", res.FinalPrice)
	assert.False(t, res.OfferApplied)
	assert.Nil(t, res.Offer)
	assertDec(t, "0", res.SavingsTotal)
	assert.Nil(t, res.VolumeHint)
}

func TestResolvePriceScenario(t *testing.T) {
	p := core.Product{ID: "p1", Name: "P", ListPrice: decimal.NewFromInt(100), OnHand: 10}
	o1 := volumeOffer("o1", 3, "10")
	o2 := windowOffer("o2", baseTime.Add(-time.Hour), baseTime.Add(time.Hour), "85")
	offers := []core.Offer{o1, o2}

	one := core.ResolvePrice(p, offers, 1, baseTime)
	assertDec(t, "85", one.FinalPrice)
	require.NotNil(t, one.Offer)
	assert.Equal(t, "o2", one.Offer.ID)

	three := core.ResolvePrice(p, offers, 3, baseTime)
	assertDec(t, "85", three.FinalPrice)
	require.NotNil(t, three.Offer)
	assert.Equal(t, "o2", three.Offer.ID)
	assertDec(t, "15", three.SavingsPerUnit)
	assertDec(t, "45", three.SavingsTotal)
	assertDec(t, "15", three.DiscountPct)
}

func TestVolumeThresholdBoundary(t *testing.T) {
	p := pricedProduct("50")
	offers := []core.Offer{volumeOffer("vol", 4, "20")}

	below := core.ResolvePrice(p, offers, 3, baseTime)
	assert.False(t, below.OfferApplied)
	assertDec(t, "50", below.FinalPrice)
	require.NotNil(t, below.VolumeHint)
	assert.Equal(t, 1, below.VolumeHint.UnitsMissing)
	assertDec(t, "40", below.VolumeHint.UnitPrice)

	at := core.ResolvePrice(p, offers, 4, baseTime)
	assert.True(t, at.OfferApplied)
	assertDec(t, "40", at.FinalPrice)
	assert.Nil(t, at.VolumeHint)
}

func TestDateWindowInclusiveAtBothEnds(t *testing.T) {
	start := baseTime
	end := baseTime.Add(48 * time.Hour)
	p := pricedProduct("10")
	offers := []core.Offer{windowOffer("win", start, end, "7")}

	tests := []struct {
		name    string
		at      time.Time
		applies bool
	}{
		{"before start", start.Add(-time.Nanosecond), false},
		{"at start", start, true},
		{"inside", start.Add(time.Hour), true},
		{"at end", end, true},
		{"after end", end.Add(time.Nanosecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := core.ResolvePrice(p, offers, 1, tt.at)
			assert.Equal(t, tt.applies, res.OfferApplied)
		})
	}
}

func TestInactiveOfferIgnored(t *testing.T) {
	o := volumeOffer("vol", 1, "50")
	o.Active = false
	res := core.ResolvePrice(pricedProduct("10"), []core.Offer{o}, 5, baseTime)
	assert.False(t, res.OfferApplied)
	assert.Nil(t, res.VolumeHint)
}

func TestOfferForOtherProductIgnored(t *testing.T) {
	o := volumeOffer("vol", 1, "50")
	o.ProductIDs = []string{"p2"}
	res := core.ResolvePrice(pricedProduct("10"), []core.Offer{o}, 5, baseTime)
	assert.False(t, res.OfferApplied)
}

func TestOverrideAboveListPriceNeverRaisesPrice(t *testing.T) {
	o := windowOffer("win", baseTime.Add(-time.Hour), baseTime.Add(time.Hour), "120")
	res := core.ResolvePrice(pricedProduct("100"), []core.Offer{o}, 1, baseTime)
	assert.False(t, res.OfferApplied)
	assertDec(t, "100", res.FinalPrice)
}

func TestBothDiscountFieldsTakeTheLowerPrice(t *testing.T) {
	o := volumeOffer("vol", 1, "10")
	o.OverridePrice = decp("95")
	assertDec(t, "90", o.UnitPrice(dec("100")))

	o.OverridePrice = decp("80")
	assertDec(t, "80", o.UnitPrice(dec("100")))
}

func TestTieBreaksAreDeterministic(t *testing.T) {
	p := pricedProduct("100")
	window := func(id string, end time.Time, priority int) core.Offer {
		o := windowOffer(id, baseTime.Add(-time.Hour), end, "90")
		o.Priority = priority
		return o
	}

	t.Run("higher priority wins", func(t *testing.T) {
		offers := []core.Offer{window("a", baseTime.Add(time.Hour), 0), window("b", baseTime.Add(2*time.Hour), 5)}
		for i := 0; i < 2; i++ {
			res := core.ResolvePrice(p, offers, 1, baseTime)
			require.NotNil(t, res.Offer)
			assert.Equal(t, "b", res.Offer.ID)
			offers[0], offers[1] = offers[1], offers[0]
		}
	})

	t.Run("earliest end wins", func(t *testing.T) {
		offers := []core.Offer{window("a", baseTime.Add(2*time.Hour), 1), window("b", baseTime.Add(time.Hour), 1)}
		for i := 0; i < 2; i++ {
			res := core.ResolvePrice(p, offers, 1, baseTime)
			require.NotNil(t, res.Offer)
			assert.Equal(t, "b", res.Offer.ID)
			offers[0], offers[1] = offers[1], offers[0]
		}
	})

	t.Run("offer without end ranks after one with an end", func(t *testing.T) {
		offers := []core.Offer{volumeOffer("a", 1, "10"), window("b", baseTime.Add(time.Hour), 0)}
		for i := 0; i < 2; i++ {
			res := core.ResolvePrice(p, offers, 1, baseTime)
			require.NotNil(t, res.Offer)
			assert.Equal(t, "b", res.Offer.ID)
			offers[0], offers[1] = offers[1], offers[0]
		}
	})

	t.Run("smallest id settles the rest", func(t *testing.T) {
		offers := []core.Offer{volumeOffer("z", 1, "10"), volumeOffer("m", 1, "10")}
		for i := 0; i < 2; i++ {
			res := core.ResolvePrice(p, offers, 1, baseTime)
			require.NotNil(t, res.Offer)
			assert.Equal(t, "m", res.Offer.ID)
			offers[0], offers[1] = offers[1], offers[0]
		}
	})
}

func TestRankOffersOrdersBestFirst(t *testing.T) {
	p := pricedProduct("100")
	offers := []core.Offer{
		volumeOffer("ten", 1, "10"),
		volumeOffer("thirty", 1, "30"),
		volumeOffer("big", 10, "50"),
		volumeOffer("twenty", 1, "20"),
	}
	ranked := core.RankOffers(p, offers, 2, baseTime)
	require.Len(t, ranked, 3)
	assert.Equal(t, "thirty", ranked[0].Offer.ID)
	assert.Equal(t, "twenty", ranked[1].Offer.ID)
	assert.Equal(t, "ten", ranked[2].Offer.ID)
}

func TestNearMissIgnoresOffersThatDoNotBeatList(t *testing.T) {
	p := pricedProduct("100")
	pricier := volumeOffer("pricier", 5, "10")
	pricier.DiscountPct = nil
	pricier.OverridePrice = decp("120")
	same := volumeOffer("same", 3, "10")
	same.DiscountPct = nil
	same.OverridePrice = decp("100")
	same.Priority = 5

	res := core.ResolvePrice(p, []core.Offer{pricier, same}, 1, baseTime)
	assert.Nil(t, res.VolumeHint)

	cheaper := volumeOffer("cheaper", 4, "10")
	res = core.ResolvePrice(p, []core.Offer{pricier, same, cheaper}, 1, baseTime)
	require.NotNil(t, res.VolumeHint)
	assert.Equal(t, "cheaper", res.VolumeHint.OfferID)
	assert.Equal(t, 3, res.VolumeHint.UnitsMissing)
	assertDec(t, "90", res.VolumeHint.UnitPrice)
}

func TestNearMissPrefersPriorityThenSmallestThreshold(t *testing.T) {
	p := pricedProduct("100")
	a := volumeOffer("a", 5, "10")
	b := volumeOffer("b", 3, "10")
	c := volumeOffer("c", 10, "40")
	c.Priority = 2

	res := core.ResolvePrice(p, []core.Offer{a, b, c}, 1, baseTime)
	require.NotNil(t, res.VolumeHint)
	assert.Equal(t, "c", res.VolumeHint.OfferID)
	assert.Equal(t, 9, res.VolumeHint.UnitsMissing)

	res = core.ResolvePrice(p, []core.Offer{a, b}, 1, baseTime)
	require.NotNil(t, res.VolumeHint)
	assert.Equal(t, "b", res.VolumeHint.OfferID)
}

// Catalogs are generated at random, including offers a store might hold with values
// Validate would reject.
func TestResolvePriceBoundsHoldForRandomCatalogs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 42))
	randomDec := func(maxCents int) decimal.Decimal {
		return decimal.New(int64(rng.IntN(maxCents+1)), -2)
	}

	for i := 0; i < 500; i++ {
		p := pricedProduct(randomDec(50000).String())
		var offers []core.Offer
		n := rng.IntN(7)
		for j := 0; j < n; j++ {
			o := core.Offer{
				ID:         fmt.Sprintf("o%02d", j),
				Name:       fmt.Sprintf("offer %d", j),
				Active:     rng.IntN(5) > 0,
				Priority:   rng.IntN(3),
				ProductIDs: []string{"p1"},
			}
			if rng.IntN(2) == 0 {
				o.Kind = core.OfferVolumeThreshold
				o.MinUnits = rng.IntN(6)
			} else {
				o.Kind = core.OfferDateWindow
				o.StartsAt = timep(baseTime.Add(time.Duration(rng.IntN(48)-24) * time.Hour))
				o.EndsAt = timep(o.StartsAt.Add(time.Duration(rng.IntN(48)) * time.Hour))
			}
			if rng.IntN(3) > 0 {
				pct := decimal.New(int64(rng.IntN(12000)-1000), -2)
				o.DiscountPct = &pct
			}
			if rng.IntN(2) == 0 {
				override := randomDec(60000).Sub(decimal.NewFromInt(50))
				o.OverridePrice = &override
			}
			offers = append(offers, o)
		}
		qty := rng.IntN(10) + 1

		res := core.ResolvePrice(p, offers, qty, baseTime)
		require.False(t, res.FinalPrice.GreaterThan(p.ListPrice), "case %d: %s > %s", i, res.FinalPrice, p.ListPrice)
		require.False(t, res.FinalPrice.IsNegative(), "case %d: negative price %s", i, res.FinalPrice)

		best := p.ListPrice
		for _, o := range offers {
			if o.AppliesTo(p.ID) && o.Enabled(baseTime) && o.EligibleFor(qty) {
				if up := o.UnitPrice(p.ListPrice); up.LessThan(best) {
					best = up
				}
			}
		}
		require.True(t, best.Equal(res.FinalPrice), "case %d: want lowest %s, got %s", i, best, res.FinalPrice)

		shuffled := append([]core.Offer(nil), offers...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		again := core.ResolvePrice(p, shuffled, qty, baseTime)
		require.True(t, again.FinalPrice.Equal(res.FinalPrice))
		if res.Offer != nil {
			require.NotNil(t, again.Offer)
			require.Equal(t, res.Offer.ID, again.Offer.ID, "case %d", i)
		}
	}
}

func TestQuoteUsesLiveCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "Q", "20", 5)

	offer, err := f.catalog.CreateOffer(ctx, core.Offer{
		Name: "Bulk", Kind: core.OfferVolumeThreshold, Active: true,
		ProductIDs: []string{p.ID}, DiscountPct: decp("25"), MinUnits: 2,
	})
	require.NoError(t, err)

	res, err := f.catalog.Quote(ctx, p.ID, 2)
	require.NoError(t, err)
	assertDec(t, "15", res.FinalPrice)

	_, err = f.catalog.SetOfferActive(ctx, offer.ID, false)
	require.NoError(t, err)
	res, err = f.catalog.Quote(ctx, p.ID, 2)
	require.NoError(t, err)
	assertDec(t, "20", res.FinalPrice)

	_, err = f.catalog.Quote(ctx, p.ID, 0)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.catalog.Quote(ctx, "missing", 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
