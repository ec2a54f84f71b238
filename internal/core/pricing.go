package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PricingResult is the outcome of resolving a product's unit price for a quantity.
type PricingResult struct {
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
	ListPrice      decimal.Decimal `json:"list_price"`
	FinalPrice     decimal.Decimal `json:"final_price"`
	OfferApplied   bool            `json:"offer_applied"`
	Offer          *Offer          `json:"offer,omitempty"`
	DiscountPct    decimal.Decimal `json:"discount_pct"`
	SavingsPerUnit decimal.Decimal `json:"savings_per_unit"`
	SavingsTotal   decimal.Decimal `json:"savings_total"`
	VolumeHint     *VolumeHint     `json:"volume_hint,omitempty"`
}

// VolumeHint points at a volume offer the customer just missed.
type VolumeHint struct {
	OfferID      string          `json:"offer_id"`
	OfferName    string          `json:"offer_name"`
	MinUnits     int             `json:"min_units"`
	UnitsMissing int             `json:"units_missing"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// OfferCandidate is an eligible offer with the unit price it would produce.
type OfferCandidate struct {
	Offer     Offer           `json:"offer"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// RankOffers returns the offers eligible for product at quantity, best first.
// The ordering is: lowest unit price, higher priority, earliest EndsAt (offers
// without an end rank last), then smallest ID. Listings and checkout share it.
func RankOffers(product Product, offers []Offer, quantity int, now time.Time) []OfferCandidate {
	if quantity < 1 {
		quantity = 1
	}
	var candidates []OfferCandidate
	for _, o := range offers {
		if !o.AppliesTo(product.ID) || !o.Enabled(now) || !o.EligibleFor(quantity) {
			continue
		}
		candidates = append(candidates, OfferCandidate{Offer: o, UnitPrice: o.UnitPrice(product.ListPrice)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidateLess(candidates[i], candidates[j])
	})
	return candidates
}

func candidateLess(a, b OfferCandidate) bool {
	if c := a.UnitPrice.Cmp(b.UnitPrice); c != 0 {
		return c < 0
	}
	if a.Offer.Priority != b.Offer.Priority {
		return a.Offer.Priority > b.Offer.Priority
	}
	ae, be := a.Offer.EndsAt, b.Offer.EndsAt
	switch {
	case ae != nil && be == nil:
		return true
	case ae == nil && be != nil:
		return false
	case ae != nil && be != nil && !ae.Equal(*be):
		return ae.Before(*be)
	}
	return a.Offer.ID < b.Offer.ID
}

// ResolvePrice determines the unit price a customer pays for quantity units of
// product at instant now. It has no side effects.
func ResolvePrice(product Product, offers []Offer, quantity int, now time.Time) PricingResult {
	if quantity < 1 {
		quantity = 1
	}
	listPrice := RoundMoney(product.ListPrice)
	res := PricingResult{
		ProductID:      product.ID,
		Quantity:       quantity,
		ListPrice:      listPrice,
		FinalPrice:     listPrice,
		DiscountPct:    decimal.Zero,
		SavingsPerUnit: decimal.Zero,
		SavingsTotal:   decimal.Zero,
	}

	ranked := RankOffers(product, offers, quantity, now)
	if len(ranked) > 0 && ranked[0].UnitPrice.LessThan(listPrice) {
		best := ranked[0]
		offer := best.Offer
		res.OfferApplied = true
		res.Offer = &offer
		res.FinalPrice = best.UnitPrice
		res.SavingsPerUnit = listPrice.Sub(best.UnitPrice)
		res.SavingsTotal = res.SavingsPerUnit.Mul(decimal.NewFromInt(int64(quantity)))
		if listPrice.IsPositive() {
			res.DiscountPct = res.SavingsPerUnit.Div(listPrice).Mul(hundred).Round(2)
		}
	}

	res.VolumeHint = nearMissVolumeOffer(product, offers, quantity, now)
	return res
}

// nearMissVolumeOffer picks the enabled volume offer whose threshold is not yet met
// and whose price beats list: highest priority first, then lowest MinUnits, then
// smallest ID.
func nearMissVolumeOffer(product Product, offers []Offer, quantity int, now time.Time) *VolumeHint {
	listPrice := RoundMoney(product.ListPrice)
	var best *Offer
	for i := range offers {
		o := &offers[i]
		if o.Kind != OfferVolumeThreshold || !o.AppliesTo(product.ID) || !o.Enabled(now) {
			continue
		}
		if quantity >= o.MinUnits || !o.UnitPrice(listPrice).LessThan(listPrice) {
			continue
		}
		if best == nil || nearMissLess(*o, *best) {
			best = o
		}
	}
	if best == nil {
		return nil
	}
	return &VolumeHint{
		OfferID:      best.ID,
		OfferName:    best.Name,
		MinUnits:     best.MinUnits,
		UnitsMissing: best.MinUnits - quantity,
		UnitPrice:    best.UnitPrice(listPrice),
	}
}

func nearMissLess(a, b Offer) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.MinUnits != b.MinUnits {
		return a.MinUnits < b.MinUnits
	}
	return a.ID < b.ID
}
