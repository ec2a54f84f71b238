package core

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type OfferKind string

const (
	OfferDateWindow      OfferKind = "date_window"
	OfferVolumeThreshold OfferKind = "volume_threshold"
)

var hundred = decimal.NewFromInt(100)

// Offer is a discount rule for a set of products. The discount is a percentage off
// list price, an absolute override price, or both (the lower resulting price wins).
//
// Offers are never edited after creation apart from the Active flag: orders snapshot
// the resolved price, so a changed offer would make past lines unexplainable.
type Offer struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Kind          OfferKind        `json:"kind"`
	Active        bool             `json:"active"`
	Priority      int              `json:"priority"`
	ProductIDs    []string         `json:"product_ids"`
	DiscountPct   *decimal.Decimal `json:"discount_pct,omitempty"`
	OverridePrice *decimal.Decimal `json:"override_price,omitempty"`
	StartsAt      *time.Time       `json:"starts_at,omitempty"`
	EndsAt        *time.Time       `json:"ends_at,omitempty"`
	MinUnits      int              `json:"min_units,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Validate checks the structural rules an offer must satisfy before it is stored.
func (o Offer) Validate() error {
	if len(o.ProductIDs) == 0 {
		return invalid("product_ids", "offer must apply to at least one product")
	}
	if o.DiscountPct == nil && o.OverridePrice == nil {
		return invalid("discount", "either discount_pct or override_price is required")
	}
	if o.DiscountPct != nil && !validPct(*o.DiscountPct) {
		return invalid("discount_pct", "must be greater than 0 and at most 100, got %s", o.DiscountPct.String())
	}
	if o.OverridePrice != nil && o.OverridePrice.IsNegative() {
		return invalid("override_price", "cannot be negative, got %s", o.OverridePrice.String())
	}
	if o.DiscountPct != nil && !atMostTwoPlaces(*o.DiscountPct) {
		return invalid("discount_pct", "at most 2 decimal places, got %s", o.DiscountPct.String())
	}
	if o.OverridePrice != nil && !atMostTwoPlaces(*o.OverridePrice) {
		return invalid("override_price", "at most 2 decimal places, got %s", o.OverridePrice.String())
	}

	switch o.Kind {
	case OfferDateWindow:
		if o.StartsAt == nil || o.EndsAt == nil {
			return invalid("window", "date window offers require starts_at and ends_at")
		}
		if !o.EndsAt.After(*o.StartsAt) {
			return invalid("window", "ends_at must be after starts_at")
		}
	case OfferVolumeThreshold:
		if o.MinUnits < 1 {
			return invalid("min_units", "must be at least 1, got %d", o.MinUnits)
		}
	default:
		return invalid("kind", "unknown offer kind %q", o.Kind)
	}
	return nil
}

// AppliesTo reports whether the offer targets the given product.
func (o Offer) AppliesTo(productID string) bool {
	return slices.Contains(o.ProductIDs, productID)
}

// hasValidDiscount is the runtime counterpart of Validate's discount rules. Offers
// loaded from the store are re-checked here rather than trusted.
func (o Offer) hasValidDiscount() bool {
	pctOK := o.DiscountPct != nil && validPct(*o.DiscountPct)
	overrideOK := o.OverridePrice != nil && !o.OverridePrice.IsNegative()
	return pctOK || overrideOK
}

// Enabled reports whether the offer can apply at instant now, ignoring quantity.
// Date windows are inclusive at both ends.
func (o Offer) Enabled(now time.Time) bool {
	if !o.Active || !o.hasValidDiscount() {
		return false
	}
	if o.Kind == OfferDateWindow {
		if o.StartsAt == nil || o.EndsAt == nil {
			return false
		}
		if now.Before(*o.StartsAt) || now.After(*o.EndsAt) {
			return false
		}
	}
	return o.Kind == OfferDateWindow || o.Kind == OfferVolumeThreshold
}

// EligibleFor reports whether an enabled offer applies at the given quantity.
func (o Offer) EligibleFor(quantity int) bool {
	if o.Kind == OfferVolumeThreshold {
		return quantity >= o.MinUnits
	}
	return true
}

// UnitPrice is the candidate unit price this offer yields for a list price:
// the lower of the override price and the percentage-discounted price, clamped at
// zero and rounded to currency precision.
func (o Offer) UnitPrice(listPrice decimal.Decimal) decimal.Decimal {
	var best *decimal.Decimal
	if o.OverridePrice != nil && !o.OverridePrice.IsNegative() {
		p := *o.OverridePrice
		best = &p
	}
	if o.DiscountPct != nil && validPct(*o.DiscountPct) {
		p := listPrice.Mul(hundred.Sub(*o.DiscountPct)).Div(hundred)
		if best == nil || p.LessThan(*best) {
			best = &p
		}
	}
	if best == nil {
		return RoundMoney(listPrice)
	}
	if best.IsNegative() {
		return decimal.Zero
	}
	return RoundMoney(*best)
}

func validPct(p decimal.Decimal) bool {
	return p.IsPositive() && p.LessThanOrEqual(hundred)
}

// atMostTwoPlaces matches the NUMERIC(..,2) columns offers are stored in.
func atMostTwoPlaces(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
