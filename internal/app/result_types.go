package app

import "fulfillment-engine/internal/core"

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.Order `json:"order"`
	// Replayed is true when an idempotency key matched an earlier request.
	Replayed bool `json:"replayed,omitempty"`
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders []core.Order `json:"orders"`
}

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// OfferListResult is returned by ListOffers.
type OfferListResult struct {
	Offers []core.Offer `json:"offers"`
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	ProductID string               `json:"product_id"`
	Movements []core.StockMovement `json:"movements"`
}

// AdjustmentListResult is returned by ListAdjustments.
type AdjustmentListResult struct {
	OrderID     string                 `json:"order_id"`
	Adjustments []core.OrderAdjustment `json:"adjustments"`
}

// SequenceResult is returned by NextSequence.
type SequenceResult struct {
	Namespace string `json:"namespace"`
	Value     int64  `json:"value"`
}

// BalanceResult is returned by GetBalance.
type BalanceResult struct {
	FromDate string            `json:"from,omitempty"`
	ToDate   string            `json:"to,omitempty"`
	Position core.CashPosition `json:"position"`
}
