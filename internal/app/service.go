package app

import (
	"context"

	"fulfillment-engine/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no display logic of any kind.
type ApplicationService interface {
	// Catalog
	CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error)
	GetProduct(ctx context.Context, productID string) (*core.Product, error)
	ListProducts(ctx context.Context) (*ProductListResult, error)
	// ReceiveStock books purchased units: stock in, cost history and a purchase expense.
	ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.Product, error)
	// CorrectStock applies a signed manual correction.
	CorrectStock(ctx context.Context, req CorrectStockRequest) (*core.Product, error)
	ListMovements(ctx context.Context, productID string) (*MovementListResult, error)
	// QuotePrice resolves the unit price for qty units against the live offer catalog.
	QuotePrice(ctx context.Context, productID string, qty int) (*core.PricingResult, error)

	// Offers
	CreateOffer(ctx context.Context, req CreateOfferRequest) (*core.Offer, error)
	ListOffers(ctx context.Context) (*OfferListResult, error)
	SetOfferActive(ctx context.Context, offerID string, active bool) (*core.Offer, error)

	// Orders
	// CreateOrder opens an order. A non-empty IdempotencyKey makes retries of the
	// same request return the order created the first time.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResult, error)
	ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResult, error)
	// SetOrderStatus moves an order to the named status; "cancelled" cancels it.
	SetOrderStatus(ctx context.Context, orderID, status string) (*OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (*OrderResult, error)
	// AddOrderLines amends an order and records only the total's increase.
	AddOrderLines(ctx context.Context, orderID string, lines []core.LineInput) (*OrderResult, error)
	ListAdjustments(ctx context.Context, orderID string) (*AdjustmentListResult, error)
	IssueDeliveryNote(ctx context.Context, orderID string) (*core.DeliveryNote, error)

	// Sequences
	NextSequence(ctx context.Context, namespace string) (*SequenceResult, error)

	// Finance
	RecordFinanceEntry(ctx context.Context, req FinanceEntryRequest) (*core.FinanceEntry, error)
	// GetBalance folds entries between the optional YYYY-MM-DD bounds.
	GetBalance(ctx context.Context, fromDate, toDate string) (*BalanceResult, error)
	// FinanceMetrics reports sales, margin and cash flow for whole days fromDate..toDate.
	FinanceMetrics(ctx context.Context, req MetricsRequest) (*core.MetricsReport, error)
}
