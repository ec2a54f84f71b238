package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/idempotency"
	"fulfillment-engine/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// idempotencySettleTimeout bounds the Complete/Release call made after an order attempt.
const idempotencySettleTimeout = 5 * time.Second

// Options carries the optional collaborators of the application service.
type Options struct {
	Clock           core.Clock
	Logger          *zap.Logger
	Idempotency     idempotency.Store
	DefaultCurrency string
	ReportLocation  *time.Location
}

type appService struct {
	catalog   core.CatalogService
	orders    core.OrderService
	stock     core.StockLedger
	finance   core.FinanceLedger
	sequence  core.SequenceService
	reporting core.ReportingService
	idem      idempotency.Store
	currency  string
	location  *time.Location
	log       *zap.Logger
}

// New wires the core services over store and returns the ApplicationService.
func New(store core.Store, opts Options) ApplicationService {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.ReportLocation
	if loc == nil {
		loc = time.UTC
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.DefaultCurrency))
	if currency == "" {
		currency = core.DefaultCurrency
	}

	stock := core.NewStockLedger(store)
	finance := core.NewFinanceLedger(store, opts.Clock)
	sequence := core.NewSequenceService(store)

	return &appService{
		catalog:   core.NewCatalogService(store, stock, finance, opts.Clock, log),
		orders:    core.NewOrderService(store, stock, finance, sequence, opts.Clock, log),
		stock:     stock,
		finance:   finance,
		sequence:  sequence,
		reporting: core.NewReportingService(store, loc),
		idem:      opts.Idempotency,
		currency:  currency,
		location:  loc,
		log:       log,
	}
}

// ── Catalog ──────────────────────────────────────────────────────────────────

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error) {
	return s.catalog.CreateProduct(ctx, core.ProductInput{
		Code:      req.Code,
		Name:      req.Name,
		ListPrice: req.ListPrice,
		OnHand:    req.OnHand,
		UnitCost:  req.UnitCost,
	})
}

func (s *appService) GetProduct(ctx context.Context, productID string) (*core.Product, error) {
	return s.catalog.GetProduct(ctx, productID)
}

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.Product, error) {
	receipt := core.StockReceipt{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
	}
	if req.ReceivedAt != nil {
		receipt.At = *req.ReceivedAt
	}
	return s.catalog.ReceiveStock(ctx, receipt)
}

func (s *appService) CorrectStock(ctx context.Context, req CorrectStockRequest) (*core.Product, error) {
	return s.catalog.CorrectStock(ctx, req.ProductID, req.Delta, req.Note)
}

func (s *appService) ListMovements(ctx context.Context, productID string) (*MovementListResult, error) {
	movements, err := s.stock.Movements(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{ProductID: productID, Movements: movements}, nil
}

func (s *appService) QuotePrice(ctx context.Context, productID string, qty int) (*core.PricingResult, error) {
	return s.catalog.Quote(ctx, productID, qty)
}

// ── Offers ───────────────────────────────────────────────────────────────────

func (s *appService) CreateOffer(ctx context.Context, req CreateOfferRequest) (*core.Offer, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return s.catalog.CreateOffer(ctx, core.Offer{
		Name:          req.Name,
		Kind:          req.Kind,
		Active:        active,
		Priority:      req.Priority,
		ProductIDs:    req.ProductIDs,
		DiscountPct:   req.DiscountPct,
		OverridePrice: req.OverridePrice,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		MinUnits:      req.MinUnits,
	})
}

func (s *appService) ListOffers(ctx context.Context) (*OfferListResult, error) {
	offers, err := s.catalog.ListOffers(ctx)
	if err != nil {
		return nil, err
	}
	return &OfferListResult{Offers: offers}, nil
}

func (s *appService) SetOfferActive(ctx context.Context, offerID string, active bool) (*core.Offer, error) {
	return s.catalog.SetOfferActive(ctx, offerID, active)
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	in := core.CreateOrderInput{
		CustomerID:   req.CustomerID,
		Customer:     req.Customer,
		Channel:      req.Channel,
		Lines:        req.Lines,
		Currency:     req.Currency,
		ExchangeRate: req.ExchangeRate,
		Notes:        req.Notes,
	}
	if in.Currency == "" {
		in.Currency = s.currency
	}
	if in.ExchangeRate.IsZero() {
		in.ExchangeRate = decimal.NewFromInt(1)
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" || s.idem == nil {
		order, err := s.orders.Create(ctx, in)
		if err != nil {
			return nil, err
		}
		return &OrderResult{Order: order}, nil
	}

	log := logger.FromContext(ctx, s.log).With(zap.String("idempotency_key", key))
	orderID, reserved, err := s.idem.Reserve(ctx, key)
	if err != nil {
		return nil, err
	}
	if !reserved {
		order, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load order for idempotency key %s: %w", key, err)
		}
		log.Info("order request replayed", zap.String("order_id", order.ID))
		return &OrderResult{Order: order, Replayed: true}, nil
	}

	// The key outcome must be recorded even when the client has gone away.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencySettleTimeout)
	defer cancel()

	order, err := s.orders.Create(ctx, in)
	if err != nil {
		if relErr := s.idem.Release(settleCtx, key); relErr != nil {
			log.Error("failed to release idempotency key", zap.Error(relErr))
		}
		return nil, err
	}
	if err := s.idem.Complete(settleCtx, key, order.ID); err != nil {
		log.Error("failed to record idempotency key", zap.String("order_id", order.ID), zap.Error(err))
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResult, error) {
	var filter core.OrderFilter
	if req.Status != "" {
		st, err := core.ParseOrderStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = st
	}
	if req.Channel != "" {
		ch := core.Channel(strings.ToLower(strings.TrimSpace(req.Channel)))
		if ch != core.ChannelManual && ch != core.ChannelWeb {
			return nil, &core.ValidationError{Field: "channel", Details: fmt.Sprintf("unknown channel %q", req.Channel)}
		}
		filter.Channel = ch
	}
	from, to, err := s.dayBounds(req.FromDate, req.ToDate)
	if err != nil {
		return nil, err
	}
	filter.From, filter.To = from, to

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) SetOrderStatus(ctx context.Context, orderID, status string) (*OrderResult, error) {
	next, err := core.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.TransitionStatus(ctx, orderID, next)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) CancelOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	order, err := s.orders.Cancel(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) AddOrderLines(ctx context.Context, orderID string, lines []core.LineInput) (*OrderResult, error) {
	order, err := s.orders.ApplyAdjustment(ctx, orderID, lines)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ListAdjustments(ctx context.Context, orderID string) (*AdjustmentListResult, error) {
	adjustments, err := s.orders.Adjustments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &AdjustmentListResult{OrderID: orderID, Adjustments: adjustments}, nil
}

func (s *appService) IssueDeliveryNote(ctx context.Context, orderID string) (*core.DeliveryNote, error) {
	return s.orders.IssueDeliveryNote(ctx, orderID)
}

// ── Sequences & finance ──────────────────────────────────────────────────────

func (s *appService) NextSequence(ctx context.Context, namespace string) (*SequenceResult, error) {
	v, err := s.sequence.Next(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return &SequenceResult{Namespace: namespace, Value: v}, nil
}

func (s *appService) RecordFinanceEntry(ctx context.Context, req FinanceEntryRequest) (*core.FinanceEntry, error) {
	return s.finance.RecordManual(ctx, core.FinanceRecord{
		Kind:           req.Kind,
		Amount:         req.Amount,
		Category:       req.Category,
		RelatedOrderID: req.RelatedOrderID,
		Detail:         req.Detail,
	})
}

func (s *appService) GetBalance(ctx context.Context, fromDate, toDate string) (*BalanceResult, error) {
	from, to, err := s.dayBounds(fromDate, toDate)
	if err != nil {
		return nil, err
	}
	pos, err := s.finance.Balance(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{FromDate: fromDate, ToDate: toDate, Position: *pos}, nil
}

func (s *appService) FinanceMetrics(ctx context.Context, req MetricsRequest) (*core.MetricsReport, error) {
	if req.FromDate == "" || req.ToDate == "" {
		return nil, &core.ValidationError{Field: "period", Details: "from and to dates are required"}
	}
	from, err := s.parseDate("from", req.FromDate)
	if err != nil {
		return nil, err
	}
	to, err := s.parseDate("to", req.ToDate)
	if err != nil {
		return nil, err
	}
	return s.reporting.FinanceMetrics(ctx, from, to, req.Top)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (s *appService) parseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), s.location)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: field, Details: fmt.Sprintf("expected YYYY-MM-DD, got %q", value)}
	}
	return t, nil
}

// dayBounds turns optional YYYY-MM-DD bounds into an inclusive instant range.
// An empty bound stays zero, which stores treat as open.
func (s *appService) dayBounds(fromDate, toDate string) (time.Time, time.Time, error) {
	var from, to time.Time
	if fromDate != "" {
		d, err := s.parseDate("from", fromDate)
		if err != nil {
			return from, to, err
		}
		from = core.DayPeriod(d, d, s.location).Start
	}
	if toDate != "" {
		d, err := s.parseDate("to", toDate)
		if err != nil {
			return from, to, err
		}
		to = core.DayPeriod(d, d, s.location).End
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, &core.ValidationError{Field: "period", Details: "to must not be before from"}
	}
	return from, to, nil
}

