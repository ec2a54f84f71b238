package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fulfillment-engine/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput is the payload for creating a catalog product.
type ProductInput struct {
	Code      string           `json:"code"`
	Name      string           `json:"name"`
	ListPrice decimal.Decimal  `json:"list_price"`
	OnHand    int              `json:"on_hand"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return invalid("code", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	if in.ListPrice.IsNegative() {
		return invalid("list_price", "cannot be negative")
	}
	if in.OnHand < 0 {
		return invalid("on_hand", "cannot be negative")
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return invalid("unit_cost", "cannot be negative")
	}
	return nil
}

// StockReceipt registers purchased units and their unit cost.
type StockReceipt struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	At        time.Time       `json:"at"`
}

// CatalogService manages products and offers, and the stock changes that do not
// originate from orders.
type CatalogService interface {
	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	CreateOffer(ctx context.Context, o Offer) (*Offer, error)
	ListOffers(ctx context.Context) ([]Offer, error)
	// SetOfferActive is the only mutation allowed on a stored offer.
	SetOfferActive(ctx context.Context, offerID string, active bool) (*Offer, error)

	// Quote resolves the current price of a product against the live catalog.
	Quote(ctx context.Context, productID string, quantity int) (*PricingResult, error)

	// ReceiveStock books a purchase: stock in, cost history, purchase expense.
	ReceiveStock(ctx context.Context, r StockReceipt) (*Product, error)
	// CorrectStock applies a manual signed correction after a physical count.
	CorrectStock(ctx context.Context, productID string, delta int, note string) (*Product, error)
}

type catalogService struct {
	store   Store
	stock   StockLedger
	finance FinanceLedger
	clock   Clock
	log     *zap.Logger
}

func NewCatalogService(store Store, stock StockLedger, finance FinanceLedger, clock Clock, log *zap.Logger) CatalogService {
	if clock == nil {
		clock = systemClock
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &catalogService{store: store, stock: stock, finance: finance, clock: clock, log: log}
}

func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.clock()
	p := &Product{
		ID:        uuid.NewString(),
		Code:      strings.TrimSpace(in.Code),
		Name:      strings.TrimSpace(in.Name),
		ListPrice: RoundMoney(in.ListPrice),
		OnHand:    in.OnHand,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.UnitCost != nil {
		p.LastUnitCost = decPtr(RoundMoney(*in.UnitCost))
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		if p.LastUnitCost != nil {
			return tx.AppendCostRecord(ctx, CostRecord{ProductID: p.ID, UnitCost: *p.LastUnitCost, RecordedAt: now})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *catalogService) ListProducts(ctx context.Context) ([]Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *catalogService) CreateOffer(ctx context.Context, o Offer) (*Offer, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	o.ID = uuid.NewString()
	o.CreatedAt = s.clock()

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		for _, pid := range o.ProductIDs {
			if _, err := tx.Product(ctx, pid); err != nil {
				return err
			}
		}
		if err := tx.InsertOffer(ctx, &o); err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *catalogService) ListOffers(ctx context.Context) ([]Offer, error) {
	return s.store.ListOffers(ctx)
}

func (s *catalogService) SetOfferActive(ctx context.Context, offerID string, active bool) (*Offer, error) {
	var updated *Offer
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Offer(ctx, offerID)
		if err != nil {
			return err
		}
		if o.Active != active {
			o.Active = active
			if err := tx.UpdateOffer(ctx, o); err != nil {
				return fmt.Errorf("failed to update offer: %w", err)
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *catalogService) Quote(ctx context.Context, productID string, quantity int) (*PricingResult, error) {
	if quantity < 1 {
		return nil, invalid("quantity", "must be positive, got %d", quantity)
	}
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	offers, err := s.store.ListOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	res := ResolvePrice(*p, offers, quantity, s.clock())
	return &res, nil
}

func (s *catalogService) ReceiveStock(ctx context.Context, r StockReceipt) (*Product, error) {
	if r.Quantity < 1 {
		return nil, invalid("quantity", "must be positive, got %d", r.Quantity)
	}
	if r.UnitCost.IsNegative() {
		return nil, invalid("unit_cost", "cannot be negative")
	}
	at := r.At
	if at.IsZero() {
		at = s.clock()
	}
	unitCost := RoundMoney(r.UnitCost)
	amount := RoundMoney(unitCost.Mul(decimal.NewFromInt(int64(r.Quantity))))

	var updated *Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := s.stock.Adjust(ctx, tx, StockAdjustment{
			ProductID: r.ProductID,
			Delta:     r.Quantity,
			Reason:    ReasonPurchase,
			At:        at,
		})
		if err != nil {
			return err
		}

		p.LastUnitCost = decPtr(unitCost)
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("failed to update product cost: %w", err)
		}
		if err := tx.AppendCostRecord(ctx, CostRecord{ProductID: p.ID, UnitCost: unitCost, RecordedAt: at}); err != nil {
			return fmt.Errorf("failed to record product cost: %w", err)
		}
		if amount.IsPositive() {
			if err := s.finance.Record(ctx, tx, FinanceRecord{
				Kind:     EntryExpense,
				Amount:   amount,
				Category: CategoryPurchase,
				Detail:   fmt.Sprintf("purchase of %d x %s", r.Quantity, p.Code),
				At:       at,
			}); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).Info("stock received",
		zap.String("product_id", updated.ID),
		zap.Int("quantity", r.Quantity),
		zap.String("unit_cost", unitCost.StringFixed(2)),
		zap.Int("on_hand", updated.OnHand),
	)
	return updated, nil
}

func (s *catalogService) CorrectStock(ctx context.Context, productID string, delta int, note string) (*Product, error) {
	if delta == 0 {
		return nil, invalid("delta", "must be non-zero")
	}
	now := s.clock()

	var updated *Product
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := s.stock.Adjust(ctx, tx, StockAdjustment{
			ProductID: productID,
			Delta:     delta,
			Reason:    ReasonManualCorrection,
			At:        now,
		})
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).Warn("stock corrected manually",
		zap.String("product_id", updated.ID),
		zap.Int("delta", delta),
		zap.String("note", note),
	)
	return updated, nil
}
