// seed loads a small demo catalog: a handful of products with opening stock and
// cost, one volume offer and one date-window offer. Products whose code already
// exists are left untouched, so running it twice is harmless.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/config"
	"fulfillment-engine/internal/db"
	"fulfillment-engine/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedProduct struct {
	code, name  string
	price, cost string
	onHand      int
}

var catalog = []seedProduct{
	{"TEE-BLK", "T-shirt black", "19.90", "7.50", 40},
	{"TEE-WHT", "T-shirt white", "19.90", "7.50", 35},
	{"MUG-01", "Ceramic mug", "12.00", "4.20", 60},
	{"CAP-01", "Baseball cap", "15.00", "6.00", 25},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer pool.Close()

	svc := app.New(db.NewStore(pool, cfg.TxMaxRetries, log), app.Options{Logger: log})
	if err := seed(ctx, svc, time.Now().UTC(), log); err != nil {
		pool.Close()
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("seed data loaded")
}

func seed(ctx context.Context, svc app.ApplicationService, now time.Time, log *zap.Logger) error {
	existing, err := svc.ListProducts(ctx)
	if err != nil {
		return err
	}
	ids := make(map[string]string, len(existing.Products))
	for _, p := range existing.Products {
		ids[p.Code] = p.ID
	}

	for _, sp := range catalog {
		if _, ok := ids[sp.code]; ok {
			log.Info("product exists, skipping", zap.String("code", sp.code))
			continue
		}
		cost := decimal.RequireFromString(sp.cost)
		p, err := svc.CreateProduct(ctx, app.CreateProductRequest{
			Code:      sp.code,
			Name:      sp.name,
			ListPrice: decimal.RequireFromString(sp.price),
			OnHand:    sp.onHand,
			UnitCost:  &cost,
		})
		if err != nil {
			return fmt.Errorf("failed to create product %s: %w", sp.code, err)
		}
		ids[sp.code] = p.ID
		log.Info("product created", zap.String("code", sp.code), zap.String("id", p.ID))
	}

	offers, err := svc.ListOffers(ctx)
	if err != nil {
		return err
	}
	if len(offers.Offers) > 0 {
		log.Info("offers exist, skipping")
		return nil
	}

	pct := decimal.NewFromInt(15)
	if _, err := svc.CreateOffer(ctx, app.CreateOfferRequest{
		Name:        "Tees: 15% off from 3 units",
		Kind:        "volume_threshold",
		Priority:    1,
		ProductIDs:  []string{ids["TEE-BLK"], ids["TEE-WHT"]},
		DiscountPct: &pct,
		MinUnits:    3,
	}); err != nil {
		return fmt.Errorf("failed to create volume offer: %w", err)
	}

	override := decimal.RequireFromString("9.90")
	starts, ends := now, now.AddDate(0, 0, 30)
	if _, err := svc.CreateOffer(ctx, app.CreateOfferRequest{
		Name:          "Mug month",
		Kind:          "date_window",
		ProductIDs:    []string{ids["MUG-01"]},
		OverridePrice: &override,
		StartsAt:      &starts,
		EndsAt:        &ends,
	}); err != nil {
		return fmt.Errorf("failed to create date window offer: %w", err)
	}
	return nil
}
