package main

import (
	"context"
	"fmt"
	"os"

	"fulfillment-engine/internal/adapters/cli"
	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/config"
	"fulfillment-engine/internal/db"
	"fulfillment-engine/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: app <command> [args...]")
		fmt.Fprintln(os.Stderr, "Commands: price, seq, status, cancel, metrics, balance, products")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		fmt.Fprintln(os.Stderr, "The CLI operates on the shared database; set STORE_BACKEND=postgres.")
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
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	svc := app.New(db.NewStore(pool, cfg.TxMaxRetries, log), app.Options{
		Logger:          log,
		DefaultCurrency: cfg.DefaultCurrency,
		ReportLocation:  cfg.ReportLocation,
	})

	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		pool.Close()
		os.Exit(1)
	}
}
