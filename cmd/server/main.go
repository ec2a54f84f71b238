package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "fulfillment-engine/internal/adapters/web"
	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/config"
	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/db"
	"fulfillment-engine/internal/idempotency"
	"fulfillment-engine/internal/logger"
	"fulfillment-engine/internal/memstore"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// The logger depends on configuration; fall back to a bare one.
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	idem, closeIdem := openIdempotency(ctx, cfg, log)
	defer closeIdem()

	svc := app.New(store, app.Options{
		Logger:          log,
		Idempotency:     idem,
		DefaultCurrency: cfg.DefaultCurrency,
		ReportLocation:  cfg.ReportLocation,
	})

	handler := webAdapter.NewHandler(ctx, svc, webAdapter.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		Logger:             log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.ServerPort), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (core.Store, func()) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return memstore.New(memstore.WithMaxRetries(cfg.TxMaxRetries), memstore.WithLogger(log)), func() {}
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	return db.NewStore(pool, cfg.TxMaxRetries, log), pool.Close
}

func openIdempotency(ctx context.Context, cfg *config.Config, log *zap.Logger) (idempotency.Store, func()) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set; idempotency keys are kept in process memory")
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), func() {}
	}
	client, err := idempotency.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	return idempotency.NewRedisStore(client, cfg.IdempotencyTTL), func() { _ = client.Close() }
}
