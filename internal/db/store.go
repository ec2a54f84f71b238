package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SQLSTATE codes that mean "run the whole transaction again".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// Store is the Postgres implementation of core.Store. Transactions run at
// SERIALIZABLE isolation and lock the rows they intend to mutate.
type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
	log        *zap.Logger
}

func NewStore(pool *pgxpool.Pool, maxRetries int, log *zap.Logger) *Store {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, maxRetries: maxRetries, log: log}
}

var _ core.Store = (*Store)(nil)

func (s *Store) RunInTx(ctx context.Context, fn core.TxFunc) error {
	for attempt := 0; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt >= s.maxRetries {
			logger.FromContext(ctx, s.log).Warn("transaction retries exhausted", zap.Int("attempts", attempt+1), zap.Error(err))
			return fmt.Errorf("transaction aborted after %d attempts: %w", attempt+1, core.ErrTransientConflict)
		}
		logger.FromContext(ctx, s.log).Debug("serialization failure, retrying", zap.Int("attempt", attempt+1))

		delay := time.Duration(attempt+1)*5*time.Millisecond + time.Duration(rand.Int64N(int64(5*time.Millisecond)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Store) runOnce(ctx context.Context, fn core.TxFunc) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}
