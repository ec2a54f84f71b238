package core

import (
	"context"
	"fmt"
	"strings"
)

// SequenceService hands out gapless, strictly increasing numbers per namespace.
type SequenceService interface {
	// Next runs its own short transaction and returns the incremented counter value.
	Next(ctx context.Context, namespace string) (int64, error)
	// NextTx increments the counter inside the caller's transaction.
	NextTx(ctx context.Context, tx Tx, namespace string) (int64, error)
	// NextDocumentNumber formats the next value as PREFIX-00042.
	NextDocumentNumber(ctx context.Context, namespace, prefix string) (string, error)
}

type sequenceService struct {
	store Store
}

func NewSequenceService(store Store) SequenceService {
	return &sequenceService{store: store}
}

func (s *sequenceService) Next(ctx context.Context, namespace string) (int64, error) {
	if err := validateNamespace(namespace); err != nil {
		return 0, err
	}

	var value int64
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		v, err := tx.IncrementCounter(ctx, namespace)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to generate sequence number for %s: %w", namespace, err)
	}
	return value, nil
}

func (s *sequenceService) NextTx(ctx context.Context, tx Tx, namespace string) (int64, error) {
	if err := validateNamespace(namespace); err != nil {
		return 0, err
	}
	return tx.IncrementCounter(ctx, namespace)
}

func (s *sequenceService) NextDocumentNumber(ctx context.Context, namespace, prefix string) (string, error) {
	n, err := s.Next(ctx, namespace)
	if err != nil {
		return "", err
	}
	return FormatDocumentNumber(prefix, n), nil
}

// FormatDocumentNumber renders a sequence value with a zero-padded suffix.
func FormatDocumentNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%05d", strings.ToUpper(prefix), n)
}

func validateNamespace(namespace string) error {
	if strings.TrimSpace(namespace) == "" {
		return invalid("namespace", "sequence namespace is required")
	}
	return nil
}
