package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinanceRecord is one income or expense to append.
type FinanceRecord struct {
	Kind           EntryKind
	Amount         decimal.Decimal
	Category       string
	RelatedOrderID *string
	Detail         string
	At             time.Time
}

// Validate enforces the append-only ledger's shape: a known kind, a positive amount
// and a category.
func (r FinanceRecord) Validate() error {
	if r.Kind != EntryIncome && r.Kind != EntryExpense {
		return invalid("kind", "unknown finance entry kind %q", r.Kind)
	}
	if !r.Amount.IsPositive() {
		return invalid("amount", "must be positive, got %s", r.Amount.String())
	}
	if strings.TrimSpace(r.Category) == "" {
		return invalid("category", "is required")
	}
	return nil
}

// FinanceLedger appends income/expense entries. Entries are never updated or
// deleted; corrections are compensating entries.
type FinanceLedger interface {
	// Record appends an entry inside the caller's transaction.
	Record(ctx context.Context, tx Tx, rec FinanceRecord) error
	// RecordManual appends a manually entered entry in its own transaction.
	RecordManual(ctx context.Context, rec FinanceRecord) (*FinanceEntry, error)
	// Balance folds every entry created within [from, to]. Zero bounds are open.
	Balance(ctx context.Context, from, to time.Time) (*CashPosition, error)
	Entries(ctx context.Context, from, to time.Time) ([]FinanceEntry, error)
}

type financeLedger struct {
	store Store
	clock Clock
}

func NewFinanceLedger(store Store, clock Clock) FinanceLedger {
	if clock == nil {
		clock = systemClock
	}
	return &financeLedger{store: store, clock: clock}
}

func (l *financeLedger) Record(ctx context.Context, tx Tx, rec FinanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := appendEntry(ctx, tx, rec)
	return err
}

func appendEntry(ctx context.Context, tx Tx, rec FinanceRecord) (*FinanceEntry, error) {
	e := FinanceEntry{
		ID:             uuid.NewString(),
		Kind:           rec.Kind,
		Amount:         RoundMoney(rec.Amount),
		Category:       rec.Category,
		RelatedOrderID: rec.RelatedOrderID,
		Detail:         rec.Detail,
		CreatedAt:      rec.At,
	}
	if err := tx.AppendFinanceEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to append %s entry: %w", rec.Kind, err)
	}
	return &e, nil
}

func (l *financeLedger) RecordManual(ctx context.Context, rec FinanceRecord) (*FinanceEntry, error) {
	if rec.At.IsZero() {
		rec.At = l.clock()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	var entry *FinanceEntry
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if rec.RelatedOrderID != nil {
			if _, err := tx.Order(ctx, *rec.RelatedOrderID); err != nil {
				return err
			}
		}
		e, err := appendEntry(ctx, tx, rec)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *financeLedger) Entries(ctx context.Context, from, to time.Time) ([]FinanceEntry, error) {
	return l.store.ListFinanceEntries(ctx, from, to)
}

func (l *financeLedger) Balance(ctx context.Context, from, to time.Time) (*CashPosition, error) {
	entries, err := l.store.ListFinanceEntries(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list finance entries: %w", err)
	}
	pos := FoldEntries(entries)
	return &pos, nil
}

// FoldEntries computes the cash position of a set of entries.
func FoldEntries(entries []FinanceEntry) CashPosition {
	pos := CashPosition{Income: decimal.Zero, Expense: decimal.Zero}
	for _, e := range entries {
		switch e.Kind {
		case EntryIncome:
			pos.Income = pos.Income.Add(e.Amount)
		case EntryExpense:
			pos.Expense = pos.Expense.Add(e.Amount)
		}
		pos.Entries++
	}
	pos.Net = pos.Income.Sub(pos.Expense)
	return pos
}
