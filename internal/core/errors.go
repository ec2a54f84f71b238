package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers can
// branch with errors.Is regardless of how much context was added on the way up.
var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrTransientConflict      = errors.New("transient conflict")
)

// ValidationError describes malformed input. It is raised before any transaction opens.
type ValidationError struct {
	Field   string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Details)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Details)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Details: fmt.Sprintf(format, args...)}
}

// InsufficientStockError aborts the enclosing transaction when a deduction would
// take a product below zero.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// StateTransitionError is returned when an order cannot move from its current status.
type StateTransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
	Reason  string
}

func (e *StateTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("order %s is %s: %s", e.OrderID, e.From, e.Reason)
	}
	msg := fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// NotFound reports a missing document of the given kind.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
