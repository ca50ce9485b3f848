package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across adapters. Wrap them with fmt.Errorf("%w")
// to add context; callers match with errors.Is.
var (
	// ErrOrderNotFound means no order exists with the given id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrServiceUnavailable means the product catalog could not be reached:
	// the circuit breaker is open, the call timed out, or transport failed.
	// The caller decides whether to retry.
	ErrServiceUnavailable = errors.New("product catalog unavailable")
)

// ValidationError rejects a malformed draft before any remote call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s %s", e.Field, e.Reason)
}

// ProductNotFoundError means a referenced product does not exist in the catalog.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found in catalog", e.ProductID)
}

// InsufficientStockError means the requested quantity exceeds available stock.
type InsufficientStockError struct {
	ProductID int64
	Quantity  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (requested %d)", e.ProductID, e.Quantity)
}
