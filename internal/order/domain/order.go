package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root. It is persisted and read together with its
// items as one unit; an order is never stored with a partial item list.
type Order struct {
	ID        string
	Customer  string
	CreatedAt time.Time
	Status    Status
	Items     []OrderItem
	Total     decimal.Decimal
}

// OrderItem is owned by its Order and has no independent lifecycle.
// ProductName and UnitPrice are a snapshot of the catalog product at
// order-creation time; they are intentionally not kept in sync with
// later catalog changes.
type OrderItem struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// Product is the read-only view of a catalog product. The catalog owns it;
// this service only ever reads a point-in-time snapshot.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus maps a case-insensitive string to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(s)) {
	case StatusPending:
		return StatusPending, nil
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusShipped:
		return StatusShipped, nil
	case StatusDelivered:
		return StatusDelivered, nil
	case StatusCancelled:
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}
