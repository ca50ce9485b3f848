package ports

import (
	"context"

	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
)

// ProductCatalog is the port for the remote product catalog service.
// Implementations are network clients; calls may fail or time out, so every
// method takes a context with a deadline. Tests substitute an in-memory fake.
type ProductCatalog interface {
	// GetProduct returns the catalog's current view of a product, or a
	// *domain.ProductNotFoundError if the id is unknown.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// HasStock reports whether at least quantity units are available.
	HasStock(ctx context.Context, id int64, quantity int) (bool, error)
}

// Filter narrows a FindPage query. Zero values mean "no constraint".
type Filter struct {
	// Customer matches orders whose customer name contains this substring,
	// case-insensitively.
	Customer string
	Status   domain.Status
}

// PageSpec carries pagination parameters. Page is zero-based.
type PageSpec struct {
	Page int
	Size int
	// Sort picks the order key: "customer", or "created_at". Unrecognized
	// values sort by created_at. Both keys sort ascending with id as the
	// tiebreaker.
	Sort string
}

// Page is one page of orders plus the total match count across all pages.
type Page struct {
	Content       []domain.Order
	TotalElements int64
	Page          int
	Size          int
}

// OrderStore is the port for order persistence. Save must commit the order
// and all of its items as one unit; a partially persisted aggregate is not a
// legal observable state.
type OrderStore interface {
	// Save inserts the order when its ID is empty (assigning one) and
	// updates it otherwise. It returns the persisted aggregate.
	Save(ctx context.Context, o *domain.Order) (*domain.Order, error)

	// FindByID returns the aggregate or domain.ErrOrderNotFound.
	FindByID(ctx context.Context, id string) (*domain.Order, error)

	// FindPage returns the orders matching filter, paginated by spec.
	FindPage(ctx context.Context, filter Filter, spec PageSpec) (*Page, error)
}
