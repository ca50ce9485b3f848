// Package service holds the order-creation orchestrator: the workflow that
// validates a draft against the remote product catalog, prices every item,
// and commits the aggregate all-or-nothing.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/breaker"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/cache"
)

const orderCacheTTL = 5 * time.Minute

// Service orchestrates order creation and serves the read paths.
type Service struct {
	store   ports.OrderStore
	catalog ports.ProductCatalog
	breaker *breaker.Breaker
	cache   cache.Cache // nil-safe: caching skipped if nil
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables read-through caching of GetByID results.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock replaces the wall clock used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New wires the orchestrator. br guards every call to the catalog; it is
// shared with any other caller targeting the same dependency.
func New(store ports.OrderStore, catalog ports.ProductCatalog, br *breaker.Breaker, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: catalog,
		breaker: br,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IgnoreBusinessErrors is the breaker predicate for the product catalog:
// a well-formed "product not found" reply proves the dependency is healthy
// and must not count towards tripping the circuit.
func IgnoreBusinessErrors(err error) bool {
	var nf *domain.ProductNotFoundError
	return errors.As(err, &nf)
}

// CreateOrder runs the per-order workflow. Items are verified and priced
// sequentially in input order; the first failure aborts the whole operation
// before anything is persisted. On success the complete aggregate is saved
// in a single store call and returned with its assigned id.
func (s *Service) CreateOrder(ctx context.Context, draft *domain.Order) (*domain.Order, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	for i := range draft.Items {
		item := &draft.Items[i]

		var inStock bool
		err := s.callCatalog(ctx, func(ctx context.Context) error {
			var err error
			inStock, err = s.catalog.HasStock(ctx, item.ProductID, item.Quantity)
			return err
		})
		if err != nil {
			return nil, err
		}
		if !inStock {
			return nil, &domain.InsufficientStockError{ProductID: item.ProductID, Quantity: item.Quantity}
		}

		var product *domain.Product
		err = s.callCatalog(ctx, func(ctx context.Context) error {
			var err error
			product, err = s.catalog.GetProduct(ctx, item.ProductID)
			return err
		})
		if err != nil {
			return nil, err
		}

		// Snapshot the catalog's name and price onto the item. Anything the
		// caller supplied for these fields is overwritten.
		item.ProductName = product.Name
		item.UnitPrice = product.Price
		item.Subtotal = product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
	}

	total := decimal.Zero
	for i := range draft.Items {
		total = total.Add(draft.Items[i].Subtotal)
	}

	draft.ID = ""
	draft.Total = total
	draft.CreatedAt = s.now().UTC()
	draft.Status = domain.StatusPending

	saved, err := s.store.Save(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	slog.InfoContext(ctx, "order created",
		"order_id", saved.ID,
		"customer", saved.Customer,
		"items", len(saved.Items),
		"total", saved.Total.String(),
	)
	return saved, nil
}

// callCatalog invokes fn through the circuit breaker and classifies the
// outcome. Business errors pass through untouched; breaker rejections,
// timeouts and transport failures all become ErrServiceUnavailable so the
// whole creation fails fast with a retryable error.
func (s *Service) callCatalog(ctx context.Context, fn func(context.Context) error) error {
	err := s.breaker.Do(ctx, fn)
	switch {
	case err == nil:
		return nil
	case IgnoreBusinessErrors(err):
		return err
	case errors.Is(err, breaker.ErrOpen):
		slog.WarnContext(ctx, "catalog call short-circuited", "breaker", s.breaker.Name())
		return fmt.Errorf("%s: circuit open: %w", s.breaker.Name(), domain.ErrServiceUnavailable)
	default:
		return fmt.Errorf("%s: %v: %w", s.breaker.Name(), err, domain.ErrServiceUnavailable)
	}
}

// GetByID returns the persisted aggregate, consulting the cache first.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if s.cache != nil {
		key := s.cache.GenerateKey("order", id)
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
			var o domain.Order
			if err := json.Unmarshal([]byte(raw), &o); err == nil {
				return &o, nil
			}
		}
	}

	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cachePut(ctx, o)
	return o, nil
}

// List returns a page of all orders.
func (s *Service) List(ctx context.Context, spec ports.PageSpec) (*ports.Page, error) {
	return s.store.FindPage(ctx, ports.Filter{}, spec)
}

// Search filters orders by customer substring and/or status; with neither
// set it behaves like List.
func (s *Service) Search(ctx context.Context, customer string, status domain.Status, spec ports.PageSpec) (*ports.Page, error) {
	return s.store.FindPage(ctx, ports.Filter{Customer: customer, Status: status}, spec)
}

// UpdateStatus sets the order's status unconditionally: any status may
// follow any other, there is no transition legality check.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error) {
	o, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	o.Status = status
	saved, err := s.store.Save(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.cachePut(ctx, saved)
	slog.InfoContext(ctx, "order status updated", "order_id", id, "status", string(status))
	return saved, nil
}

func (s *Service) cachePut(ctx context.Context, o *domain.Order) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := s.cache.GenerateKey("order", o.ID)
	if err := s.cache.Set(ctx, key, string(raw), orderCacheTTL); err != nil {
		slog.WarnContext(ctx, "order cache write failed", "order_id", o.ID, "error", err)
	}
}

func validateDraft(draft *domain.Order) error {
	if strings.TrimSpace(draft.Customer) == "" {
		return &domain.ValidationError{Field: "customer", Reason: "must not be empty"}
	}
	if len(draft.Items) == 0 {
		return &domain.ValidationError{Field: "items", Reason: "must contain at least one item"}
	}
	for i := range draft.Items {
		item := &draft.Items[i]
		if item.ProductID <= 0 {
			return &domain.ValidationError{Field: "items.productId", Reason: "is required"}
		}
		if item.Quantity <= 0 {
			return &domain.ValidationError{Field: "items.quantity", Reason: "must be positive"}
		}
	}
	return nil
}
