// Package catalog implements a small in-memory product catalog service for
// local development and manual testing of the order orchestrator. It serves
// the same REST contract the orchestrator's client consumes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecomlabs/order-orchestrator/internal/pkg/breaker"
)

// Product is the catalog's own record; Price is exact decimal.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
}

// ProductNotFoundError is returned for unknown product ids.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// Service holds the product inventory. The stock probe goes through its own
// circuit breaker: when the probe is slow or the breaker is open, the probe
// answers a conservative "no stock" instead of failing the read.
type Service struct {
	mu       sync.RWMutex
	nextID   int64
	products map[int64]Product

	probe      *breaker.Breaker
	probeDelay time.Duration
}

// NewService builds a catalog. probeDelay simulates the latency of a real
// inventory backend behind the stock probe; zero disables it.
func NewService(probe *breaker.Breaker, probeDelay time.Duration) *Service {
	return &Service{
		nextID:     1,
		products:   make(map[int64]Product),
		probe:      probe,
		probeDelay: probeDelay,
	}
}

// Create stores the product and assigns its id.
func (s *Service) Create(p Product) Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID
	s.nextID++
	s.products[p.ID] = p
	return p
}

func (s *Service) Get(id int64) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Service) List() []Product {
	s.mu.RLock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CheckStock reports whether quantity units of product id are available.
// Probe failures (timeout, open breaker) degrade to false rather than an
// error: a stock read must never take the whole catalog down with it.
func (s *Service) CheckStock(ctx context.Context, id int64, quantity int) (bool, error) {
	var available bool
	err := s.probe.Do(ctx, func(ctx context.Context) error {
		if s.probeDelay > 0 {
			select {
			case <-time.After(s.probeDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		p, ok := s.Get(id)
		if !ok {
			return &ProductNotFoundError{ProductID: id}
		}
		available = p.Stock >= quantity
		return nil
	})

	var nf *ProductNotFoundError
	switch {
	case err == nil:
		return available, nil
	case errors.As(err, &nf):
		return false, err
	default:
		slog.WarnContext(ctx, "stock probe degraded, answering no stock",
			"product_id", id, "breaker", s.probe.State().String(), "error", err)
		return false, nil
	}
}

// IgnoreNotFound keeps "unknown product" replies from tripping the probe's
// breaker.
func IgnoreNotFound(err error) bool {
	var nf *ProductNotFoundError
	return errors.As(err, &nf)
}
