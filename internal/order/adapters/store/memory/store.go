// Package memory provides an in-process OrderStore for tests and local runs
// without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"
)

var _ ports.OrderStore = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func New() *Store {
	return &Store{orders: make(map[string]domain.Order)}
}

func (s *Store) Save(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := cloneOrder(o)
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	s.orders[saved.ID] = saved

	out := cloneOrder(&saved)
	return &out, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	out := cloneOrder(&o)
	return &out, nil
}

func (s *Store) FindPage(ctx context.Context, filter ports.Filter, spec ports.PageSpec) (*ports.Page, error) {
	if spec.Size <= 0 {
		spec.Size = 10
	}
	if spec.Page < 0 {
		spec.Page = 0
	}

	s.mu.RLock()
	matched := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Customer != "" &&
			!strings.Contains(strings.ToLower(o.Customer), strings.ToLower(filter.Customer)) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneOrder(&o))
	}
	s.mu.RUnlock()

	switch spec.Sort {
	case "customer":
		sort.Slice(matched, func(i, j int) bool { return matched[i].Customer < matched[j].Customer })
	default:
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].ID < matched[j].ID
			}
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		})
	}

	total := int64(len(matched))
	start := spec.Page * spec.Size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + spec.Size
	if end > len(matched) {
		end = len(matched)
	}

	return &ports.Page{
		Content:       matched[start:end],
		TotalElements: total,
		Page:          spec.Page,
		Size:          spec.Size,
	}, nil
}

// cloneOrder copies the aggregate so callers never share item slices with
// the store's internal map.
func cloneOrder(o *domain.Order) domain.Order {
	out := *o
	out.Items = make([]domain.OrderItem, len(o.Items))
	copy(out.Items, o.Items)
	return out
}
