package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomlabs/order-orchestrator/internal/order/adapters/store/memory"
	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/breaker"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/cache"
)

// fakeCatalog is an in-memory ProductCatalog. Setting err makes every call
// fail, simulating an unreachable dependency.
type fakeCatalog struct {
	products map[int64]domain.Product
	err      error
	calls    int
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, &domain.ProductNotFoundError{ProductID: id}
	}
	return &p, nil
}

func (f *fakeCatalog) HasStock(ctx context.Context, id int64, quantity int) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return false, &domain.ProductNotFoundError{ProductID: id}
	}
	return p.Stock >= quantity, nil
}

// countingStore wraps the in-memory store to count writes.
type countingStore struct {
	ports.OrderStore
	saves int
}

func (c *countingStore) Save(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	c.saves++
	return c.OrderStore.Save(ctx, o)
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(products map[int64]domain.Product) (*Service, *fakeCatalog, *countingStore) {
	catalog := &fakeCatalog{products: products}
	store := &countingStore{OrderStore: memory.New()}
	br := breaker.New("product-catalog", breaker.Config{
		FailureThreshold: 3,
		Ignore:           IgnoreBusinessErrors,
	})
	svc := New(store, catalog, br)
	return svc, catalog, store
}

func draft(customer string, items ...domain.OrderItem) *domain.Order {
	return &domain.Order{Customer: customer, Items: items}
}

func TestCreateOrderComputesExactTotals(t *testing.T) {
	svc, _, store := newFixture(map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 5},
		2: {ID: 2, Name: "Monitor", Price: price("199.99"), Stock: 3},
	})

	o, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 1, Quantity: 2},
		domain.OrderItem{ProductID: 2, Quantity: 3},
	))
	require.NoError(t, err)

	require.NotEmpty(t, o.ID)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.False(t, o.CreatedAt.IsZero())
	require.Len(t, o.Items, 2)

	assert.Equal(t, "Teclado", o.Items[0].ProductName)
	assert.True(t, o.Items[0].Subtotal.Equal(price("20.00")), "subtotal %s", o.Items[0].Subtotal)
	assert.True(t, o.Items[1].Subtotal.Equal(price("599.97")), "subtotal %s", o.Items[1].Subtotal)
	assert.True(t, o.Total.Equal(price("619.97")), "total %s", o.Total)

	// Each subtotal equals unitPrice × quantity exactly.
	for _, item := range o.Items {
		want := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		assert.True(t, item.Subtotal.Equal(want))
	}
	assert.Equal(t, 1, store.saves)
}

func TestCreateOrderOverwritesCallerSuppliedPricing(t *testing.T) {
	svc, _, _ := newFixture(map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 5},
	})

	o, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 1, Quantity: 2, ProductName: "lies", UnitPrice: price("0.01"), Subtotal: price("0.02")},
	))
	require.NoError(t, err)

	assert.Equal(t, "Teclado", o.Items[0].ProductName)
	assert.True(t, o.Items[0].UnitPrice.Equal(price("10.00")))
	assert.True(t, o.Total.Equal(price("20.00")))
}

func TestCreateOrderInsufficientStockFailsWithoutPersisting(t *testing.T) {
	svc, _, store := newFixture(map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 5},
		2: {ID: 2, Name: "Monitor", Price: price("199.99"), Stock: 3},
	})

	_, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 1, Quantity: 1},
		domain.OrderItem{ProductID: 2, Quantity: 100},
	))

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.ProductID)
	assert.Equal(t, 0, store.saves, "no partial order may ever reach the store")
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	svc, _, store := newFixture(map[int64]domain.Product{})

	_, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 42, Quantity: 1},
	))

	var nf *domain.ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(42), nf.ProductID)
	assert.Equal(t, 0, store.saves)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, catalog, store := newFixture(map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 5},
	})

	cases := []struct {
		name  string
		draft *domain.Order
	}{
		{"empty customer", draft("  ", domain.OrderItem{ProductID: 1, Quantity: 1})},
		{"no items", draft("Ana")},
		{"missing product id", draft("Ana", domain.OrderItem{Quantity: 1})},
		{"non-positive quantity", draft("Ana", domain.OrderItem{ProductID: 1, Quantity: 0})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), tc.draft)
			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	// Validation rejects before any remote call or write.
	assert.Equal(t, 0, catalog.calls)
	assert.Equal(t, 0, store.saves)
}

func TestCreateOrderFailsFastOnceBreakerOpens(t *testing.T) {
	svc, catalog, store := newFixture(nil)
	catalog.err = errors.New("connection refused")

	// Three failing creations trip the breaker (threshold 3, one remote
	// call each since the stock check fails first).
	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(context.Background(), draft("Ana",
			domain.OrderItem{ProductID: 1, Quantity: 1},
		))
		require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	}
	require.Equal(t, 3, catalog.calls)

	// The next creation is rejected without reaching the network.
	_, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 1, Quantity: 1},
	))
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, 3, catalog.calls, "breaker must short-circuit the call")
	assert.Equal(t, 0, store.saves)
}

func TestCreateOrderRecoversAfterCoolDown(t *testing.T) {
	clk := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clk }

	catalog := &fakeCatalog{}
	catalog.err = errors.New("connection refused")
	store := &countingStore{OrderStore: memory.New()}
	br := breaker.New("product-catalog", breaker.Config{
		FailureThreshold: 2,
		CoolDown:         10 * time.Second,
		Ignore:           IgnoreBusinessErrors,
	}, breaker.WithClock(func() time.Time { return clk }))
	svc := New(store, catalog, br, WithClock(now))

	for i := 0; i < 2; i++ {
		_, err := svc.CreateOrder(context.Background(), draft("Ana",
			domain.OrderItem{ProductID: 1, Quantity: 1},
		))
		require.ErrorIs(t, err, domain.ErrServiceUnavailable)
	}
	require.Equal(t, breaker.Open, br.State())

	// Dependency recovers while the breaker cools down.
	catalog.err = nil
	catalog.products = map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 5},
	}
	clk = clk.Add(11 * time.Second)

	o, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 1, Quantity: 2},
	))
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(price("20.00")))
	assert.Equal(t, breaker.Closed, br.State())
	assert.Equal(t, 1, store.saves)
}

func TestGetByIDReturnsWhatWasComputed(t *testing.T) {
	svc, _, _ := newFixture(map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 5},
	})

	created, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 1, Quantity: 2},
	))
	require.NoError(t, err)

	got, err := svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.Status, got.Status)
	require.Len(t, got.Items, len(created.Items))
	assert.Equal(t, created.Total.String(), got.Total.String())
	assert.Equal(t, created.Items[0].UnitPrice.String(), got.Items[0].UnitPrice.String())
	assert.Equal(t, created.Items[0].Subtotal.String(), got.Items[0].Subtotal.String())
}

func TestGetByIDUsesCache(t *testing.T) {
	catalog := &fakeCatalog{products: map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 5},
	}}
	store := &countingStore{OrderStore: memory.New()}
	br := breaker.New("product-catalog", breaker.Config{Ignore: IgnoreBusinessErrors})
	svc := New(store, catalog, br, WithCache(cache.NewMemoryCache("order")))

	created, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)

	// First read populates the cache; a second read is served from it even
	// if the backing row disappears.
	_, err = svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)

	fresh := memory.New()
	svcBroken := New(fresh, catalog, br, WithCache(svc.cache))
	got, err := svcBroken.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _, _ := newFixture(nil)

	_, err := svc.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestUpdateStatusIsPermissive(t *testing.T) {
	svc, _, _ := newFixture(map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 5},
	})

	created, err := svc.CreateOrder(context.Background(), draft("Ana",
		domain.OrderItem{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)

	// Pending straight to Shipped: no transition legality check.
	updated, err := svc.UpdateStatus(context.Background(), created.ID, domain.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, updated.Status)

	// And back again, equally fine.
	updated, err = svc.UpdateStatus(context.Background(), created.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, updated.Status)
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, _, _ := newFixture(nil)

	_, err := svc.UpdateStatus(context.Background(), "missing", domain.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestSearchFilters(t *testing.T) {
	svc, _, _ := newFixture(map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: price("10.00"), Stock: 50},
	})

	for _, customer := range []string{"Ana Torres", "Bruno", "Mariana"} {
		_, err := svc.CreateOrder(context.Background(), draft(customer,
			domain.OrderItem{ProductID: 1, Quantity: 1},
		))
		require.NoError(t, err)
	}

	page, err := svc.Search(context.Background(), "ana", "", ports.PageSpec{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalElements)

	page, err = svc.Search(context.Background(), "", domain.StatusPending, ports.PageSpec{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalElements)

	page, err = svc.List(context.Background(), ports.PageSpec{Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Content, 2)
	assert.Equal(t, int64(3), page.TotalElements)
}
