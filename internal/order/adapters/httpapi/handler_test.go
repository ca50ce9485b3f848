package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomlabs/order-orchestrator/internal/order/adapters/store/memory"
	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/service"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/breaker"
)

type stubCatalog struct {
	products map[int64]domain.Product
	err      error
}

func (s *stubCatalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, &domain.ProductNotFoundError{ProductID: id}
	}
	return &p, nil
}

func (s *stubCatalog) HasStock(ctx context.Context, id int64, quantity int) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return false, &domain.ProductNotFoundError{ProductID: id}
	}
	return p.Stock >= quantity, nil
}

func newTestRouter(catalog *stubCatalog) http.Handler {
	br := breaker.New("product-catalog", breaker.Config{
		FailureThreshold: 100, // keep the breaker out of HTTP-layer tests
		Ignore:           service.IgnoreBusinessErrors,
	})
	svc := service.New(memory.New(), catalog, br)
	return NewRouter(NewHandler(svc))
}

func defaultCatalog() *stubCatalog {
	return &stubCatalog{products: map[int64]domain.Product{
		1: {ID: 1, Name: "Teclado", Price: decimal.RequireFromString("10.00"), Stock: 5},
	}}
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createOrder(t *testing.T, router http.Handler) OrderResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/orders",
		`{"customer":"Ana","items":[{"productId":1,"quantity":2}]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var res OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestCreateOrderEndpoint(t *testing.T) {
	router := newTestRouter(defaultCatalog())

	res := createOrder(t, router)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "PENDING", res.Status)
	require.Len(t, res.Items, 1)
	assert.True(t, res.Total.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, res.Items[0].Subtotal.Equal(decimal.RequireFromString("20.00")))
}

func TestCreateOrderIgnoresWirePricing(t *testing.T) {
	router := newTestRouter(defaultCatalog())

	// unitPrice/subtotal in the payload are unknown fields and dropped.
	w := doJSON(t, router, http.MethodPost, "/api/orders",
		`{"customer":"Ana","items":[{"productId":1,"quantity":2,"unitPrice":"0.01","subtotal":"0.02"}]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var res OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestCreateOrderValidationError(t *testing.T) {
	router := newTestRouter(defaultCatalog())

	w := doJSON(t, router, http.MethodPost, "/api/orders", `{"customer":"","items":[]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var res ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "validation_error", res.Error)
	assert.Equal(t, "/api/orders", res.Path)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	router := newTestRouter(defaultCatalog())

	w := doJSON(t, router, http.MethodPost, "/api/orders",
		`{"customer":"Ana","items":[{"productId":1,"quantity":100}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var res ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "insufficient_stock", res.Error)
	assert.Contains(t, res.Message, "product 1")
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	router := newTestRouter(defaultCatalog())

	w := doJSON(t, router, http.MethodPost, "/api/orders",
		`{"customer":"Ana","items":[{"productId":404,"quantity":1}]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrderCatalogDown(t *testing.T) {
	catalog := defaultCatalog()
	catalog.err = errors.New("connection refused")
	router := newTestRouter(catalog)

	w := doJSON(t, router, http.MethodPost, "/api/orders",
		`{"customer":"Ana","items":[{"productId":1,"quantity":1}]}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var res ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "service_unavailable", res.Error)
}

func TestGetOrderEndpoint(t *testing.T) {
	router := newTestRouter(defaultCatalog())
	created := createOrder(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/orders/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var res OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, created.ID, res.ID)
	assert.True(t, res.Total.Equal(created.Total))

	w = doJSON(t, router, http.MethodGet, "/api/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndSearchEndpoints(t *testing.T) {
	router := newTestRouter(defaultCatalog())
	createOrder(t, router)
	createOrder(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/orders?page=0&size=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page PageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.TotalElements)
	assert.Len(t, page.Content, 1)

	w = doJSON(t, router, http.MethodGet, "/api/orders/search?customer=ana&status=PENDING", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.TotalElements)

	w = doJSON(t, router, http.MethodGet, "/api/orders/search?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	router := newTestRouter(defaultCatalog())
	created := createOrder(t, router)

	// Pending straight to Shipped succeeds unconditionally.
	w := doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/status?status=SHIPPED", "")
	require.Equal(t, http.StatusOK, w.Code)

	var res OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "SHIPPED", res.Status)

	w = doJSON(t, router, http.MethodPatch, "/api/orders/"+created.ID+"/status", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/orders/missing/status?status=SHIPPED", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
