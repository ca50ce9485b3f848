// Package catalog provides the HTTP client for the remote product catalog
// service. It implements ports.ProductCatalog.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"
)

var _ ports.ProductCatalog = (*Client)(nil)

// Client calls the catalog's REST API. Concurrent fetches of the same
// product are collapsed into a single request via singleflight.
type Client struct {
	baseURL string
	http    *http.Client
	group   singleflight.Group
}

// NewClient builds a catalog client for the given base URL, e.g.
// "http://catalog:8081". Requests are traced and bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// productDTO is the catalog's wire shape for a product.
type productDTO struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
}

// GetProduct fetches a point-in-time product snapshot.
func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return c.fetchProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (c *Client) fetchProduct(ctx context.Context, id int64) (*domain.Product, error) {
	url := fmt.Sprintf("%s/api/products/%d", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: get product %d: %w", id, err)
	}
	defer drainAndClose(res.Body)

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &domain.ProductNotFoundError{ProductID: id}
	default:
		return nil, fmt.Errorf("catalog: get product %d: unexpected status %d", id, res.StatusCode)
	}

	var dto productDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("catalog: decode product %d: %w", id, err)
	}

	return &domain.Product{
		ID:          dto.ID,
		Name:        dto.Name,
		Description: dto.Description,
		Price:       dto.Price,
		Stock:       dto.Stock,
		Category:    dto.Category,
	}, nil
}

// HasStock reports whether the catalog can fulfil quantity units of product id.
func (c *Client) HasStock(ctx context.Context, id int64, quantity int) (bool, error) {
	url := fmt.Sprintf("%s/api/products/%d/check-stock?quantity=%d", c.baseURL, id, quantity)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("catalog: build request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("catalog: check stock for product %d: %w", id, err)
	}
	defer drainAndClose(res.Body)

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, &domain.ProductNotFoundError{ProductID: id}
	default:
		return false, fmt.Errorf("catalog: check stock for product %d: unexpected status %d", id, res.StatusCode)
	}

	var hasStock bool
	if err := json.NewDecoder(res.Body).Decode(&hasStock); err != nil {
		return false, fmt.Errorf("catalog: decode stock check for product %d: %w", id, err)
	}
	return hasStock, nil
}

// drainAndClose lets the transport reuse the connection.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
