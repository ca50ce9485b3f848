package httpapi

import "github.com/shopspring/decimal"

// CreateOrderRequest is the inbound wire shape of a draft order. Any
// price, name or subtotal fields the caller supplies are ignored; the
// orchestrator recomputes them from the catalog.
type CreateOrderRequest struct {
	Customer string               `json:"customer"`
	Items    []CreateOrderItemDTO `json:"items"`
}

type CreateOrderItemDTO struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type OrderResponse struct {
	ID        string              `json:"id"`
	Customer  string              `json:"customer"`
	Status    string              `json:"status"`
	CreatedAt string              `json:"createdAt"`
	Items     []OrderItemResponse `json:"items"`
	Total     decimal.Decimal     `json:"total"`
}

type OrderItemResponse struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type PageResponse struct {
	Content       []OrderResponse `json:"content"`
	TotalElements int64           `json:"totalElements"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}
