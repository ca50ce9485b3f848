package httpapi

import (
	"time"

	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"
)

// draftFromRequest maps the wire shape to a domain draft. Only product id
// and quantity survive the trip inbound; pricing is never trusted from the
// wire.
func draftFromRequest(req CreateOrderRequest) *domain.Order {
	items := make([]domain.OrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		}
	}
	return &domain.Order{
		Customer: req.Customer,
		Items:    items,
	}
}

// orderToResponse maps the aggregate outbound. Monetary fields pass through
// unchanged; decimal values serialise as exact strings.
func orderToResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		}
	}
	return OrderResponse{
		ID:        o.ID,
		Customer:  o.Customer,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339Nano),
		Items:     items,
		Total:     o.Total,
	}
}

func pageToResponse(p *ports.Page) PageResponse {
	content := make([]OrderResponse, len(p.Content))
	for i := range p.Content {
		content[i] = orderToResponse(&p.Content[i])
	}
	return PageResponse{
		Content:       content,
		TotalElements: p.TotalElements,
		Page:          p.Page,
		Size:          p.Size,
	}
}
