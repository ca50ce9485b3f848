package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecomlabs/order-orchestrator/internal/order/domain"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"
	"github.com/ecomlabs/order-orchestrator/internal/order/service"
)

// Handler serves the order HTTP API on top of the orchestrator service.
type Handler struct {
	orders *service.Service
}

func NewHandler(orders *service.Service) *Handler {
	return &Handler{orders: orders}
}

// CreateOrder decodes the draft, runs the orchestration and returns the
// persisted aggregate with 201.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	slog.InfoContext(r.Context(), "creating order", "customer", req.Customer, "items", len(req.Items))

	order, err := h.orders.CreateOrder(r.Context(), draftFromRequest(req))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, orderToResponse(order))
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderToResponse(order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.orders.List(r.Context(), pageSpecFromQuery(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// SearchOrders filters by customer substring and/or status; with neither
// query parameter present it falls back to a plain listing.
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	customer := r.URL.Query().Get("customer")

	var status domain.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseStatus(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		status = parsed
	}

	page, err := h.orders.Search(r.Context(), customer, status, pageSpecFromQuery(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw := r.URL.Query().Get("status")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "status_required", "query parameter status is required")
		return
	}
	status, err := domain.ParseStatus(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderToResponse(order))
}

func pageSpecFromQuery(r *http.Request) ports.PageSpec {
	q := r.URL.Query()
	spec := ports.PageSpec{Size: 10, Sort: "created_at"}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v >= 0 {
		spec.Page = v
	}
	if v, err := strconv.Atoi(q.Get("size")); err == nil && v > 0 {
		spec.Size = v
	}
	if v := q.Get("sort"); v != "" {
		spec.Sort = v
	}
	return spec
}

// writeDomainError maps service errors onto HTTP statuses: validation and
// stock problems are the caller's fault, catalog outages are retryable,
// everything unexpected is a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *domain.ValidationError
		stockErr      *domain.InsufficientStockError
		notFoundErr   *domain.ProductNotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.As(err, &stockErr):
		writeError(w, r, http.StatusBadRequest, "insufficient_stock", err.Error())
	case errors.As(err, &notFoundErr):
		writeError(w, r, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, r, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		slog.ErrorContext(r.Context(), "unexpected error", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}
