package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// Handler exposes the catalog over REST.
type Handler struct {
	catalog *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{catalog: svc}
}

// NewRouter wires the catalog routes with the standard middleware chain.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
		r.Get("/{id}/check-stock", h.CheckStock)
	})

	return otelhttp.NewHandler(r, "catalog-service")
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, r, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if p.Name == "" {
		writeError(w, r, http.StatusBadRequest, "Bad Request", "name is required")
		return
	}
	if p.Price.IsNegative() {
		writeError(w, r, http.StatusBadRequest, "Bad Request", "price must not be negative")
		return
	}
	if p.Stock < 0 {
		writeError(w, r, http.StatusBadRequest, "Bad Request", "stock must not be negative")
		return
	}

	created := h.catalog.Create(p)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Bad Request", "product id must be an integer")
		return
	}

	p, ok := h.catalog.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "Not Found", (&ProductNotFoundError{ProductID: id}).Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CheckStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Bad Request", "product id must be an integer")
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity <= 0 {
		writeError(w, r, http.StatusBadRequest, "Bad Request", "quantity must be a positive integer")
		return
	}

	available, err := h.catalog.CheckStock(r.Context(), id, quantity)
	if err != nil {
		var nf *ProductNotFoundError
		if errors.As(err, &nf) {
			writeError(w, r, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error", "stock check failed")
		return
	}

	// The body is the bare boolean; callers branch on it directly.
	writeJSON(w, http.StatusOK, available)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	writeJSON(w, status, errorResponse{
		Error:     kind,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}
