package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecomlabs/order-orchestrator/internal/catalog"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/breaker"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger(getEnv("OTEL_SERVICE_NAME", "catalog-service"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "catalog-service"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	probe := breaker.New("stock-probe", breaker.Config{
		FailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 5),
		Window:           envDuration("BREAKER_WINDOW", 30*time.Second),
		CoolDown:         envDuration("BREAKER_COOL_DOWN", 10*time.Second),
		MaxTrialCalls:    envInt("BREAKER_MAX_TRIAL_CALLS", 1),
		CallTimeout:      envDuration("BREAKER_CALL_TIMEOUT", 3*time.Second),
		Ignore:           catalog.IgnoreNotFound,
	})

	svc := catalog.NewService(probe, envDuration("STOCK_PROBE_DELAY", 100*time.Millisecond))
	seedProducts(svc)

	router := catalog.NewRouter(catalog.NewHandler(svc))

	addr := ":" + getEnv("PORT", "8081")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("catalog service listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}

func seedProducts(svc *catalog.Service) {
	seeds := []catalog.Product{
		{Name: "Laptop Pro 14", Description: "14 inch, 32 GB RAM", Price: decimal.RequireFromString("1499.99"), Stock: 10, Category: "electronics"},
		{Name: "Wireless Mouse", Description: "Bluetooth, silent click", Price: decimal.RequireFromString("29.90"), Stock: 200, Category: "accessories"},
		{Name: "USB-C Dock", Description: "Dual HDMI, 100W PD", Price: decimal.RequireFromString("89.00"), Stock: 45, Category: "accessories"},
		{Name: "Mechanical Keyboard", Description: "Hot swap, brown switches", Price: decimal.RequireFromString("119.50"), Stock: 0, Category: "accessories"},
	}
	for _, p := range seeds {
		created := svc.Create(p)
		slog.Info("seeded product", "id", created.ID, "name", created.Name, "stock", created.Stock)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("invalid integer env value, using fallback", "key", key, "value", value)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("invalid duration env value, using fallback", "key", key, "value", value)
	}
	return fallback
}
