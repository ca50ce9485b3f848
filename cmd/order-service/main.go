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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecomlabs/order-orchestrator/internal/order/adapters/catalog"
	"github.com/ecomlabs/order-orchestrator/internal/order/adapters/httpapi"
	"github.com/ecomlabs/order-orchestrator/internal/order/adapters/store/postgres"
	"github.com/ecomlabs/order-orchestrator/internal/order/adapters/store/sqlite"
	"github.com/ecomlabs/order-orchestrator/internal/order/ports"
	"github.com/ecomlabs/order-orchestrator/internal/order/service"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/breaker"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/cache"
	"github.com/ecomlabs/order-orchestrator/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger(getEnv("OTEL_SERVICE_NAME", "order-service"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "order-service"))
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

	store, cleanup, err := buildStore(ctx)
	if err != nil {
		slog.Error("failed to initialise order store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	catalogClient := catalog.NewClient(
		getEnv("CATALOG_URL", "http://localhost:8081"),
		envDuration("CATALOG_TIMEOUT", 5*time.Second),
	)

	br := breaker.New("product-catalog", breaker.Config{
		FailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 5),
		Window:           envDuration("BREAKER_WINDOW", 30*time.Second),
		CoolDown:         envDuration("BREAKER_COOL_DOWN", 10*time.Second),
		MaxTrialCalls:    envInt("BREAKER_MAX_TRIAL_CALLS", 1),
		CallTimeout:      envDuration("BREAKER_CALL_TIMEOUT", 3*time.Second),
		Ignore:           service.IgnoreBusinessErrors,
	})

	var opts []service.Option
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		opts = append(opts, service.WithCache(cache.NewRedisCache(redisAddr, "order")))
	}

	orders := service.New(store, catalogClient, br, opts...)
	router := httpapi.NewRouter(httpapi.NewHandler(orders))

	addr := ":" + getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("order service listening", "addr", addr)
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

// buildStore picks postgres when DATABASE_URL is set, sqlite otherwise.
func buildStore(ctx context.Context) (ports.OrderStore, func(), error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("using postgres order store")
		return postgres.New(pool), pool.Close, nil
	}

	path := getEnv("SQLITE_PATH", "orders.db")
	st, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using sqlite order store", "path", path)
	return st, func() { _ = st.Close() }, nil
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
