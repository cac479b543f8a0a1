package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/sessiongate/internal/adapter/fsm"
	otelAdapter "github.com/neomorfeo/sessiongate/internal/adapter/otel"
	riverAdapter "github.com/neomorfeo/sessiongate/internal/adapter/river"
	"github.com/neomorfeo/sessiongate/internal/adapter/sqlite"
	"github.com/neomorfeo/sessiongate/internal/app"
	"github.com/neomorfeo/sessiongate/internal/config"

	handler "github.com/neomorfeo/sessiongate/internal/adapter/http"
)

const serviceName = "sessiongate"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	providers, err := otelAdapter.Setup(ctx, otelAdapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otelAdapter.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	tenants := otelAdapter.NewTracingTenantRepository(store.Tenants())
	sessions := otelAdapter.NewTracingSessionRepository(store.Sessions())
	requests := otelAdapter.NewTracingSuspensionRepository(store.Suspensions())

	opts := []app.Option{app.WithLogger(logger)}

	reconciler := otelAdapter.NewTracingReconciler(app.NewSuspensionReconciler(
		requests, tenants, fsm.NewSuspension(),
		app.ReconcilerConfig{BatchSize: cfg.ReconcileBatchSize, ClaimTTL: cfg.ReconcileClaimTTL},
		opts...,
	))

	riverClient, err := riverAdapter.Setup(ctx, store.DB(), riverAdapter.Config{
		Reconciler:        reconciler,
		ReconcileInterval: cfg.ReconcileInterval,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error("river shutdown", "error", err)
		}
	}()

	publisher := otelAdapter.NewTracingPublisher(riverAdapter.NewPublisher(riverClient))

	// --- Application ---
	gate := app.NewTenantGate(tenants, sessions, opts...)
	services := handler.Services{
		Tenants:        app.NewTenantService(tenants, opts...),
		Gate:           gate,
		Sessions:       app.NewSessionLifecycle(gate, sessions, fsm.NewSession(), publisher, opts...),
		Suspensions:    app.NewSuspensionWorkflow(requests, tenants, fsm.NewSuspension(), opts...),
		Reconciler:     reconciler,
		OperatorSecret: cfg.OperatorSecret,
	}
	if cfg.OperatorSecret == "" {
		logger.Warn("OPERATOR_SECRET is empty; admin API is locked")
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	api := humachi.New(router, huma.DefaultConfig(serviceName, "0.1.0"))
	handler.Register(api, services)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("sessiongate listening", "port", cfg.Port, "docs", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("stopped")
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
