// TourPilot - Flight Tour Guide Relay Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/skytour/tourpilot/internal/api"
	"github.com/skytour/tourpilot/internal/config"
	"github.com/skytour/tourpilot/internal/middleware"
	"github.com/skytour/tourpilot/internal/pilot"
	"github.com/skytour/tourpilot/internal/relay"
	"github.com/skytour/tourpilot/internal/session"
	"github.com/skytour/tourpilot/internal/store"
	"github.com/skytour/tourpilot/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	var repo store.Repository
	if cfg.DBPath != "" {
		repo, err = store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()

		if err := repo.Ping(context.Background()); err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Transcript archive connected", "path", cfg.DBPath)
	} else {
		slog.Info("Transcript archive disabled (DB_PATH not set)")
	}

	sessions := session.NewStore()

	flowClient := pilot.NewFlowClient(cfg.FlowClientConfig())
	if flowClient.Configured() {
		slog.Info("Tour guide flow configured", "base_url", cfg.Flow.BaseURL)
	} else {
		slog.Info("Tour guide flow not configured, serving fallback replies only")
	}
	resolver := pilot.NewResolver(flowClient)

	gen := telemetry.NewGenerator()
	var source telemetry.Source
	if !cfg.Telemetry.ForceMock && flowClient.Configured() && cfg.Flow.FlightInfoFlowID != "" {
		source = telemetry.NewFlowSource(flowClient, gen)
		slog.Info("Flight info source: live flow with synthetic fallback")
	} else {
		source = telemetry.NewMockSource(gen)
		slog.Info("Flight info source: synthetic")
	}

	// Initialize handlers.
	registry := relay.NewRegistry()
	wsHandler := relay.NewHandler(sessions, resolver, source, registry, repo, cfg.FrontendURL, cfg.IsDevelopment())
	wsHandler.SetPollInterval(cfg.Telemetry.PollInterval)

	restHandler := api.NewHandler(sessions, resolver, repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))

	r.Get("/health", restHandler.Health)
	restHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Create server.
	// Note: WebSocket connections require long write timeouts.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
