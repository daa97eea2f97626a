// Football Network portal companion server
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

	"github.com/footballnetwork/portal/internal/api"
	"github.com/footballnetwork/portal/internal/auth"
	"github.com/footballnetwork/portal/internal/config"
	"github.com/footballnetwork/portal/internal/dashboard"
	"github.com/footballnetwork/portal/internal/identity"
	"github.com/footballnetwork/portal/internal/marketplace"
	"github.com/footballnetwork/portal/internal/middleware"
	"github.com/footballnetwork/portal/internal/realtime"
	"github.com/footballnetwork/portal/internal/session"
	"github.com/footballnetwork/portal/internal/store"
	"github.com/footballnetwork/portal/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "api", cfg.APIBaseURL, "dev", cfg.IsDevelopment())

	// Local state.
	local, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := local.Close(); closeErr != nil {
			slog.Error("Failed to close local state", "error", closeErr)
		}
	}()

	if err := local.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	client, err := marketplace.New(cfg.APIBaseURL,
		marketplace.WithTimeout(cfg.APITimeout),
		marketplace.WithLogger(logger),
	)
	if err != nil {
		slog.Error("Failed to initialize marketplace client", "error", err)
		os.Exit(1)
	}

	// Session and its owners.
	sessions := session.New()
	bootstrapper := auth.NewBootstrapper(sessions, client, local, logger)
	loader := dashboard.NewLoader(client, cfg.Dashboard.FeaturedJobsLimit, logger)
	hub := realtime.NewHub()

	// Initialize handlers.
	baseHandler := api.NewHandler(sessions, bootstrapper, client, loader)
	sessionHandler := api.NewSessionHandler(baseHandler, cfg)
	resourceHandler := api.NewResourceHandler(baseHandler)
	healthHandler := api.NewHealthHandler(local)
	wsHandler := realtime.NewWebSocketHandler(sessions, client, hub, realtime.Options{
		PollInterval:  cfg.Inbox.PollInterval,
		AllowedOrigin: cfg.FrontendURL,
		IsDev:         cfg.IsDevelopment(),
		Logger:        logger,
	})

	origins := []string{"*"}
	if !cfg.IsDevelopment() {
		origins = []string{cfg.FrontendURL}
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(origins))
	r.Use(identity.Middleware(sessions))

	// Public routes.
	healthHandler.RegisterHealth(r)

	r.Route("/api", func(r chi.Router) {
		sessionHandler.RegisterRoutes(r)
		resourceHandler.RegisterRoutes(r)
	})

	// WebSocket endpoint.
	r.Get("/ws", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WebSocket views are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolve the persisted credential in the background. Views see the
	// pending status until it finishes.
	go func() {
		if err := bootstrapper.Bootstrap(ctx); err != nil {
			slog.Warn("Session bootstrap failed", "error", err)
			return
		}
		slog.Info("Session bootstrap complete", "status", sessions.Snapshot().Status)
	}()

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

	// Hijacked WebSocket connections are not closed by Shutdown.
	hub.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
