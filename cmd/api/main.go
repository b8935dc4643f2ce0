// Package main is the entry point for the FieldScout advisor API server.
//
// It loads configuration, picks the persistence backend (PostgreSQL when
// DATABASE_URL is set, in-memory with the demo playbook seeded otherwise),
// wires the weather provider, and serves the v1 API with graceful shutdown
// on SIGINT/SIGTERM.
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

	"github.com/go-chi/chi/v5"

	"fieldscout/internal/api/handlers"
	"fieldscout/internal/config"
	"fieldscout/internal/core"
	"fieldscout/internal/db"
	"fieldscout/internal/engine"
	"fieldscout/internal/external"
	"fieldscout/internal/patch"
	"fieldscout/internal/playbook"
	"fieldscout/internal/recommendation"
	"fieldscout/internal/types"
	"fieldscout/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("fieldscout advisor starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"weather_mode", cfg.Weather.Mode,
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	clock := types.RealClock{}

	// Persistence backend: PostgreSQL when configured, in-memory otherwise.
	var (
		pbStore  handlers.PBStore
		recStore recStoreDeps
		patchLog handlers.PBPatchLog
	)
	if cfg.Database.URL.Unmask() != "" {
		pool, err := db.NewPool(context.Background(), cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		srv.RegisterCloser(poolCloser{pool: pool})
		srv.HealthProbes = append(srv.HealthProbes, db.PoolProbe{Pool: pool})

		pbStore = db.NewPlaybookRepository(pool)
		recStore = db.NewRecommendationRepository(pool)
		patchLog = db.NewPatchRepository(pool)
		logger.Info("using postgresql persistence")
	} else {
		memory := playbook.NewMemoryStore()
		if err := memory.Seed(context.Background(), playbook.Demo()); err != nil {
			return fmt.Errorf("seeding demo playbook: %w", err)
		}
		pbStore = memory
		recStore = recommendation.NewMemoryStore()
		patchLog = patch.NewMemoryLog()
		logger.Info("using in-memory persistence with demo playbook seeded",
			"playbook_id", playbook.DemoPlaybookID,
		)
	}

	provider := newWeatherProvider(cfg, clock, logger)
	builder := engine.NewBuilder(clock, logger)
	orchestrator := patch.NewOrchestrator(builder, logger)

	recHandler := handlers.NewRecommendationHandler(
		recStore, pbStore, provider, builder, srv.Validator, logger, clock)
	pbHandler := handlers.NewPlaybookHandler(
		pbStore, recStore, patchLog, orchestrator, srv.Validator, logger, clock)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { recHandler.RegisterRoutes(r) },
		func(r chi.Router) { pbHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// recStoreDeps is the union of the recommendation store methods the two
// handlers need, satisfied by both the memory store and the pgx repository.
type recStoreDeps interface {
	handlers.RecStore
	handlers.PBRecContext
}

// newWeatherProvider builds the weather provider for the configured mode.
// Live mode wraps the Synoptic client in the resilient base client; demo mode
// serves the built-in fixture.
func newWeatherProvider(cfg *config.Config, clock types.Clock, logger *slog.Logger) *weather.Provider {
	if cfg.Weather.Mode != string(types.WeatherSourceLive) {
		return weather.NewProvider(types.WeatherSourceDemo, nil, clock, logger)
	}

	base := external.NewBaseClient(
		&http.Client{Timeout: cfg.Weather.RequestTimeout},
		"synoptic",
		external.DefaultRetryPolicy(),
		"fieldscout-advisor/"+cfg.Build.Version,
	)
	fetcher := weather.NewSynopticClient(base, cfg.Weather.SynopticBaseURL, cfg.Weather.SynopticToken.Unmask())
	return weather.NewProvider(types.WeatherSourceLive, fetcher, clock, logger)
}

// poolCloser adapts pgxpool's void Close to io.Closer for server shutdown.
type poolCloser struct {
	pool interface{ Close() }
}

func (c poolCloser) Close() error {
	c.pool.Close()
	return nil
}

// runHTTPServer starts the server with graceful shutdown on SIGINT/SIGTERM.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
