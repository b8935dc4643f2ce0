// Package core provides the API chassis for the FieldScout advisor service:
// a chi router with the cross-cutting middleware chain (panic recovery,
// request correlation, logging, CORS, security headers) applied before
// requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fieldscout/internal/config"
)

// Server encapsulates the API dependencies, allowing injection during
// testing and distinct configuration per environment.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// HealthProbes are checked by the health endpoint.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handler routes under /v1. Populated by
	// the application entry point to avoid import cycles between core and
	// handler packages.
	V1RouteRegistrars []func(chi.Router)

	// closers are shut down in registration order on Shutdown.
	closers []io.Closer

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the router. The caller
// mounts routes via MountRoutes after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// RegisterCloser adds a resource to be closed during Shutdown, such as a
// database pool.
func (s *Server) RegisterCloser(c io.Closer) {
	s.closers = append(s.closers, c)
}

// Shutdown gracefully releases server resources.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.Logger.Error("error closing resource", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("closing resource: %w", err)
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return firstErr
}
