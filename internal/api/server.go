// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
console handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/console are allowed to import net/http server primitives.

Route map:

  - /health, /ready        : Unauthenticated probes.
  - /auth/*                : Public authentication endpoints (login throttled).
  - /console/*             : Screen controllers, behind the route guard.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nvbach/mercato/internal/console"
	"github.com/nvbach/mercato/internal/platform/config"
	"github.com/nvbach/mercato/internal/platform/constants"
	"github.com/nvbach/mercato/internal/platform/middleware"
	"github.com/nvbach/mercato/internal/platform/sec"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all console HTTP handler sets.
//
// # Usage
//
// New screens land inside console.Screens; a genuinely new surface adds a
// field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth handles the public authentication routes (login, logout, notice).
	Auth *console.AuthHandler

	// Screens handles every guarded dashboard screen.
	Screens *console.Screens
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// The done channel stops the rate limiters' background sweeps on shutdown.
func NewServer(done <-chan struct{}, cfg *config.Config, log *slog.Logger, resolver middleware.SessionResolver, signer *sec.CookieSigner, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(done))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Public Authentication
	r.Mount("/auth", h.Auth.Routes(middleware.LoginRateLimit(done)))

	// # Guarded Console
	r.Route("/console", func(guarded chi.Router) {
		guarded.Use(middleware.Guard(resolver, signer))
		guarded.Mount("/", h.Screens.Routes())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
