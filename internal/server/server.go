// Package server implements the HTTP transport layer for the database gateway.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
	"github.com/nyuchitech/mukoko-db-gateway/internal/app"
	"github.com/nyuchitech/mukoko-db-gateway/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Auth       gateway.Authenticator
	Query      *app.QueryService
	ReadyCheck ReadyChecker          // nil = always ready (for tests)
	Metrics    *telemetry.Metrics    // nil = no metrics
	Registry   *prometheus.Registry  // nil = no /metrics endpoint
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// The query endpoint accepts POST only; anything else gets the 405 JSON
	// shape rather than chi's default empty body.
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// System endpoints (no auth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// The single operation endpoint (auth required)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/", s.handleQuery)
		r.Post("/query", s.handleQuery)
	})

	return r
}

type server struct {
	deps Deps
}
