// Package httpserver exposes the catalog's read surface and the per-user
// settings endpoints as a JSON API.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"agentbuilders.dev/internal/catalog"
	"agentbuilders.dev/internal/config"
	"agentbuilders.dev/internal/database"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http *http.Server
}

// Pinger is the liveness surface the health endpoint depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ Pinger = (*database.Database)(nil)

// New builds the HTTP server: router, middlewares, route registration.
func New(cfg *config.Config, db Pinger, svc *catalog.Service) *Server {
	h := &handler{
		db:            db,
		catalog:       svc,
		subjectHeader: cfg.GetAuthSubjectHeader(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", h.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/frameworks", h.listFrameworks)
		r.Get("/frameworks/trending", h.trendingFrameworks)
		r.Get("/frameworks/{id}", h.getFramework)
		r.Get("/categories", h.listCategories)
		r.Get("/categories/{id}", h.getCategory)
		r.Get("/resources", h.listResources)
		r.Get("/resources/{id}", h.getResource)
		r.Get("/resources/{id}/related", h.relatedResources)
		r.Route("/me", func(r chi.Router) {
			r.Use(h.requireSubject)
			r.Get("/settings", h.getSettings)
			r.Put("/settings", h.updateSettings)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:              cfg.GetAddr(),
			Handler:           otelhttp.NewHandler(r, "agentbuilders.http"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start runs the HTTP server, blocking until error or shutdown.
func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
