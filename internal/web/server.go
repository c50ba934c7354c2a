// Package web provides the HTTP surface over the dataset pipeline: the
// public read API consumed by the reporting frontend and the token-guarded
// admin refresh endpoints.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/portal-alcaldia/ruea-api/internal/config"
	"github.com/portal-alcaldia/ruea-api/internal/dataset"
	"github.com/portal-alcaldia/ruea-api/internal/metrics"
	"github.com/portal-alcaldia/ruea-api/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP server for the dataset API.
type Server struct {
	service *dataset.Service
	metrics *metrics.Metrics
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer wires routes and middleware around the pipeline service.
func NewServer(service *dataset.Service, m *metrics.Metrics, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		metrics: m,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(chimw.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/meta", s.handleMeta)
		r.Get("/indicadores", s.handleIndicadores)
		r.Get("/comercializacion", s.handleComercializacion)

		r.Get("/ruea", s.handleRegistry)
		r.Get("/ruea/facetas", s.handleFacets)
		r.Get("/ruea/stats", s.handleStats)
		r.Get("/ruea/summary", s.handleSummary)
		r.Get("/ruea/download.csv", s.handleExportCSV)
		r.Get("/ruea/download.xlsx", s.handleExportXLSX)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.BearerAuth(s.cfg.Security.AdminToken))
			r.Post("/refresh", s.handleRefresh)
			r.Post("/refresh-xlsx", s.handleRefreshWorkbook)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observe records a public query duration when metrics are wired.
func (s *Server) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveQuery(operation, start)
	}
}
