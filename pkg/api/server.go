// Package api serves the marine record services over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router builds the HTTP handler. gatherer backs /metrics; nil uses the default gatherer.
func (s *Server) Router(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	m := s.metrics

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(m.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))
		}
		r.Use(principalMiddleware)

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		r.Route("/taxonomies", func(r chi.Router) {
			r.Post("/", m.InstrumentHandler("POST", "/api/v1/taxonomies", s.handleCreateTaxonomy))
			r.Get("/", m.InstrumentHandler("GET", "/api/v1/taxonomies", s.handleListTaxonomies))
			r.Get("/{id}", m.InstrumentHandler("GET", "/api/v1/taxonomies/{id}", s.handleGetTaxonomy))
			r.Put("/{id}", m.InstrumentHandler("PUT", "/api/v1/taxonomies/{id}", s.handleUpdateTaxonomy))
			r.Delete("/{id}", m.InstrumentHandler("DELETE", "/api/v1/taxonomies/{id}", s.handleDeleteTaxonomy))
		})

		r.Route("/species", func(r chi.Router) {
			r.Post("/", m.InstrumentHandler("POST", "/api/v1/species", s.handleCreateSpecies))
			r.Get("/", m.InstrumentHandler("GET", "/api/v1/species", s.handleListSpecies))
			r.Get("/status/{status}", m.InstrumentHandler("GET", "/api/v1/species/status/{status}", s.handleFilterSpecies))
			r.Get("/{id}", m.InstrumentHandler("GET", "/api/v1/species/{id}", s.handleGetSpecies))
			r.Put("/{id}", m.InstrumentHandler("PUT", "/api/v1/species/{id}", s.handleUpdateSpecies))
			r.Delete("/{id}", m.InstrumentHandler("DELETE", "/api/v1/species/{id}", s.handleDeleteSpecies))
		})

		r.Get("/stats", m.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, gatherer prometheus.Gatherer) error {
	addr := net.JoinHostPort(s.config.Bind, strconv.Itoa(s.config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	updaterCtx, stopUpdater := context.WithCancel(ctx)
	updaterDone := make(chan struct{})
	go func() {
		defer close(updaterDone)
		s.startMetricsUpdater(updaterCtx)
	}()
	defer func() {
		stopUpdater()
		<-updaterDone
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting marinedb API server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

// startMetricsUpdater refreshes region gauges until ctx is done.
func (s *Server) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(s.config.StatsInterval)
	defer ticker.Stop()

	s.refreshStats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshStats()
		}
	}
}
