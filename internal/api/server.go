// SPDX-License-Identifier: MIT

// Package api provides the HTTP surface of the service: refresh control,
// reaction and blueprint lookups, substructure search and health.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metatree-dev/metatree/internal/cache"
	"github.com/metatree-dev/metatree/internal/jobs"
	xglog "github.com/metatree-dev/metatree/internal/log"
	"github.com/metatree-dev/metatree/internal/store"
)

// Server wires the pipeline runner and the stores into HTTP handlers.
type Server struct {
	runner     *jobs.Runner
	catalog    *store.Catalog
	blueprints *store.BlueprintStore
	results    cache.Cache
	cacheTTL   time.Duration

	refreshing atomic.Bool // serialize refresh runs
	startTime  time.Time

	// refreshFn allows tests to stub the pipeline run
	refreshFn func(context.Context) (*jobs.Status, error)
}

// Options carries the server dependencies.
type Options struct {
	Runner     *jobs.Runner
	Catalog    *store.Catalog
	Blueprints *store.BlueprintStore
	Results    cache.Cache
	CacheTTL   time.Duration
}

// New builds the server. A nil result cache disables search caching.
func New(opts Options) *Server {
	results := opts.Results
	if results == nil {
		results = cache.NewNoOpCache()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	s := &Server{
		runner:     opts.Runner,
		catalog:    opts.Catalog,
		blueprints: opts.Blueprints,
		results:    results,
		cacheTTL:   ttl,
		startTime:  time.Now(),
	}
	s.refreshFn = s.runner.Refresh
	return s
}

// Router assembles the middleware stack and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(refreshRateLimit()).Post("/refresh", s.handleRefresh)
		r.Get("/status", s.handleStatus)
		r.Get("/reactions", s.handleListReactions)
		r.Get("/reactions/{uid}", s.handleGetReaction)
		r.Get("/blueprints/{uid}", s.handleGetBlueprint)
		r.Post("/blueprints/{uid}/apply", s.handleApplyBlueprint)
		r.With(searchRateLimit()).Get("/search", s.handleSearch)
		r.Get("/mapping/export", s.handleMappingExport)
		r.Post("/mapping/apply", s.handleMappingApply)
	})

	return r
}

// ListenAndServe runs the HTTP server until the context is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	logger := xglog.WithComponent("api")

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("event", "server.start").
			Str("addr", addr).
			Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info().Str("event", "server.shutdown").Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}
