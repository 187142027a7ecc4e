// Package server exposes the pipeline over HTTP.
//
//	GET  /healthz
//	GET  /api/v1/members/{id}/tree?format=json|text|dot|svg|pdf|png&refresh=1
//	POST /api/v1/tree/normalize?format=...
//	GET  /api/v1/snapshots?member={id}&limit=20
//	GET  /api/v1/snapshots/{snapshotID}
//	GET  /metrics
//
// Failures are answered as {"code": "...", "error": "..."} with the status
// from pkg/errors.HTTPStatus.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/finobytes/maxreward/internal/config"
	"github.com/finobytes/maxreward/pkg/metrics"
	"github.com/finobytes/maxreward/pkg/pipeline"
)

// Server routes requests to a pipeline runner.
type Server struct {
	runner  *pipeline.Runner
	metrics *metrics.Metrics
	logger  *log.Logger
	router  chi.Router
}

// New builds the router. A nil m leaves /metrics unmounted; a nil logger
// discards access logs.
func New(runner *pipeline.Runner, m *metrics.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{runner: runner, metrics: m, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	if s.metrics != nil {
		r.Use(s.metrics.InstrumentHandler)
	}
	r.Use(s.recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/members/{id}/tree", s.handleMemberTree)
		r.Post("/tree/normalize", s.handleNormalize)
		r.Get("/snapshots", s.handleListSnapshots)
		r.Get("/snapshots/{snapshotID}", s.handleGetSnapshot)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down within
// cfg.ShutdownTimeout. ready, when non-nil, receives the bound address.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig, ready func(addr string)) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	if ready != nil {
		ready(ln.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		s.logger.Info("shutting down", "timeout", timeout)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
