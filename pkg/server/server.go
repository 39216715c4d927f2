// Package server exposes the classification dashboard over HTTP. It serves
// the aggregated payload on /api/data, liveness on /healthz and Prometheus
// exposition on /metrics. Log files are re-read on every payload request so
// the dashboard always reflects the current capture set.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/exploopio/waflens/pkg/core"
	"github.com/exploopio/waflens/pkg/health"
	"github.com/exploopio/waflens/pkg/metrics"
	"github.com/exploopio/waflens/pkg/report"
	"github.com/exploopio/waflens/pkg/traffic"
)

// =============================================================================
// Configuration
// =============================================================================

// Config configures the dashboard server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// LogSpec is the file, glob or directory the payload is built from.
	LogSpec string

	Loader  *traffic.Loader
	Builder *report.Builder

	Logger    core.Logger
	Collector metrics.Collector
	Health    *health.Handler

	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration
}

// =============================================================================
// Server
// =============================================================================

// Server is the dashboard HTTP server.
type Server struct {
	cfg       Config
	log       core.Logger
	collector metrics.Collector
	srv       *http.Server
}

// New builds a Server from cfg. Loader and Builder must be set; the rest
// falls back to no-op implementations.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NopLogger{}
	}
	if cfg.Collector == nil {
		cfg.Collector = &metrics.NopCollector{}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:       cfg,
		log:       cfg.Logger,
		collector: cfg.Collector,
	}

	mux := http.NewServeMux()
	mux.Handle("/api/data", s.instrument("/api/data", http.HandlerFunc(s.handleData)))
	if cfg.Health != nil {
		mux.Handle("/healthz", s.instrument("/healthz", cfg.Health.HTTPHandler()))
	}
	mux.Handle("/metrics", cfg.Collector.Handler())

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving and blocks until ctx is cancelled or the listener
// fails. Shutdown is graceful within ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info("shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := s.cfg.Loader.LoadEntries(s.cfg.LogSpec)
	if err != nil {
		s.log.Error("load entries: %v", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := s.cfg.Builder.Build(entries)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode payload: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// =============================================================================
// Instrumentation
// =============================================================================

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		s.collector.CounterInc(metrics.HTTPRequestsTotal.Name,
			"path", path, "status", strconv.Itoa(rec.status))
		s.collector.HistogramObserve(metrics.HTTPRequestDuration.Name,
			time.Since(start).Seconds(), "path", path)
	})
}
