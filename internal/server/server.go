// Package server exposes an engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/ledgerq"
	"github.com/hupe1980/ledgerq/engine"
	"github.com/hupe1980/ledgerq/model"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// Engine is the subset of *engine.Engine served over HTTP.
type Engine interface {
	Register(ctx context.Context, id model.AccountID, metadata map[string]string) (model.Record, error)
	Unregister(ctx context.Context, id model.AccountID) error
	Get(ctx context.Context, id model.AccountID) (model.Record, error)
	Snapshot(ctx context.Context) (*engine.Snapshot, error)
	Checkpoint(ctx context.Context) (uint64, error)
	Ready() bool
	Stats() engine.Stats
}

// Server serves the account API.
type Server struct {
	engine         Engine
	logger         *ledgerq.Logger
	gatherer       prometheus.Gatherer
	requestTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *ledgerq.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer exposes g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithRequestTimeout bounds each request. 0 disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// New creates a Server for e.
func New(e Engine, opts ...Option) *Server {
	s := &Server{
		engine: e,
		logger: ledgerq.NoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Post("/checkpoint", s.handleCheckpoint)
		r.Post("/accounts", s.handleRegister)
		r.Post("/accounts/query", s.handleQuery)
		r.Get("/accounts/{id}", s.handleGet)
		r.Delete("/accounts/{id}", s.handleUnregister)
	})
	return r
}

// Run serves on srv until ctx is canceled, then shuts down gracefully
// within shutdownTimeout.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func decode(r *http.Request, v any) error {
	dec := gojson.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = gojson.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, ErrorResponse{Error: code, Message: err.Error()})
}
