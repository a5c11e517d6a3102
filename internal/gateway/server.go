// Package gateway exposes a runtime over HTTP.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/courier/internal/engine"
	"github.com/roach88/courier/internal/observability"
	"github.com/roach88/courier/internal/store"
)

// TraceReader reads journaled traces. *store.Store implements it.
type TraceReader interface {
	ReadTrace(ctx context.Context, trace string) ([]store.TraceEntry, error)
}

// Server routes HTTP requests to a runtime.
type Server struct {
	rt       *engine.Runtime
	journal  TraceReader
	recorder *observability.Recorder
	logger   *slog.Logger
	router   *gin.Engine
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithJournal serves traces the runtime no longer holds from the journal.
func WithJournal(j TraceReader) Option {
	return func(s *Server) { s.journal = j }
}

// WithRecorder sets the metrics recorder. Defaults to observability.Default.
func WithRecorder(r *observability.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithLogger sets the request logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the router for rt.
func New(rt *engine.Runtime, opts ...Option) *Server {
	s := &Server{rt: rt, started: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	if s.recorder == nil {
		s.recorder = observability.Default()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.logger))
	r.Use(observability.RequestMetrics(s.recorder))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.router = r

	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("gateway shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
