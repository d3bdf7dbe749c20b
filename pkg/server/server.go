// Package server provides the gateway's operations listener: health and
// readiness probes, Prometheus metrics and the capability cache admin
// endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/capability"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/telemetry/health"
	"mercator-hq/conduit/pkg/telemetry/tracing"
)

// Capabilities is the capability cache the admin endpoints operate on.
// *capability.Detector implements it.
type Capabilities interface {
	Snapshot() []capability.Capability
	Refresh(ctx context.Context, model string) (*capability.Capability, error)
	ClearCache()
}

// Build identifies the running binary on /version.
type Build struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the operations HTTP listener.
type Server struct {
	config       config.ServerConfig
	metricsPath  string
	metrics      http.Handler
	checker      *health.Checker
	capabilities Capabilities
	build        Build

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         string
	logger       *slog.Logger
}

// Options are the components mounted on the listener. Nil fields disable
// the matching endpoints.
type Options struct {
	// Metrics serves MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	Checker      *health.Checker
	Capabilities Capabilities
	Build        Build
}

// New creates an operations server.
func New(cfg config.ServerConfig, opts Options) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = config.DefaultServerShutdownTimeout
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = config.DefaultMetricsPath
	}
	if opts.Checker == nil {
		opts.Checker = health.New(0)
	}
	return &Server{
		config:       cfg,
		metricsPath:  opts.MetricsPath,
		metrics:      opts.Metrics,
		checker:      opts.Checker,
		capabilities: opts.Capabilities,
		build:        opts.Build,
		logger:       slog.Default().With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.addr = ln.Addr().String()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("operations listener started", "address", s.addr)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.mu.Unlock()
		if !running {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("operations listener stopped")
	})

	return shutdownErr
}

// IsRunning returns true while the listener is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	health.Register(mux, s.checker, s.build.Version, s.build.Commit, s.build.BuildTime)

	if s.metrics != nil {
		mux.Handle("GET "+s.metricsPath, s.metrics)
	}
	if s.capabilities != nil {
		mux.HandleFunc("GET /capabilities", s.listCapabilities)
		mux.HandleFunc("POST /capabilities/{model}/refresh", s.refreshCapability)
		mux.HandleFunc("DELETE /capabilities", s.clearCapabilities)
	}

	var handler http.Handler = mux
	handler = tracing.HTTPMiddleware(handler)
	handler = recoverMiddleware(s.logger, handler)
	return handler
}

func (s *Server) listCapabilities(w http.ResponseWriter, r *http.Request) {
	snapshot := s.capabilities.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": snapshot, "count": len(snapshot)})
}

func (s *Server) refreshCapability(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	c, err := s.capabilities.Refresh(r.Context(), model)
	if err != nil {
		status := http.StatusInternalServerError
		var notFound *providers.ModelNotFoundError
		switch {
		case errors.As(err, &notFound):
			status = http.StatusNotFound
		case providers.IsCancellation(err):
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Info("capability refreshed", "model", model,
		"backend_stream", c.BackendSupportsStream,
		"direct_stream", c.DirectSupportsStream,
	)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) clearCapabilities(w http.ResponseWriter, r *http.Request) {
	s.capabilities.ClearCache()
	s.logger.Info("capability cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// recoverMiddleware turns a handler panic into a 500.
func recoverMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
