package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"promptlens-dev/promptlens/pkg/config"
	"promptlens-dev/promptlens/pkg/proxy/middleware"
)

// Options configures a Server.
type Options struct {
	// Server holds the listen address and HTTP limits.
	Server config.ServerConfig

	// Metrics holds the admin paths. Admin endpoints are served by PromptLens
	// and never forwarded.
	Metrics config.MetricsConfig

	// Proxy handles every request that is not an admin endpoint. Required.
	Proxy http.Handler

	// Health serves the health path when set.
	Health http.Handler

	// MetricsHandler serves the metrics path when metrics are enabled.
	MetricsHandler http.Handler

	// Logger receives diagnostics (default: slog.Default()).
	Logger *slog.Logger
}

// Server is the PromptLens HTTP listener.
type Server struct {
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	mu         sync.RWMutex
	isRunning  bool
}

// New creates a server. It does not listen until Start or Serve.
func New(opts Options) (*Server, error) {
	if opts.Proxy == nil {
		return nil, errors.New("server: proxy handler is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "server")
	}
	return &Server{opts: opts, logger: opts.Logger}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Server.Host, strconv.Itoa(s.opts.Server.Port))
}

// ListenAddr returns the bound address once the server listens, or "".
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.Server.ReadHeaderTimeout,
		IdleTimeout:       s.opts.Server.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests,
// streams included, up to server.shutdown_timeout. Connections still open
// after that are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning || s.httpServer == nil {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	srv := s.httpServer
	s.mu.Unlock()

	timeout := s.opts.Server.ShutdownTimeout
	s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

	shutdownCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown incomplete, closing connections", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			return fmt.Errorf("server close error: %w", closeErr)
		}
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("proxy server stopped")
	return nil
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware(s.logger))

	if s.opts.Health != nil && s.opts.Metrics.HealthPath != "" {
		r.Handle(s.opts.Metrics.HealthPath, s.opts.Health)
	}
	if s.opts.Metrics.Enabled && s.opts.MetricsHandler != nil && s.opts.Metrics.Path != "" {
		r.Handle(s.opts.Metrics.Path, s.opts.MetricsHandler)
	}

	// Everything else, any method, goes upstream.
	r.Handle("/*", s.opts.Proxy)
	r.NotFound(s.opts.Proxy.ServeHTTP)
	r.MethodNotAllowed(s.opts.Proxy.ServeHTTP)

	return r
}
