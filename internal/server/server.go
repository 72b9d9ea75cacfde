package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/config"
	"github.com/sitecheck/sitecheck/internal/observability"
	"github.com/sitecheck/sitecheck/internal/server/handlers"
	servermw "github.com/sitecheck/sitecheck/internal/server/middleware"
)

// Server serves the health, version, metrics and status-check endpoints.
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	timeouts config.ServerConfig
	checks   *handlers.CheckHandler
	limiter  *servermw.ClientRateLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithTimeouts applies the read, write and idle timeouts from cfg.
func WithTimeouts(cfg config.ServerConfig) Option {
	return func(s *Server) {
		s.timeouts = cfg
	}
}

// WithCheckHandler mounts the status-check API.
func WithCheckHandler(h *handlers.CheckHandler) Option {
	return func(s *Server) {
		s.checks = h
	}
}

// WithClientRateLimit throttles the status-check API per client address.
func WithClientRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = servermw.NewClientRateLimiter(rps, burst)
		}
	}
}

// New builds the router. Nothing listens until Start.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{router: chi.NewRouter(), host: host, port: port}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr(),
		Handler:           s.router,
		ReadTimeout:       durationOr(s.timeouts.ReadTimeout, 30*time.Second),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      durationOr(s.timeouts.WriteTimeout, 5*time.Minute),
		IdleTimeout:       durationOr(s.timeouts.IdleTimeout, 120*time.Second),
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("addr", s.server.Addr),
			zap.Bool("check_api", s.checks != nil),
			zap.Bool("client_rate_limit", s.limiter != nil))
	}
	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return err
}

// Shutdown drains in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the router, for tests and in-process use.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
