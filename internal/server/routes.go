package server

import (
	"context"
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/appid"
	apperrors "github.com/sitecheck/sitecheck/internal/errors"
	"github.com/sitecheck/sitecheck/internal/observability"
	"github.com/sitecheck/sitecheck/internal/server/handlers"
	servermw "github.com/sitecheck/sitecheck/internal/server/middleware"
)

// Admin signal endpoint throttle, per minute.
const (
	adminSignalRate  = 10
	adminSignalBurst = 5
)

func (s *Server) routes() {
	r := s.router

	// Request IDs first so metrics, logs and error bodies share them;
	// Recovery innermost so a panic still gets measured.
	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)
	r.Get("/metrics", MetricsHandler)

	if s.checks != nil {
		r.Group(func(api chi.Router) {
			if s.limiter != nil {
				api.Use(s.limiter.Middleware)
			}
			api.Post("/api/check-bulk", s.checks.CheckBulk)
			api.Post("/api/check-single", s.checks.CheckSingle)
			api.Post("/file_upload", s.checks.FileUpload)
		})
	}

	s.mountAdminSignal()
}

// mountAdminSignal exposes POST /admin/signal when <PREFIX>ADMIN_TOKEN is set.
func (s *Server) mountAdminSignal() {
	identity, _ := appid.Get(context.Background())
	tokenVar := appid.EnvPrefix(identity) + "ADMIN_TOKEN"
	token := os.Getenv(tokenVar)
	logger := observability.ServerLogger

	if token == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled", zap.String("env", tokenVar))
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: token,
		RateLimit: adminSignalRate,
		RateBurst: adminSignalBurst,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Warn("Admin signal endpoint enabled; keep this server off the public internet",
			zap.String("path", "/admin/signal"),
			zap.Int("rate_per_minute", adminSignalRate),
			zap.Int("burst", adminSignalBurst))
	}
}
