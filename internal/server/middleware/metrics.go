package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/observability"
)

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// knownEndpoints maps raw paths to metric labels when no chi pattern is
// available. Anything else collapses to /unknown.
var knownEndpoints = map[string]string{
	"/":                 "/",
	"/health":           "/health/*",
	"/health/live":      "/health/*",
	"/health/ready":     "/health/*",
	"/health/startup":   "/health/*",
	"/version":          "/version",
	"/metrics":          "/metrics",
	"/api/check-bulk":   "/api/check-bulk",
	"/api/check-single": "/api/check-single",
	"/file_upload":      "/file_upload",
}

// getEndpointPattern returns a low-cardinality label for r.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if label, ok := knownEndpoints[r.URL.Path]; ok {
		return label
	}
	return "/unknown"
}

type requestRecord struct {
	method       string
	path         string
	endpoint     string
	status       int
	duration     time.Duration
	requestSize  int64
	responseSize int64
	requestID    string
}

func (rec requestRecord) emit() {
	sys := observability.TelemetrySystem
	status := strconv.Itoa(rec.status)
	labels := map[string]string{"method": rec.method, "endpoint": rec.endpoint, "status": status}
	sizeLabels := map[string]string{"method": rec.method, "endpoint": rec.endpoint}

	_ = sys.Counter("http_requests_total", 1, labels)
	_ = sys.Histogram("http_request_duration_ms", rec.duration, labels)
	_ = sys.Gauge("http_request_size_bytes", float64(rec.requestSize), sizeLabels)
	_ = sys.Gauge("http_response_size_bytes", float64(rec.responseSize), sizeLabels)

	if rec.status >= http.StatusBadRequest {
		errorType := "client_error"
		if rec.status >= http.StatusInternalServerError {
			errorType = "server_error"
		}
		_ = sys.Counter("http_errors_total", 1, map[string]string{
			"method":     rec.method,
			"endpoint":   rec.endpoint,
			"status":     status,
			"error_type": errorType,
		})
	}
}

func (rec requestRecord) log() {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("method", rec.method),
		zap.String("path", rec.path),
		zap.String("endpoint", rec.endpoint),
		zap.Int("status", rec.status),
		zap.Duration("duration", rec.duration),
		zap.Int64("request_size", rec.requestSize),
		zap.Int64("response_size", rec.responseSize),
		zap.String("requestID", rec.requestID),
	}
	// Orchestrators poll the health probes constantly.
	if rec.endpoint == "/health/*" {
		logger.Debug("HTTP request completed", fields...)
		return
	}
	logger.Info("HTTP request completed", fields...)
}

// RequestMetrics emits request counters, latency and sizes, and logs each
// request with its request ID. It is a no-op when telemetry is off.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		var requestSize int64
		if size, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64); err == nil {
			requestSize = size
		}

		rec := requestRecord{
			method:       r.Method,
			path:         r.URL.Path,
			endpoint:     getEndpointPattern(r),
			status:       recorder.status,
			duration:     time.Since(start),
			requestSize:  requestSize,
			responseSize: recorder.bytes,
			requestID:    GetRequestID(r.Context()),
		}
		rec.emit()
		rec.log()
	})
}
