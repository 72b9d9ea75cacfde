package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/config"
	apperrors "github.com/sitecheck/sitecheck/internal/errors"
	"github.com/sitecheck/sitecheck/internal/observability"
)

const prometheusContentType = "text/plain; version=0.0.4"

var metricsProxyClient = &http.Client{
	Timeout: 5 * time.Second,
}

// hopByHop headers are not copied from the exporter response.
var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// exporterURL points at the loopback Prometheus exporter.
func exporterURL() string {
	port := observability.GetMetricsPort()
	if port == 0 {
		port = 9090
		if cfg := config.GetConfig(); cfg != nil && cfg.Metrics.Port > 0 {
			port = cfg.Metrics.Port
		}
	}
	return fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
}

func metricsFailure(code, message, metricsURL string, err error) *errors.ErrorEnvelope {
	envelope, _ := errors.NewErrorEnvelope(code, message).WithContext(map[string]interface{}{
		"metrics_url":    metricsURL,
		"original_error": err.Error(),
	})
	return envelope
}

// MetricsHandler serves GET /metrics by relaying the exporter's output, so
// scrapers need only the API port.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Metrics exporter not initialized"))
		return
	}

	metricsURL := exporterURL()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, metricsURL, nil)
	if err != nil {
		apperrors.RespondWithError(w, r, metricsFailure("INTERNAL_ERROR", "Unable to construct metrics request", metricsURL, err))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		apperrors.RespondWithError(w, r, metricsFailure("EXTERNAL_SERVICE_ERROR", "Prometheus exporter unavailable", metricsURL, err))
		return
	}
	defer resp.Body.Close() // nolint:errcheck // read-only proxy body

	for key, values := range resp.Header {
		if hopByHop[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if resp.Header.Get("Content-Type") == "" {
		w.Header().Set("Content-Type", prometheusContentType)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to write metrics response", zap.Error(err))
	}
}
