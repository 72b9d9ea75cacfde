package metrics

import (
	"strconv"
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/observability"
)

// Application-level metrics following Prometheus conventions
const (
	// Check metrics
	ChecksTotal        = "sitecheck_checks_total"
	CheckDuration      = "sitecheck_check_duration_ms"
	BatchesTotal       = "sitecheck_batches_total"
	BatchDomains       = "sitecheck_batch_domains"
	RateLimitedTotal   = "sitecheck_rate_limited_total"
	IngestDomainsTotal = "sitecheck_ingest_domains_total"
	UploadsTotal       = "sitecheck_uploads_total"

	// Error metrics, emitted by the HTTP error responder and panic recovery
	ErrorsTotal      = "errors_total"
	ErrorsByEndpoint = "errors_by_endpoint"
	PanicsTotal      = "panics_total"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

func counter(name string, value float64, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, value, labels)
	}
}

// RecordCheck records one finished probe by category. A nil duration is not
// observed.
func RecordCheck(prober string, category core.Category, responseTime *float64) {
	if observability.TelemetrySystem == nil {
		return
	}
	if category == "" {
		category = core.CategoryUnknown
	}

	counter(ChecksTotal, 1, map[string]string{"prober": prober, "category": string(category)})

	if responseTime != nil {
		_ = observability.TelemetrySystem.Histogram(
			CheckDuration,
			time.Duration(*responseTime*float64(time.Second)),
			map[string]string{"prober": prober},
		)
	}
}

// RecordBatch records a finished check pass.
func RecordBatch(strategy string, domains int, success bool) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	counter(BatchesTotal, 1, map[string]string{"strategy": strategy, "status": status})
	_ = observability.TelemetrySystem.Gauge(
		BatchDomains,
		float64(domains),
		map[string]string{"strategy": strategy},
	)
}

// RecordRateLimited records an inbound request refused by the client limiter.
func RecordRateLimited(endpoint string) {
	counter(RateLimitedTotal, 1, map[string]string{"endpoint": endpoint})
}

// RecordIngest records domains accepted from an uploaded or local file.
func RecordIngest(format string, accepted int) {
	counter(IngestDomainsTotal, float64(accepted), map[string]string{"format": format})
}

// RecordUpload records a file upload by HTTP status.
func RecordUpload(httpStatus int) {
	counter(UploadsTotal, 1, map[string]string{"status": strconv.Itoa(httpStatus)})
}

// RecordError counts an API error response. The per-endpoint series is
// skipped when endpoint is empty.
func RecordError(errorCode string, httpStatus int, endpoint string) {
	counter(ErrorsTotal, 1, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
	if endpoint != "" {
		counter(ErrorsByEndpoint, 1, map[string]string{"endpoint": endpoint, "error_code": errorCode})
	}
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	counter(PanicsTotal, 1, nil)
}

// SetServerStartTime records the server start time as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
