package metrics

import (
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func TestRecordCheck(t *testing.T) {
	collector := setupTelemetry(t)

	RecordCheck("direct", core.CategoryActive, core.Seconds(0.25))
	RecordCheck("relay", core.CategoryConnectionError, nil)

	assert.Equal(t, 2, collector.CountMetricsByName(ChecksTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(CheckDuration))
}

func TestRecordBatchIngestUpload(t *testing.T) {
	collector := setupTelemetry(t)

	RecordBatch("paced", 12, true)
	RecordIngest("csv", 4)
	RecordUpload(200)
	RecordRateLimited("/api/check-bulk")

	assert.Equal(t, 1, collector.CountMetricsByName(BatchesTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(BatchDomains))
	assert.Equal(t, 1, collector.CountMetricsByName(IngestDomainsTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(UploadsTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(RateLimitedTotal))
}

func TestRecordersWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	RecordCheck("direct", "", core.Seconds(1))
	RecordBatch("server", 1, false)
	RecordError("TIMEOUT", 504, "/api/check-single")
	RecordPanic()
}

func TestRecordError(t *testing.T) {
	collector := setupTelemetry(t)

	RecordError("VALIDATION_FAILED", 400, "/api/check-bulk")
	RecordError("INTERNAL_ERROR", 500, "")
	RecordPanic()

	assert.Equal(t, 2, collector.CountMetricsByName(ErrorsTotal))
	assert.Equal(t, 1, collector.CountMetricsByName(ErrorsByEndpoint))
	assert.Equal(t, 1, collector.CountMetricsByName(PanicsTotal))
}
