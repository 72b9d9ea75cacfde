package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecheck/sitecheck/internal/metrics"
)

func TestClientRateLimiter_AllowsBurstThenRefuses(t *testing.T) {
	limiter := NewClientRateLimiter(1, 2)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	// Buckets are per client.
	assert.True(t, limiter.Allow("10.0.0.2"))

	fixed = fixed.Add(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestClientRateLimiter_Middleware(t *testing.T) {
	collector := setupTelemetry(t)

	limiter := NewClientRateLimiter(1, 1)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	handler := RequestID(limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/check-bulk", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send().Code)

	rec := send()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Equal(t, "rate limited", body.Message)
	assert.NotEmpty(t, body.Error.RequestID)

	assert.Equal(t, 1, collector.CountMetricsByName(metrics.RateLimitedTotal))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:443"
	assert.Equal(t, "198.51.100.4", clientKey(req))

	req.RemoteAddr = "198.51.100.4"
	assert.Equal(t, "198.51.100.4", clientKey(req))
}
