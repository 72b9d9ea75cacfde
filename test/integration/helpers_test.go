package integration

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/checker"
	"github.com/sitecheck/sitecheck/internal/core/engine"
	"github.com/sitecheck/sitecheck/internal/metrics"
	"github.com/sitecheck/sitecheck/internal/observability"
	"github.com/sitecheck/sitecheck/internal/server"
	"github.com/sitecheck/sitecheck/internal/server/handlers"
)

// blockedBind reports sandbox refusals to open loopback sockets, which skip
// rather than fail.
func blockedBind(err error) bool {
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil && blockedBind(err) {
		t.Skipf("loopback sockets unavailable: %v", err)
	}
	require.NoError(t, err)
	return l
}

func serve(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ts := &httptest.Server{Listener: listen(t), Config: &http.Server{Handler: h}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

// newSite starts a website answering every path with status and returns it
// as a host:port domain.
func newSite(t *testing.T, status int) string {
	t.Helper()
	site := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status >= 300 && status < 400 {
			w.Header().Set("Location", "/elsewhere")
		}
		w.WriteHeader(status)
	}))
	return strings.TrimPrefix(site.URL, "http://")
}

// deadSite returns a host:port nothing listens on.
func deadSite(t *testing.T) string {
	t.Helper()
	l := listen(t)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// startMetrics brings up a Prometheus exporter under the "test" namespace.
func startMetrics(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if blockedBind(err) {
			t.Skipf("metrics exporter cannot bind: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = observability.ShutdownMetrics() })
}

func initLogging() {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info", "STRUCTURED")
	handlers.InitHealthManager("test")
}

// checkRunner probes over plain HTTP the way the serve command wires it.
func checkRunner() *engine.PacedRunner {
	return &engine.PacedRunner{
		Prober:    &checker.DirectProber{Scheme: "http", Timeout: 2 * time.Second},
		BatchSize: 5,
		OnResult: func(r *core.CheckResult) {
			metrics.RecordCheck(checker.ProberDirect, r.Category, r.ResponseTimeSeconds)
		},
	}
}

// newAPI starts the full router with the check API mounted.
func newAPI(t *testing.T, opts ...server.Option) *httptest.Server {
	t.Helper()
	opts = append([]server.Option{server.WithCheckHandler(&handlers.CheckHandler{Checker: checkRunner()})}, opts...)
	return serve(t, server.New("127.0.0.1", 0, opts...).Handler())
}
