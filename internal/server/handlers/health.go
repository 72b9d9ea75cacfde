package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/sitecheck/sitecheck/internal/errors"
)

// Check states reported per registered component.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// HealthResponse is the aggregate /health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// ProbeResponse is the body of the live, ready and startup probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is implemented by components the service depends on.
// *store.Store satisfies it.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

type registration struct {
	checker HealthChecker
	// optional components degrade the service instead of failing it; the
	// probe cache is one, checks still run without it.
	optional bool
}

// HealthManager runs registered component checks for the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]registration
	version  string
	Clock    func() time.Time
}

// NewHealthManager creates a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]registration),
		version:  version,
	}
}

// RegisterChecker registers a component whose failure makes the service unhealthy.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.register(name, checker, false)
}

// RegisterOptional registers a component whose failure only degrades the service.
func (hm *HealthManager) RegisterOptional(name string, checker HealthChecker) {
	hm.register(name, checker, true)
}

func (hm *HealthManager) register(name string, checker HealthChecker, optional bool) {
	if checker == nil {
		return
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = registration{checker: checker, optional: optional}
}

type checkOutcome struct {
	name   string
	status string
	err    error
}

// runChecks runs every registered check concurrently. A check still running
// when ctx ends is reported as a timeout.
func (hm *HealthManager) runChecks(ctx context.Context) (map[string]string, map[string]string) {
	hm.mu.RLock()
	regs := make(map[string]registration, len(hm.checkers))
	for name, reg := range hm.checkers {
		regs[name] = reg
	}
	hm.mu.RUnlock()

	outcomes := make(chan checkOutcome, len(regs))
	var wg sync.WaitGroup
	for name, reg := range regs {
		wg.Add(1)
		go func(name string, reg registration) {
			defer wg.Done()
			err := reg.checker.CheckHealth(ctx)
			switch {
			case err == nil:
				outcomes <- checkOutcome{name: name, status: StatusHealthy}
			case reg.optional:
				outcomes <- checkOutcome{name: name, status: StatusDegraded, err: err}
			default:
				outcomes <- checkOutcome{name: name, status: StatusUnhealthy, err: err}
			}
		}(name, reg)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	checks := make(map[string]string, len(regs))
	failures := make(map[string]string)
	collect := func(o checkOutcome) {
		checks[o.name] = o.status
		if o.err != nil {
			failures[o.name] = o.err.Error()
		}
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
drain:
	for {
		select {
		case o := <-outcomes:
			collect(o)
		default:
			break drain
		}
	}
	for name := range regs {
		if _, ok := checks[name]; !ok {
			checks[name] = StatusTimeout
		}
	}
	return checks, failures
}

// overallStatus folds component states: any unhealthy wins, then any
// degraded or timed-out check.
func overallStatus(checks map[string]string) string {
	status := StatusHealthy
	for _, s := range checks {
		switch s {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

func (hm *HealthManager) now() time.Time {
	if hm.Clock != nil {
		return hm.Clock().UTC()
	}
	return time.Now().UTC()
}

type probeSpec struct {
	name    string
	timeout time.Duration
	failure string
}

var (
	probeAggregate = probeSpec{name: "aggregate", timeout: 5 * time.Second, failure: "aggregate health check failed"}
	probeLive      = probeSpec{name: "live", timeout: 2 * time.Second, failure: "liveness probe failed"}
	probeReady     = probeSpec{name: "ready", timeout: 5 * time.Second, failure: "readiness probe failed"}
	probeStartup   = probeSpec{name: "startup", timeout: 3 * time.Second, failure: "startup probe failed"}
)

func (hm *HealthManager) serveProbe(w http.ResponseWriter, r *http.Request, spec probeSpec) {
	ctx, cancel := context.WithTimeout(r.Context(), spec.timeout)
	defer cancel()

	checks, failures := hm.runChecks(ctx)
	status := overallStatus(checks)
	if status == StatusUnhealthy {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", spec.failure)
		apperrors.RespondWithError(w, r, enrichHealthEnvelope(envelope, spec.name, status, checks))
		return
	}

	if spec == probeAggregate {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    status,
			Version:   hm.version,
			Timestamp: hm.now().Format(time.RFC3339),
			Checks:    checks,
			Failures:  failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: hm.now()})
}

// HealthHandler serves GET /health.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, probeAggregate)
}

// LivenessHandler serves GET /health/live.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, probeLive)
}

// ReadinessHandler serves GET /health/ready: whether checks can be accepted.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, probeReady)
}

// StartupHandler serves GET /health/startup.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, probeStartup)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	details := map[string]interface{}{"status": status, "probe": probe}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != StatusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	contextData := map[string]interface{}{"status": status, "probe": probe}
	if len(failing) > 0 {
		contextData["unhealthy_checks"] = failing
	}
	envelope, _ = envelope.WithContext(contextData)
	return envelope
}

var globalHealthManager *HealthManager

// InitHealthManager replaces the process-wide manager used by the routes.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide manager, nil before InitHealthManager.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func globalProbe(spec probeSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hm := globalHealthManager; hm != nil {
			hm.serveProbe(w, r, spec)
			return
		}
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health manager not initialized")
		apperrors.RespondWithError(w, r, enrichHealthEnvelope(envelope, spec.name, "unknown", nil))
	}
}

// Route handlers backed by the process-wide manager.
var (
	HealthHandler    = globalProbe(probeAggregate)
	LivenessHandler  = globalProbe(probeLive)
	ReadinessHandler = globalProbe(probeReady)
	StartupHandler   = globalProbe(probeStartup)
)
