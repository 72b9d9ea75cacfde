package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/core"
)

// Strategy selects how a domain list is checked.
type Strategy string

const (
	// StrategyServerDelegated sends the whole list to the status service.
	StrategyServerDelegated Strategy = "server"
	// StrategyClientPaced probes domains locally in paced batches.
	StrategyClientPaced Strategy = StrategyPaced
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case "", StrategyServerDelegated, "bulk":
		return StrategyServerDelegated, nil
	case StrategyClientPaced, "client":
		return StrategyClientPaced, nil
	default:
		return "", fmt.Errorf("unknown check strategy %q (expected server or paced)", value)
	}
}

// BulkChecker checks a whole domain list in one all-or-nothing call.
type BulkChecker interface {
	CheckBulk(ctx context.Context, domains []core.Domain) (*core.BatchReport, error)
}

// Orchestrator runs a check pass with the configured strategy. Both
// strategies share the normalizer, result shape and summary derivation.
type Orchestrator struct {
	Strategy Strategy
	Bulk     BulkChecker
	Paced    *PacedRunner
	Logger   *logging.Logger
	Clock    func() time.Time
}

// Run checks domains and returns a report with results in input order.
func (o *Orchestrator) Run(ctx context.Context, domains []core.Domain) (*core.BatchReport, error) {
	if o == nil {
		return nil, errors.New("orchestrator is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return nil, errors.New("no domains to check")
	}

	started := o.now()
	switch o.strategy() {
	case StrategyServerDelegated:
		if o.Bulk == nil {
			return nil, errors.New("server-delegated strategy requires a status service")
		}
		report, err := o.Bulk.CheckBulk(ctx, domains)
		if err != nil {
			o.logFailure("Bulk check failed", len(domains), err)
			return nil, err
		}
		report.Strategy = string(StrategyServerDelegated)
		if report.StartedAt.IsZero() {
			report.StartedAt = started
		}
		if report.CompletedAt.IsZero() {
			report.CompletedAt = o.now()
		}
		o.logDone(report)
		return report, nil

	case StrategyClientPaced:
		if o.Paced == nil {
			return nil, errors.New("client-paced strategy requires a prober")
		}
		results, err := o.Paced.Run(ctx, domains)
		if err != nil {
			o.logFailure("Paced check interrupted", len(domains), err)
			return nil, err
		}
		completed := o.now()
		report := &core.BatchReport{
			Results:     results,
			Summary:     core.Summarize(results, completed),
			Strategy:    string(StrategyClientPaced),
			StartedAt:   started,
			CompletedAt: completed,
		}
		o.logDone(report)
		return report, nil
	}

	return nil, fmt.Errorf("unknown check strategy %q", o.Strategy)
}

// Retry re-checks one domain. It always goes through the per-domain prober
// and fails soft, so the caller always gets a result to swap in.
func (o *Orchestrator) Retry(ctx context.Context, domain core.Domain) (*core.CheckResult, error) {
	if o == nil || o.Paced == nil || o.Paced.Prober == nil {
		return nil, errors.New("retry requires a per-domain prober")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.Paced.ProbeOne(ctx, domain), nil
}

func (o *Orchestrator) strategy() Strategy {
	if o.Strategy == "" {
		return StrategyServerDelegated
	}
	return o.Strategy
}

func (o *Orchestrator) logDone(report *core.BatchReport) {
	if o.Logger == nil || report == nil {
		return
	}
	o.Logger.Info("Check pass complete",
		zap.String("strategy", report.Strategy),
		zap.Int("domains", len(report.Results)),
		zap.Int("active", report.Summary.Active()),
		zap.Int("errors", report.Summary.Errors()),
		zap.Duration("duration", report.Duration()),
	)
}

func (o *Orchestrator) logFailure(msg string, domains int, err error) {
	if o.Logger == nil {
		return
	}
	o.Logger.Warn(msg, zap.Int("domains", domains), zap.Error(err))
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
