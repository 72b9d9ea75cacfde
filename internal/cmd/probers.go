package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/sitecheck/sitecheck/internal/config"
	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/checker"
	"github.com/sitecheck/sitecheck/internal/core/engine"
	"github.com/sitecheck/sitecheck/internal/core/store"
	"github.com/sitecheck/sitecheck/internal/metrics"
)

// outboundLimiter builds the per-endpoint limiter for direct and relayed
// probes. Windows persist in db when one is open.
func outboundLimiter(cfg *config.Config, db *store.Store) *engine.RateLimiter {
	limiter := &engine.RateLimiter{}
	if db != nil {
		limiter.Store = db
	}
	limiter.ApplyOverrides(cfg.RateLimits)
	limiter.ApplySafetyMargin(cfg.RateLimitMargin)
	return limiter
}

func serviceClient(cfg *config.Config) *checker.ServiceClient {
	return &checker.ServiceClient{
		BaseURL:       cfg.Service.BaseURL,
		Timeout:       cfg.Service.Timeout,
		SingleTimeout: cfg.Service.SingleTimeout,
		UserAgent:     userAgent(cfg),
	}
}

func directProber(cfg *config.Config, db *store.Store) *checker.DirectProber {
	p := &checker.DirectProber{
		Limiter: outboundLimiter(cfg, db),
		CachePolicy: checker.CachePolicy{
			ActiveTTL: cfg.Cache.ActiveTTL,
			ErrorTTL:  cfg.Cache.ErrorTTL,
			FailTTL:   cfg.Cache.FailTTL,
		},
		Timeout:   cfg.Checker.ProbeTimeout,
		UserAgent: userAgent(cfg),
	}
	if db != nil {
		p.Store = db
		p.UseCache = cfg.Cache.Enabled
	}
	return p
}

// buildProber selects the per-domain prober used by the paced strategy and
// by retries.
func buildProber(cfg *config.Config, db *store.Store) (engine.Prober, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Checker.Prober))
	switch kind {
	case "", checker.ProberService:
		return serviceClient(cfg), nil
	case checker.ProberDirect:
		return directProber(cfg, db), nil
	case checker.ProberRelay:
		return &checker.RelayProber{
			RelayURL:  cfg.Checker.RelayURL,
			Limiter:   outboundLimiter(cfg, db),
			Timeout:   cfg.Checker.ProbeTimeout,
			UserAgent: userAgent(cfg),
		}, nil
	default:
		return nil, fmt.Errorf("unknown prober %q (expected service, direct or relay)", cfg.Checker.Prober)
	}
}

// pacedRunner wraps prober in the batch engine and reports every result to
// the check metrics.
func pacedRunner(cfg *config.Config, prober engine.Prober, logger *logging.Logger) *engine.PacedRunner {
	name := prober.Name()
	return &engine.PacedRunner{
		Prober:    prober,
		BatchSize: cfg.Checker.BatchSize,
		Pacing:    cfg.Checker.Pacing,
		Logger:    logger,
		OnResult: func(r *core.CheckResult) {
			metrics.RecordCheck(name, r.Category, r.ResponseTimeSeconds)
		},
	}
}

// buildOrchestrator wires the configured strategy.
func buildOrchestrator(cfg *config.Config, db *store.Store, logger *logging.Logger) (*engine.Orchestrator, error) {
	strategy, err := engine.ParseStrategy(cfg.Checker.Strategy)
	if err != nil {
		return nil, err
	}
	prober, err := buildProber(cfg, db)
	if err != nil {
		return nil, err
	}

	return &engine.Orchestrator{
		Strategy: strategy,
		Bulk:     serviceClient(cfg),
		Paced:    pacedRunner(cfg, prober, logger),
		Logger:   logger,
	}, nil
}

func userAgent(cfg *config.Config) string {
	if ua := strings.TrimSpace(cfg.Checker.UserAgent); ua != "" {
		return ua
	}
	name := "sitecheck"
	if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
		name = identity.BinaryName
	}
	version := versionInfo.Version
	if version == "" {
		version = "dev"
	}
	return name + "/" + version
}
