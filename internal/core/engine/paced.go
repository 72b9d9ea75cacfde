package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/core"
)

const (
	// DefaultBatchSize is the number of domains probed concurrently.
	DefaultBatchSize = 5
	// DefaultPacing is the wait between consecutive batches.
	DefaultPacing = time.Second

	// StrategyPaced names the client-paced strategy in reports.
	StrategyPaced = "paced"
)

// Prober checks a single domain.
type Prober interface {
	Probe(ctx context.Context, domain core.Domain) (*core.CheckResult, error)
	Name() string
}

// BatchProgress is reported after each batch completes.
type BatchProgress struct {
	Batch     int
	Batches   int
	Completed int
	Total     int
}

// PacedRunner probes domains in fixed-size batches. Probes within a batch run
// concurrently; every batch finishes before the pacing wait and the next
// batch. Cancellation is observed at batch boundaries only.
type PacedRunner struct {
	Prober    Prober
	BatchSize int
	Pacing    time.Duration
	Logger    *logging.Logger
	Clock     func() time.Time

	// Sleep waits between batches. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnBatch is called after each batch, from the calling goroutine.
	OnBatch func(BatchProgress)
	// OnResult is called once per probed domain, possibly concurrently.
	OnResult func(*core.CheckResult)
}

// Run probes every domain and returns results in input order. Individual
// probe failures become synthetic Connection Error results. If ctx is
// cancelled the results gathered so far are returned with ctx's error.
func (r *PacedRunner) Run(ctx context.Context, domains []core.Domain) ([]*core.CheckResult, error) {
	if r == nil || r.Prober == nil {
		return nil, errors.New("paced runner has no prober")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	size := r.batchSize()
	batches := BatchCount(len(domains), size)
	results := make([]*core.CheckResult, len(domains))

	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return compact(results), err
		}
		if b > 0 && r.Pacing > 0 {
			if err := r.sleep(ctx, r.Pacing); err != nil {
				return compact(results), err
			}
		}

		start := b * size
		end := start + size
		if end > len(domains) {
			end = len(domains)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = r.ProbeOne(ctx, domains[idx])
			}(i)
		}
		wg.Wait()

		if r.Logger != nil {
			r.Logger.Debug("Batch complete",
				zap.Int("batch", b+1),
				zap.Int("batches", batches),
				zap.Int("domains", end-start),
			)
		}
		if r.OnBatch != nil {
			r.OnBatch(BatchProgress{Batch: b + 1, Batches: batches, Completed: end, Total: len(domains)})
		}
	}

	return results, nil
}

// ProbeOne probes a single domain and never fails; errors become a
// synthetic Connection Error result.
func (r *PacedRunner) ProbeOne(ctx context.Context, domain core.Domain) *core.CheckResult {
	result, err := r.Prober.Probe(ctx, domain)
	if err != nil || result == nil {
		if err == nil {
			err = core.ErrBadResponse
		}
		if r.Logger != nil {
			r.Logger.Debug("Probe failed", zap.String("domain", string(domain)), zap.Error(err))
		}
		result = core.FailedResult(domain, core.FailureMessage(err), r.now())
	}
	if result.Domain == "" {
		result.Domain = domain
	}
	if r.OnResult != nil {
		r.OnResult(result)
	}
	return result
}

// BatchCount returns how many batches n domains split into.
func BatchCount(n, size int) int {
	if n <= 0 {
		return 0
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	return (n + size - 1) / size
}

func (r *PacedRunner) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return DefaultBatchSize
}

func (r *PacedRunner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *PacedRunner) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func compact(results []*core.CheckResult) []*core.CheckResult {
	out := make([]*core.CheckResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
