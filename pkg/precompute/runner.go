// Package precompute loads every chain, aggregates its proposal
// distributions and publishes the result to one or more sinks.
package precompute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/analytics"
	"github.com/canopy-network/govlens/pkg/governance"
	"github.com/canopy-network/govlens/pkg/metrics"
	"github.com/canopy-network/govlens/pkg/source"
	"github.com/canopy-network/govlens/pkg/utils"
)

// AllKey names the object aggregating every chain of a run.
const AllKey = "all"

// ErrNoChains is returned when chains were requested but none could be loaded.
var ErrNoChains = errors.New("precompute: no chain could be loaded")

// Sink stores one aggregated object under key (a chain name or AllKey).
type Sink interface {
	Name() string
	Write(ctx context.Context, key string, d analytics.Distributions) error
}

type ChainReport struct {
	Chain      string        `json:"chain" yaml:"chain"`
	Proposals  int           `json:"proposals" yaml:"proposals"`
	Validators int           `json:"validators" yaml:"validators"`
	Votes      int           `json:"votes" yaml:"votes"`
	Categories int           `json:"categories" yaml:"categories"`
	Topics     int           `json:"topics" yaml:"topics"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report summarizes a run. Chains follow the sorted order of the request.
type Report struct {
	StartedAt time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Chains    []ChainReport `json:"chains" yaml:"chains"`

	All *analytics.Distributions `json:"-" yaml:"-"`
}

// Failed lists the chains that could not be loaded or written.
func (r *Report) Failed() []string {
	var out []string
	for _, c := range r.Chains {
		if c.Error != "" {
			out = append(out, c.Chain)
		}
	}
	return out
}

func (r *Report) Status() string {
	failed := len(r.Failed())
	switch {
	case failed == 0:
		return metrics.StatusSuccess
	case failed == len(r.Chains):
		return metrics.StatusFailed
	default:
		return metrics.StatusPartial
	}
}

// Runner is safe to reuse across runs but not to run concurrently with
// itself on the same sinks.
type Runner struct {
	Loader  source.Loader
	Sinks   []Sink
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Workers int
}

// Run precomputes chains, or every chain the loader knows when chains is
// empty. A chain that fails is reported and left out of the combined
// object; it never stops the others.
func (r *Runner) Run(ctx context.Context, chains []string) (*Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	started := time.Now()

	if len(chains) == 0 {
		listed, err := r.Loader.Chains(ctx)
		if err != nil {
			r.Metrics.ObserveRun(metrics.StatusFailed)
			return nil, fmt.Errorf("list chains: %w", err)
		}
		chains = listed
	}
	chains = utils.Dedup(chains)
	sort.Strings(chains)

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	loaded := xsync.NewMap[string, *governance.Dataset]()
	reports := xsync.NewMap[string, ChainReport]()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, chain := range chains {
		chain := chain
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			rep, ds := r.runChain(groupCtx, logger, chain)
			reports.Store(chain, rep)
			if ds != nil {
				loaded.Store(chain, ds)
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		r.Metrics.ObserveRun(metrics.StatusFailed)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		r.Metrics.ObserveRun(metrics.StatusFailed)
		return nil, err
	}

	report := &Report{StartedAt: started, Chains: make([]ChainReport, 0, len(chains))}
	parts := make([]*governance.Dataset, 0, len(chains))
	for _, chain := range chains {
		rep, _ := reports.Load(chain)
		report.Chains = append(report.Chains, rep)
		if ds, ok := loaded.Load(chain); ok {
			parts = append(parts, ds)
		}
	}
	if len(chains) > 0 && len(parts) == 0 {
		report.Duration = time.Since(started)
		r.Metrics.ObserveRun(metrics.StatusFailed)
		logger.Error("Precompute failed for every chain", zap.Strings("chains", chains))
		return report, ErrNoChains
	}

	all := analytics.AggregateDataset(governance.Merge(parts...))
	report.All = &all
	if err := r.write(ctx, AllKey, all); err != nil {
		report.Duration = time.Since(started)
		r.Metrics.ObserveRun(metrics.StatusFailed)
		return report, err
	}

	report.Duration = time.Since(started)
	r.Metrics.ObserveRun(report.Status())
	logger.Info("Precompute finished",
		zap.Int("chains", len(chains)),
		zap.Strings("failed", report.Failed()),
		zap.Int("categories", len(all.Categories)),
		zap.Int("topics", len(all.Topics)),
		zap.Duration("took", report.Duration))
	return report, nil
}

// runChain returns the dataset whenever it loaded, even if a sink failed,
// so that the combined object still covers the chain.
func (r *Runner) runChain(ctx context.Context, logger *zap.Logger, chain string) (ChainReport, *governance.Dataset) {
	start := time.Now()
	rep := ChainReport{Chain: chain}

	ds, err := r.Loader.Load(ctx, chain)
	if err != nil {
		rep.Error = err.Error()
		rep.Duration = time.Since(start)
		logger.Warn("Failed to load chain", zap.String("chain", chain), zap.Error(err))
		return rep, nil
	}
	rep.Proposals, rep.Validators, rep.Votes = len(ds.Proposals), len(ds.Validators), len(ds.Votes)

	d := analytics.AggregateDataset(ds)
	rep.Categories, rep.Topics = len(d.Categories), len(d.Topics)
	if err := r.write(ctx, chain, d); err != nil {
		rep.Error = err.Error()
		logger.Warn("Failed to write chain stats", zap.String("chain", chain), zap.Error(err))
	}

	rep.Duration = time.Since(start)
	r.Metrics.ObserveChain(chain, rep.Duration, rep.Votes)
	logger.Debug("Chain precomputed",
		zap.String("chain", chain),
		zap.Int("proposals", rep.Proposals),
		zap.Int("votes", rep.Votes),
		zap.Duration("took", rep.Duration))
	return rep, ds
}

func (r *Runner) write(ctx context.Context, key string, d analytics.Distributions) error {
	var errs []error
	for _, s := range r.Sinks {
		if err := s.Write(ctx, key, d); err != nil {
			errs = append(errs, fmt.Errorf("%s sink %s: %w", s.Name(), key, err))
		}
	}
	return errors.Join(errs...)
}
