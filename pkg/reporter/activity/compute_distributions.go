package activity

import (
	"context"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// ComputeDistributionsAllChains runs one precompute pass and publishes the
// per-chain and combined distributions to the configured sinks. Chains that
// fail to load are reported in the result and do not fail the activity.
func (c *Context) ComputeDistributionsAllChains(ctx context.Context, in PrecomputeInput) (PrecomputeResult, error) {
	chains := in.Chains
	if len(chains) == 0 {
		chains = c.Chains
	}

	report, err := c.Runner.Run(ctx, chains)
	if err != nil {
		return PrecomputeResult{}, temporal.NewApplicationErrorWithCause("unable to precompute distributions", "precompute_failed", err)
	}

	res := PrecomputeResult{
		Status: report.Status(),
		Chains: make([]string, 0, len(report.Chains)),
		Failed: report.Failed(),
	}
	for _, cr := range report.Chains {
		res.Chains = append(res.Chains, cr.Chain)
	}
	if report.All != nil {
		res.Categories = len(report.All.Categories)
		res.Topics = len(report.All.Topics)
	}
	if len(res.Failed) > 0 {
		c.Logger.Warn("Precompute finished with failures",
			zap.Strings("failed", res.Failed),
			zap.String("status", res.Status))
	}
	return res, nil
}
