package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/canopy-network/govlens/pkg/reporter/activity"
)

func (c *Context) PrecomputeDistributionsWorkflow(ctx workflow.Context, in activity.PrecomputeInput) (activity.PrecomputeResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
		TaskQueue: c.ActivityContext.TemporalClient.ReportsQueue,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var res activity.PrecomputeResult
	err := workflow.ExecuteActivity(ctx, (*activity.Context).ComputeDistributionsAllChains, in).Get(ctx, &res)
	if err != nil {
		return activity.PrecomputeResult{}, err
	}
	workflow.GetLogger(ctx).Info("Distributions precomputed",
		"status", res.Status,
		"chains", len(res.Chains),
		"failed", len(res.Failed))
	return res, nil
}
