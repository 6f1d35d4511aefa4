package workflow

import "github.com/canopy-network/govlens/pkg/reporter/activity"

// PrecomputeDistributionsWorkflowName is the registered name schedules start.
const PrecomputeDistributionsWorkflowName = "PrecomputeDistributionsWorkflow"

type Context struct {
	ActivityContext *activity.Context
}
