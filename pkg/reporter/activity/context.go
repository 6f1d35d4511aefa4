package activity

import (
	"go.uber.org/zap"

	"github.com/canopy-network/govlens/pkg/precompute"
	"github.com/canopy-network/govlens/pkg/temporal"
)

type Context struct {
	Logger         *zap.Logger
	Runner         *precompute.Runner
	TemporalClient *temporal.Client

	// Chains is the default chain set; empty means every chain the loader knows.
	Chains []string
}

// PrecomputeInput selects the chains of one run; empty falls back to Context.Chains.
type PrecomputeInput struct {
	Chains []string `json:"chains"`
}

// PrecomputeResult is the serializable summary of a run.
type PrecomputeResult struct {
	Status     string   `json:"status"`
	Chains     []string `json:"chains"`
	Failed     []string `json:"failed"`
	Categories int      `json:"categories"`
	Topics     int      `json:"topics"`
}
