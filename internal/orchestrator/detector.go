package orchestrator

import (
	"context"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// Detector probes the local environment to determine available capabilities.
type Detector interface {
	// Detect probes the configured worker endpoints and the code
	// intelligence stack, and returns the highest available capability
	// level plus the workers that answered.
	Detect(ctx context.Context) (CapabilityLevel, []output.Worker, error)
}
