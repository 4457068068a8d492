package orchestrator

import (
	"context"
	"fmt"

	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// Phase identifies a pipeline phase (0-4).
type Phase int

const (
	PhaseCollect Phase = 0
	PhaseDetect  Phase = 1
	PhaseResolve Phase = 2
	PhaseMerge   Phase = 3
	PhaseVerify  Phase = 4
)

func (p Phase) String() string {
	names := [...]string{
		"collect",
		"detect",
		"resolve",
		"merge",
		"verify",
	}
	if p >= 0 && int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// PhaseResult holds the outcome of a completed phase.
type PhaseResult struct {
	Phase     Phase
	Artifacts []string // artifact paths written under the run directory
	Summary   string   // one-line outcome
	Warnings  []string // degradations and non-fatal findings
}

// ProgressEvent is emitted to the user during pipeline execution.
type ProgressEvent struct {
	Phase   Phase
	Subject string
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a subject within a phase.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Orchestrator coordinates the merge pipeline.
type Orchestrator interface {
	// RunPhase executes a single pipeline phase.
	RunPhase(ctx context.Context, phase Phase) (*PhaseResult, error)

	// RunAll executes every phase in order and returns the merge result.
	RunAll(ctx context.Context) (*merge.Result, error)

	// Progress returns a channel that emits progress events.
	Progress() <-chan ProgressEvent
}

// GateFailedError means the final verification gate rejected the merged
// snapshot. The verification artifacts are written before this is returned.
type GateFailedError struct {
	Result *verify.GateResult
}

func (e *GateFailedError) Error() string {
	if len(e.Result.Violations) == 0 {
		return "verification gate failed"
	}
	first := e.Result.Violations[0]
	return fmt.Sprintf("verification gate failed: %d violations (first: %s %s: %s)",
		len(e.Result.Violations), first.Check, first.Subject, first.Detail)
}
