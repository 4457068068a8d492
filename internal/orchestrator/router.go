package orchestrator

import (
	"context"
	"fmt"
)

// PhaseExecutor executes a single pipeline phase. Executors read their
// inputs from the run directory's artifacts and write their own artifact
// back, so any phase can run standalone once its prerequisites exist.
type PhaseExecutor interface {
	Execute(ctx context.Context, phase Phase) (*PhaseResult, error)
}

// Router maps pipeline phases to their registered executors and refuses to
// run a phase whose prerequisite artifacts are missing.
type Router struct {
	dir       RunDir
	executors map[Phase]PhaseExecutor
}

// NewRouter creates a Router over the given run directory with an empty
// executor registry.
func NewRouter(dir RunDir) *Router {
	return &Router{
		dir:       dir,
		executors: make(map[Phase]PhaseExecutor),
	}
}

// RegisterExecutor associates an executor with a pipeline phase.
func (r *Router) RegisterExecutor(phase Phase, exec PhaseExecutor) {
	r.executors[phase] = exec
}

// Route checks the phase's prerequisite artifacts and delegates to the
// registered PhaseExecutor.
func (r *Router) Route(ctx context.Context, phase Phase) (*PhaseResult, error) {
	exec, ok := r.executors[phase]
	if !ok {
		return nil, fmt.Errorf("router: no executor registered for phase %d (%s)", phase, phase)
	}

	if err := r.checkPrerequisites(phase); err != nil {
		return nil, fmt.Errorf("router: phase %d (%s): %w", phase, phase, err)
	}

	return exec.Execute(ctx, phase)
}

// prerequisites returns the phases whose artifacts must exist before the
// given phase can execute.
func prerequisites(phase Phase) []Phase {
	switch phase {
	case PhaseCollect:
		return nil
	case PhaseDetect:
		return []Phase{PhaseCollect}
	case PhaseResolve:
		return []Phase{PhaseCollect, PhaseDetect}
	case PhaseMerge:
		return []Phase{PhaseCollect, PhaseDetect, PhaseResolve}
	case PhaseVerify:
		return []Phase{PhaseCollect, PhaseMerge}
	default:
		return nil
	}
}

// checkPrerequisites verifies that every prerequisite phase has left its
// artifact in the run directory. The error names the missing artifact and
// the phase that produces it.
func (r *Router) checkPrerequisites(phase Phase) error {
	for _, pre := range prerequisites(phase) {
		artifact := ArtifactForPhase(pre)
		if !r.dir.HasArtifact(artifact) {
			return fmt.Errorf("prerequisite %s missing (run the %s phase first)", artifact, pre)
		}
	}
	return nil
}
