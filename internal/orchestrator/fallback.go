package orchestrator

import (
	"context"
	"fmt"

	"github.com/dusk-indust/orchestrate/internal/verify"
)

// Compile-time check.
var _ PhaseExecutor = (*FallbackExecutor)(nil)

// FallbackExecutor provides degraded execution for phases whose preferred
// capability is unavailable. Collection falls back to the input file,
// overlap refinement to declared line ranges, and surface counting to the
// regex counter. Each degradation is recorded on the phase result so a run
// shows what it had to do without.
type FallbackExecutor struct {
	pipe *Pipeline
}

// NewFallbackExecutor creates a FallbackExecutor over the pipeline's basic
// phase paths.
func NewFallbackExecutor(pipe *Pipeline) *FallbackExecutor {
	return &FallbackExecutor{pipe: pipe}
}

// Execute runs the degraded path for a single phase.
func (f *FallbackExecutor) Execute(ctx context.Context, phase Phase) (*PhaseResult, error) {
	var (
		res *PhaseResult
		err error
	)
	switch phase {
	case PhaseCollect:
		res, err = f.pipe.executeCollect(ctx, nil)
	case PhaseDetect:
		res, err = f.pipe.executeDetect(ctx, nil)
	case PhaseResolve:
		res, err = f.pipe.executeResolve(ctx)
	case PhaseMerge:
		res, err = f.pipe.executeMerge(ctx, false, verify.RegexCounter{})
	case PhaseVerify:
		res, err = f.pipe.executeVerify(ctx, verify.RegexCounter{})
	default:
		return nil, fmt.Errorf("fallback: unknown phase %d", phase)
	}
	if err != nil {
		return nil, err
	}

	res.Warnings = append(res.Warnings, f.degradations(phase)...)
	return res, nil
}

// degradations names what the basic path did without.
func (f *FallbackExecutor) degradations(phase Phase) []string {
	switch phase {
	case PhaseCollect:
		if len(f.pipe.cfg.Workers) > 0 {
			return []string{"worker intake unavailable; collected from input file"}
		}
		return nil
	case PhaseDetect:
		return []string{"code intelligence unavailable; overlaps judged by declared ranges"}
	case PhaseMerge:
		return []string{"code intelligence unavailable; declared dependencies only"}
	case PhaseVerify:
		return []string{"code intelligence unavailable; regex surface counting"}
	default:
		return nil
	}
}
