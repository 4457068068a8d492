package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/resolve"
)

// Verification status values carried in Result.VerificationStatus.
const (
	VerificationPass    = "pass"
	VerificationFail    = "fail"
	VerificationSkipped = "skipped"
)

// StepVerifier checks one merge step. The executor calls it after each
// agent's changes land; a non-nil error rolls that agent back.
type StepVerifier interface {
	VerifyStep(ctx context.Context, before, after Snapshot, agentID string) error
}

// UncoveredConflictError means Execute was asked to merge while conflicts
// still had no resolution. That is an invariant violation in the calling
// pipeline, not a merge outcome.
type UncoveredConflictError struct {
	ConflictIDs []string
}

func (e *UncoveredConflictError) Error() string {
	return fmt.Sprintf("%d conflicts have no resolution: %s",
		len(e.ConflictIDs), strings.Join(e.ConflictIDs, ", "))
}

// CriticalPathError means a verification failure cannot be contained: every
// agent still waiting depends on the failed one, so nothing further can land.
type CriticalPathError struct {
	AgentID string
	Blocked []string
	Err     error
}

func (e *CriticalPathError) Error() string {
	return fmt.Sprintf("verification failed for %s and all remaining agents depend on it (%s): %v",
		e.AgentID, strings.Join(e.Blocked, ", "), e.Err)
}

func (e *CriticalPathError) Unwrap() error { return e.Err }

// ExecuteRequest carries everything one merge run needs. Base is the
// pre-merge snapshot. DryRun applies in memory but skips verification, and
// callers are expected not to persist the resulting snapshot.
type ExecuteRequest struct {
	Batch       *output.Batch
	Conflicts   []conflict.Conflict
	Resolutions []resolve.Resolution
	Base        Snapshot
	DryRun      bool
}

// Result is the complete outcome of one merge run. MergedFiles lists every
// path a landed agent contributed, Snapshot holds the post-merge file map,
// and Dependencies and Schema carry the combined declarations after
// resolution.
type Result struct {
	MergedFiles         []string            `json:"merged_files"`
	UnresolvedConflicts []conflict.Conflict `json:"unresolved_conflicts"`
	VerificationStatus  string              `json:"verification_status"`
	Order               []string            `json:"merge_order"`
	SkippedAgents       []string            `json:"skipped_agents,omitempty"`
	Warnings            []string            `json:"warnings,omitempty"`
	Duration            time.Duration       `json:"duration_ns"`
	Snapshot            Snapshot            `json:"snapshot"`
	Dependencies        map[string]string   `json:"dependencies,omitempty"`
	Schema              map[string][]string `json:"schema,omitempty"`
}

// Success reports whether the run merged cleanly: nothing unresolved and
// verification did not fail.
func (r *Result) Success() bool {
	return len(r.UnresolvedConflicts) == 0 && r.VerificationStatus != VerificationFail
}

// Executor merges one batch at a time. The zero value works; options attach
// a step verifier, extra dependency edges, and a logger.
type Executor struct {
	verifier StepVerifier
	edges    []graph.Edge
	log      *zap.Logger
	dmp      *diffmatchpatch.DiffMatchPatch
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithVerifier sets the per-step verification gate.
func WithVerifier(v StepVerifier) ExecutorOption {
	return func(e *Executor) { e.verifier = v }
}

// WithEdges adds dependency edges beyond the ones the batch declares, such
// as implicit file-handoff edges recovered from the graph store.
func WithEdges(edges []graph.Edge) ExecutorOption {
	return func(e *Executor) { e.edges = append(e.edges, edges...) }
}

// WithLogger sets the executor's logger.
func WithLogger(log *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		log: zap.NewNop(),
		dmp: diffmatchpatch.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// plan indexes one request's conflicts and resolutions for the apply loop.
type plan struct {
	res     map[string]resolve.Resolution
	fileRes map[string]resolve.Resolution // contested path -> its resolution
}

func newPlan(req ExecuteRequest) *plan {
	pl := &plan{
		res:     resolve.ByConflict(req.Resolutions),
		fileRes: make(map[string]resolve.Resolution),
	}
	for _, c := range req.Conflicts {
		if c.Kind == conflict.KindFile {
			pl.fileRes[c.Subject] = pl.res[c.ID]
		}
	}
	return pl
}

// Execute merges the batch onto the base snapshot. Agents land one at a time
// in dependency order; contested paths apply per their resolution; each step
// is verified and rolled back on failure. The same request always produces
// the same result, modulo Duration.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (*Result, error) {
	start := time.Now()
	if req.Batch == nil {
		return nil, fmt.Errorf("merge: nil batch")
	}

	if missing := resolve.Uncovered(req.Conflicts, req.Resolutions); len(missing) > 0 {
		return nil, &UncoveredConflictError{ConflictIDs: missing}
	}

	agents := req.Batch.AgentIDs()
	edges := append(graph.DeclaredDependencies(req.Batch), e.edges...)
	order, err := graph.TopoSort(agents, edges)
	if err != nil {
		return nil, fmt.Errorf("merge: no valid order: %w", err)
	}

	pl := newPlan(req)
	snap := req.Base.Clone()
	result := &Result{
		Order:              order,
		VerificationStatus: VerificationPass,
	}
	if req.DryRun {
		result.VerificationStatus = VerificationSkipped
	}

	merged := make(map[string]bool)
	skipped := make(map[string]bool)
	failed := make(map[string]bool)
	downstream := dependentsIndex(agents, edges)

	for i, agentID := range order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if skipped[agentID] {
			continue
		}
		out := req.Batch.ByAgent(agentID)
		if out == nil {
			continue
		}

		stepBase := snap.Clone()
		touched := e.applyAgent(&snap, req.Base, out, pl, result)

		if e.verifier != nil && !req.DryRun {
			if verr := e.verifier.VerifyStep(ctx, stepBase, snap, agentID); verr != nil {
				snap = stepBase
				failed[agentID] = true
				result.VerificationStatus = VerificationFail
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("verification failed after %s, rolled back: %v", agentID, verr))
				e.log.Warn("merge step rolled back",
					zap.String("agent", agentID),
					zap.Error(verr))

				blocked := transitiveDependents(agentID, downstream)
				blockedSet := make(map[string]bool, len(blocked))
				for _, b := range blocked {
					blockedSet[b] = true
				}

				remaining, covered := 0, 0
				for _, rest := range order[i+1:] {
					if skipped[rest] {
						continue
					}
					remaining++
					if blockedSet[rest] {
						covered++
					}
				}
				if remaining > 0 && covered == remaining {
					return nil, &CriticalPathError{AgentID: agentID, Blocked: blocked, Err: verr}
				}
				for _, b := range blocked {
					skipped[b] = true
				}
				continue
			}
		}

		for _, p := range touched {
			merged[p] = true
		}

		// A step counts when the agent contributed something: content, or a
		// first-time declared touch. Re-running a finished merge finds every
		// agent already recorded with nothing new, so the snapshot is stable.
		if delta := snap.Diff(stepBase); len(delta) > 0 || (len(touched) > 0 && !snap.HasApplied(agentID)) {
			snap.Version++
			snap.Applied = append(snap.Applied, agentID)
		}
	}

	excluded := make(map[string]bool, len(skipped)+len(failed))
	for a := range skipped {
		excluded[a] = true
	}
	for a := range failed {
		excluded[a] = true
	}

	result.Dependencies = combineDependencies(req, pl, excluded)
	for _, path := range pinManifests(&snap, conflictedPins(req, pl)) {
		merged[path] = true
	}
	result.Schema = combineSchema(req, pl, excluded)
	result.UnresolvedConflicts = collectUnresolved(req, pl, failed, skipped)
	result.MergedFiles = sortedKeys(merged)
	result.SkippedAgents = sortedKeys(skipped)
	result.Snapshot = snap
	result.Duration = time.Since(start)

	e.log.Info("merge complete",
		zap.Int("agents", len(order)),
		zap.Int("merged_files", len(result.MergedFiles)),
		zap.Int("unresolved", len(result.UnresolvedConflicts)),
		zap.String("verification", result.VerificationStatus),
		zap.Bool("dry_run", req.DryRun))
	return result, nil
}

// applyAgent folds one agent's file changes into the snapshot and returns
// the paths it actually contributed. Contested paths follow their
// resolution; escalated ones stay at base.
func (e *Executor) applyAgent(snap *Snapshot, base Snapshot, out *output.AgentOutput, pl *plan, result *Result) []string {
	var touched []string
	for i := range out.Files {
		fc := out.Files[i]
		res, contested := pl.fileRes[fc.Path]
		if !contested {
			snap.Apply(fc)
			touched = append(touched, fc.Path)
			continue
		}

		switch res.Strategy {
		case resolve.StrategyEscalate:
			// Unresolved by decision: nobody's change lands.
		case resolve.StrategyKeepOurs, resolve.StrategyKeepTheirs:
			if res.ChosenAgent != out.AgentID {
				continue
			}
			snap.Apply(fc)
			touched = append(touched, fc.Path)
		case resolve.StrategyAutoMerge:
			e.autoMerge(snap, base, fc, out.AgentID, result)
			touched = append(touched, fc.Path)
		default:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("resolution %s applies %s to a file conflict; %s left at base",
					res.ConflictID, res.Strategy, fc.Path))
		}
	}
	return touched
}

// autoMerge folds one agent's change into a contested path. The first
// content-bearing change sets the text; later ones are replayed as patches
// computed against the pre-merge base, so edits to disjoint regions land
// side by side instead of clobbering each other.
func (e *Executor) autoMerge(snap *Snapshot, base Snapshot, fc output.FileChange, agentID string, result *Result) {
	if fc.Content == "" {
		// Declared touch without captured content: keep what is there.
		if _, ok := snap.Files[fc.Path]; !ok {
			snap.Files[fc.Path] = base.Files[fc.Path]
		}
		return
	}

	baseContent := base.Files[fc.Path]
	current, ok := snap.Files[fc.Path]
	if !ok || current == baseContent {
		snap.Files[fc.Path] = fc.Content
		return
	}

	patches := e.dmp.PatchMake(baseContent, fc.Content)
	mergedText, applied := e.dmp.PatchApply(patches, current)
	for i, clean := range applied {
		if !clean {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("auto-merge of %s: hunk %d from %s did not apply cleanly", fc.Path, i, agentID))
		}
	}
	snap.Files[fc.Path] = mergedText
}

// collectUnresolved gathers the conflicts the run could not settle: escalated
// ones, conflicts involving an agent whose step failed verification, and
// conflicts whose resolution depended on an agent that never landed.
func collectUnresolved(req ExecuteRequest, pl *plan, failed, skipped map[string]bool) []conflict.Conflict {
	var unresolved []conflict.Conflict
	for _, c := range req.Conflicts {
		res := pl.res[c.ID]
		switch {
		case res.Strategy == resolve.StrategyEscalate:
			unresolved = append(unresolved, c)
		case involvesAny(c.Agents, failed):
			unresolved = append(unresolved, c)
		case (res.Strategy == resolve.StrategyKeepOurs || res.Strategy == resolve.StrategyKeepTheirs) && skipped[res.ChosenAgent]:
			unresolved = append(unresolved, c)
		case (res.Strategy == resolve.StrategyAutoMerge || res.Strategy == resolve.StrategyCombine) && involvesAny(c.Agents, skipped):
			// A union strategy needs every side; a skipped side breaks it.
			unresolved = append(unresolved, c)
		}
	}
	conflict.SortConflicts(unresolved)
	return unresolved
}

func involvesAny(agents []string, set map[string]bool) bool {
	for _, a := range agents {
		if set[a] {
			return true
		}
	}
	return false
}

// dependentsIndex maps each agent to the agents that directly depend on it.
func dependentsIndex(agents []string, edges []graph.Edge) map[string][]string {
	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[a] = true
	}
	m := make(map[string][]string)
	for _, e := range edges {
		if e.Kind != graph.EdgeKindDependsOn || !known[e.SourceID] || !known[e.TargetID] {
			continue
		}
		m[e.TargetID] = append(m[e.TargetID], e.SourceID)
	}
	return m
}

// transitiveDependents returns every agent that depends on root, directly or
// through other agents. Sorted.
func transitiveDependents(root string, downstream map[string][]string) []string {
	seen := map[string]bool{root: true}
	queue := []string{root}
	var result []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range downstream[cur] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			result = append(result, dep)
			queue = append(queue, dep)
		}
	}
	sort.Strings(result)
	return result
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
