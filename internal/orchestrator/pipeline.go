package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/resolve"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// Compile-time interface checks.
var (
	_ Orchestrator  = (*Pipeline)(nil)
	_ PhaseExecutor = (*Pipeline)(nil)
)

// Pipeline implements both Orchestrator and PhaseExecutor. It coordinates
// the full merge pipeline by delegating phase routing to a Router, progress
// reporting to a ProgressReporter, and degraded execution to a
// FallbackExecutor. Every phase reads its inputs from and writes its outputs
// to the run directory, so phases stay independently runnable.
type Pipeline struct {
	cfg      Config
	dir      RunDir
	fetcher  output.Fetcher
	parser   graph.Parser
	router   *Router
	progress *ProgressReporter
	fallback *FallbackExecutor
	log      *zap.Logger

	// result caches the merge phase outcome so RunAll can return it even
	// when a later phase fails.
	result *merge.Result
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithParser attaches a code-intel parser. The caller keeps ownership and
// closes it; without one the pipeline degrades to declared ranges and regex
// surface counting even at code-intel capability.
func WithParser(p graph.Parser) PipelineOption {
	return func(pl *Pipeline) { pl.parser = p }
}

// WithLogger sets the pipeline's logger.
func WithLogger(log *zap.Logger) PipelineOption {
	return func(pl *Pipeline) { pl.log = log }
}

// NewPipeline creates a Pipeline wired with a Router, ProgressReporter, and
// FallbackExecutor. The pipeline registers itself as the PhaseExecutor for
// all five phases. fetcher may be nil when only file-based collection is
// used.
func NewPipeline(cfg Config, fetcher output.Fetcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		dir:      NewRunDir(cfg.RunsRoot, cfg.RunID),
		fetcher:  fetcher,
		progress: NewProgressReporter(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.router = NewRouter(p.dir)
	p.fallback = NewFallbackExecutor(p)

	// Register this pipeline as the executor for every phase.
	for phase := PhaseCollect; phase <= PhaseVerify; phase++ {
		p.router.RegisterExecutor(phase, p)
	}

	return p
}

// Dir returns the run directory the pipeline operates on.
func (p *Pipeline) Dir() RunDir {
	return p.dir
}

// ---------------------------------------------------------------------------
// Orchestrator interface
// ---------------------------------------------------------------------------

// RunPhase executes a single pipeline phase. It emits a phase header via the
// progress reporter and delegates to the router, which calls back into
// Pipeline.Execute.
func (p *Pipeline) RunPhase(ctx context.Context, phase Phase) (*PhaseResult, error) {
	p.progress.Emit(ProgressEvent{
		Phase:   phase,
		Subject: FormatPhaseHeader(p.cfg.RunID, phase),
		Status:  ProgressWorking,
	})

	result, err := p.router.Route(ctx, phase)
	if err != nil {
		p.progress.Emit(ProgressEvent{
			Phase:   phase,
			Subject: phase.String(),
			Status:  ProgressFailed,
			Message: err.Error(),
		})
		return nil, err
	}

	p.progress.Emit(ProgressEvent{
		Phase:   phase,
		Subject: phase.String(),
		Status:  ProgressComplete,
		Message: result.Summary,
	})

	return result, nil
}

// RunAll executes every phase in order. It returns the merge result when one
// was produced, even if a later phase failed, so callers can report what
// landed alongside the error.
func (p *Pipeline) RunAll(ctx context.Context) (*merge.Result, error) {
	for phase := PhaseCollect; phase <= PhaseVerify; phase++ {
		if _, err := p.RunPhase(ctx, phase); err != nil {
			return p.result, err
		}
	}
	return p.result, nil
}

// Progress returns a channel that emits progress events.
func (p *Pipeline) Progress() <-chan ProgressEvent {
	return p.progress.Subscribe()
}

// Close shuts down the progress reporter. Callers should invoke this when
// the pipeline is no longer needed.
func (p *Pipeline) Close() {
	p.progress.Close()
}

// ---------------------------------------------------------------------------
// PhaseExecutor interface
// ---------------------------------------------------------------------------

// Execute is the PhaseExecutor callback invoked by the Router. Phases whose
// preferred capability is unavailable fall back to the degraded path, which
// records what the run had to do without.
func (p *Pipeline) Execute(ctx context.Context, phase Phase) (*PhaseResult, error) {
	caps := p.cfg.Capability

	switch phase {
	case PhaseCollect:
		if caps.HasIntake() && p.fetcher != nil && len(p.cfg.Workers) > 0 {
			return p.executeCollect(ctx, p.fetcher)
		}
		return p.fallback.Execute(ctx, phase)

	case PhaseDetect:
		if caps.HasCodeIntel() && p.parser != nil {
			return p.executeDetect(ctx, graph.NewSpanResolver(p.parser))
		}
		return p.fallback.Execute(ctx, phase)

	case PhaseResolve:
		// Strategy selection needs no capability beyond the artifacts.
		return p.executeResolve(ctx)

	case PhaseMerge:
		if caps.HasCodeIntel() && p.parser != nil {
			return p.executeMerge(ctx, true, verify.NewParserCounter(p.parser))
		}
		return p.fallback.Execute(ctx, phase)

	case PhaseVerify:
		if caps.HasCodeIntel() && p.parser != nil {
			return p.executeVerify(ctx, verify.NewParserCounter(p.parser))
		}
		return p.fallback.Execute(ctx, phase)

	default:
		return nil, fmt.Errorf("pipeline: unknown phase %d", phase)
	}
}

// ---------------------------------------------------------------------------
// Phase implementations
// ---------------------------------------------------------------------------

// executeCollect assembles the batch, from worker endpoints when a fetcher
// is given or from the configured input file otherwise, and writes
// outputs.json.
func (p *Pipeline) executeCollect(ctx context.Context, fetcher output.Fetcher) (*PhaseResult, error) {
	collector := output.NewCollector(fetcher, p.log)

	var (
		batch  *output.Batch
		source string
		err    error
	)
	if fetcher != nil && len(p.cfg.Workers) > 0 {
		batch, err = collector.FromEndpoints(ctx, p.cfg.RunID, p.cfg.Workers)
		source = fmt.Sprintf("%d workers", len(p.cfg.Workers))
	} else {
		if p.cfg.InputFile == "" {
			return nil, fmt.Errorf("pipeline: collect has no input: no reachable workers and no input file")
		}
		batch, err = collector.FromFile(p.cfg.InputFile)
		source = p.cfg.InputFile
	}
	if err != nil {
		return nil, err
	}

	if batch.RunID == "" {
		batch.RunID = p.cfg.RunID
	}
	if err := p.dir.SaveBatch(batch); err != nil {
		return nil, err
	}

	return &PhaseResult{
		Phase:     PhaseCollect,
		Artifacts: []string{p.dir.ArtifactPath(ArtifactOutputs)},
		Summary:   fmt.Sprintf("collected %d agent outputs from %s", len(batch.Outputs), source),
	}, nil
}

// executeDetect scans the collected batch for conflicts and writes
// conflicts.json plus the markdown report. resolver may be nil, in which
// case same-file overlaps are judged by declared ranges alone.
func (p *Pipeline) executeDetect(ctx context.Context, resolver conflict.SymbolResolver) (*PhaseResult, error) {
	batch, err := p.dir.LoadBatch()
	if err != nil {
		return nil, err
	}

	opts := []conflict.DetectorOption{conflict.WithLogger(p.log)}
	if resolver != nil {
		opts = append(opts, conflict.WithSymbolResolver(resolver))
	}

	conflicts, err := conflict.NewDetector(opts...).Detect(ctx, batch)
	if err != nil {
		return nil, err
	}

	art := ConflictsArtifact{
		RunID:     batch.RunID,
		Summary:   conflict.Summarize(conflicts),
		Conflicts: conflicts,
	}
	if err := p.dir.SaveConflicts(art); err != nil {
		return nil, err
	}
	if err := p.dir.WriteText(ReportConflicts, conflict.Report(conflicts)); err != nil {
		return nil, err
	}

	return &PhaseResult{
		Phase: PhaseDetect,
		Artifacts: []string{
			p.dir.ArtifactPath(ArtifactConflicts),
			p.dir.ArtifactPath(ReportConflicts),
		},
		Summary: summarizeConflicts(art.Summary),
	}, nil
}

// executeResolve selects one strategy per detected conflict and writes
// resolutions.json. Full coverage is checked here so the merge phase can
// rely on it.
func (p *Pipeline) executeResolve(_ context.Context) (*PhaseResult, error) {
	batch, err := p.dir.LoadBatch()
	if err != nil {
		return nil, err
	}
	ca, err := p.dir.LoadConflicts()
	if err != nil {
		return nil, err
	}

	selector := resolve.NewSelector(resolve.Config{
		Priorities: p.cfg.Priorities,
		Overrides:  p.cfg.Overrides,
	}, p.log)
	resolutions := selector.Select(ca.Conflicts, batch)

	if err := resolve.Validate(ca.Conflicts, resolutions); err != nil {
		return nil, fmt.Errorf("pipeline: resolve produced invalid coverage: %w", err)
	}

	art := ResolutionsArtifact{RunID: batch.RunID, Resolutions: resolutions}
	if err := p.dir.SaveResolutions(art); err != nil {
		return nil, err
	}

	escalated := 0
	for _, r := range resolutions {
		if r.Strategy == resolve.StrategyEscalate {
			escalated++
		}
	}

	return &PhaseResult{
		Phase:     PhaseResolve,
		Artifacts: []string{p.dir.ArtifactPath(ArtifactResolutions)},
		Summary:   fmt.Sprintf("%d resolutions selected, %d escalated", len(resolutions), escalated),
	}, nil
}

// executeMerge runs the merge executor over the collected artifacts and
// writes merge-result.json. Unless the run is dry, the merged snapshot is
// materialized under merged/ so the battery has a tree to run against.
func (p *Pipeline) executeMerge(ctx context.Context, useGraph bool, counter verify.SurfaceCounter) (*PhaseResult, error) {
	batch, err := p.dir.LoadBatch()
	if err != nil {
		return nil, err
	}
	ca, err := p.dir.LoadConflicts()
	if err != nil {
		return nil, err
	}
	ra, err := p.dir.LoadResolutions()
	if err != nil {
		return nil, err
	}

	base, err := merge.LoadBase(p.cfg.ProjectRoot, batch)
	if err != nil {
		return nil, err
	}

	gate := verify.NewGate(p.cfg.Gate,
		verify.WithBatch(batch),
		verify.WithSurfaceCounter(counter),
		verify.WithLogger(p.log))

	var warnings []string
	eopts := []merge.ExecutorOption{
		merge.WithVerifier(gate),
		merge.WithLogger(p.log),
	}
	if useGraph {
		edges, gerr := p.implicitEdges(ctx, batch, base)
		if gerr != nil {
			warnings = append(warnings, fmt.Sprintf("graph ingestion failed, declared dependencies only: %v", gerr))
		} else if len(edges) > 0 {
			eopts = append(eopts, merge.WithEdges(edges))
		}
	}

	result, err := merge.NewExecutor(eopts...).Execute(ctx, merge.ExecuteRequest{
		Batch:       batch,
		Conflicts:   ca.Conflicts,
		Resolutions: ra.Resolutions,
		Base:        base,
		DryRun:      p.cfg.DryRun,
	})
	if err != nil {
		return nil, err
	}

	p.result = result
	if err := p.dir.SaveMergeResult(result); err != nil {
		return nil, err
	}

	artifacts := []string{p.dir.ArtifactPath(ArtifactMergeResult)}
	if !p.cfg.DryRun {
		if err := result.Snapshot.Materialize(p.dir.MergedDir()); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, p.dir.MergedDir())
	}

	return &PhaseResult{
		Phase:     PhaseMerge,
		Artifacts: artifacts,
		Summary: fmt.Sprintf("merged %d files from %d agents, %d unresolved",
			len(result.MergedFiles), len(result.Snapshot.Applied), len(result.UnresolvedConflicts)),
		Warnings: append(warnings, result.Warnings...),
	}, nil
}

// executeVerify runs the final gate, battery included, against the merged
// snapshot and writes verification.json plus the markdown summary. A FAIL
// verdict is returned as a GateFailedError after the artifacts land.
func (p *Pipeline) executeVerify(ctx context.Context, counter verify.SurfaceCounter) (*PhaseResult, error) {
	if p.cfg.DryRun {
		return &PhaseResult{
			Phase:    PhaseVerify,
			Summary:  "dry run, verification skipped",
			Warnings: []string{"dry run: final gate not executed"},
		}, nil
	}

	batch, err := p.dir.LoadBatch()
	if err != nil {
		return nil, err
	}
	result, err := p.dir.LoadMergeResult()
	if err != nil {
		return nil, err
	}
	base, err := merge.LoadBase(p.cfg.ProjectRoot, batch)
	if err != nil {
		return nil, err
	}

	gcfg := p.cfg.Gate
	if gcfg.WorkDir == "" {
		gcfg.WorkDir = p.dir.MergedDir()
	}
	gate := verify.NewGate(gcfg,
		verify.WithBatch(batch),
		verify.WithSurfaceCounter(counter),
		verify.WithLogger(p.log))

	res, err := gate.Final(ctx, base, result.Snapshot)
	if err != nil {
		return nil, err
	}

	if err := p.dir.SaveVerification(res); err != nil {
		return nil, err
	}
	if err := p.dir.WriteText(ReportVerification, verify.FormatSummary(res)); err != nil {
		return nil, err
	}

	if res.Status == verify.StatusFail {
		return nil, &GateFailedError{Result: res}
	}

	return &PhaseResult{
		Phase: PhaseVerify,
		Artifacts: []string{
			p.dir.ArtifactPath(ArtifactVerification),
			p.dir.ArtifactPath(ReportVerification),
		},
		Summary:  fmt.Sprintf("verification passed (%d checks)", len(res.Checks)),
		Warnings: res.Warnings,
	}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// implicitEdges ingests the batch into an in-memory graph and returns the
// DEPENDS_ON edges recovered from cross-agent imports. Declared edges are
// excluded; the merge executor derives those from the batch itself.
func (p *Pipeline) implicitEdges(ctx context.Context, batch *output.Batch, base merge.Snapshot) ([]graph.Edge, error) {
	store := graph.NewMemStore()
	defer store.Close()

	iopts := []graph.IngestOption{graph.WithLogger(p.log)}
	if p.parser != nil {
		iopts = append(iopts, graph.WithParser(p.parser))
	}
	if err := graph.NewIngestor(store, iopts...).Ingest(ctx, batch, base.Files); err != nil {
		return nil, err
	}

	all, err := store.GetAllEdges(ctx)
	if err != nil {
		return nil, err
	}
	var implicit []graph.Edge
	for _, e := range all {
		if e.Kind == graph.EdgeKindDependsOn && e.Label == graph.DepImplicit {
			implicit = append(implicit, e)
		}
	}
	return implicit, nil
}

// summarizeConflicts renders "4 conflicts (1 critical, 2 medium, 1 low)".
func summarizeConflicts(s conflict.Summary) string {
	if s.Total == 0 {
		return "no conflicts detected"
	}
	order := []conflict.Severity{
		conflict.SeverityCritical,
		conflict.SeverityHigh,
		conflict.SeverityMedium,
		conflict.SeverityLow,
	}
	var parts []string
	for _, sev := range order {
		if n := s.BySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	return fmt.Sprintf("%d conflicts (%s)", s.Total, strings.Join(parts, ", "))
}
