// Package mcptools exposes the merge pipeline as MCP tools so agent
// frontends can drive runs through structured calls instead of shelling out.
package mcptools

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/export"
	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/resolve"
	"github.com/dusk-indust/orchestrate/internal/status"
)

// Service handles MCP tool calls. Each call names a run; the service builds
// one pipeline per run on first use and reuses it for the session.
type Service struct {
	base    orchestrator.Config
	fetcher output.Fetcher
	log     *zap.Logger
	parser  graph.Parser

	mu        sync.Mutex
	pipelines map[string]orchestrator.Orchestrator
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger passed to every pipeline the service builds.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithParser attaches a source parser, enabling code-intel paths in the
// pipelines the service builds.
func WithParser(p graph.Parser) ServiceOption {
	return func(s *Service) { s.parser = p }
}

// NewService creates a Service. base carries everything but the run ID;
// fetcher pulls submissions from workers when base's capability has intake.
func NewService(base orchestrator.Config, fetcher output.Fetcher, opts ...ServiceOption) *Service {
	s := &Service{
		base:      base,
		fetcher:   fetcher,
		log:       zap.NewNop(),
		pipelines: make(map[string]orchestrator.Orchestrator),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runDir returns the artifact directory for a run.
func (s *Service) runDir(runID string) orchestrator.RunDir {
	return orchestrator.NewRunDir(s.base.RunsRoot, runID)
}

// pipeline returns the cached pipeline for runID, creating it on first use.
// inputFile overrides the configured outputs file, but only on creation.
func (s *Service) pipeline(runID, inputFile string) orchestrator.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pipelines[runID]; ok {
		return p
	}

	cfg := s.base
	cfg.RunID = runID
	if inputFile != "" {
		cfg.InputFile = inputFile
	}

	popts := []orchestrator.PipelineOption{orchestrator.WithLogger(s.log)}
	if s.parser != nil {
		popts = append(popts, orchestrator.WithParser(s.parser))
	}

	p := orchestrator.NewPipeline(cfg, s.fetcher, popts...)
	s.pipelines[runID] = p
	return p
}

// CollectOutputs gathers agent submissions for a run and writes outputs.json.
func (s *Service) CollectOutputs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CollectInput,
) (*mcp.CallToolResult, CollectOutput, error) {
	if input.RunID == "" {
		return nil, CollectOutput{}, fmt.Errorf("run_id is required")
	}

	res, err := s.pipeline(input.RunID, input.InputFile).RunPhase(ctx, orchestrator.PhaseCollect)
	if err != nil {
		return nil, CollectOutput{}, err
	}

	out := CollectOutput{Warnings: res.Warnings}
	if len(res.Artifacts) > 0 {
		out.Artifact = res.Artifacts[0]
	}
	if batch, err := s.runDir(input.RunID).LoadBatch(); err == nil {
		for _, o := range batch.Outputs {
			out.Agents = append(out.Agents, o.AgentID)
		}
	}
	return nil, out, nil
}

// DetectConflicts runs conflict detection over the collected batch.
func (s *Service) DetectConflicts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DetectInput,
) (*mcp.CallToolResult, DetectOutput, error) {
	if input.RunID == "" {
		return nil, DetectOutput{}, fmt.Errorf("run_id is required")
	}

	res, err := s.pipeline(input.RunID, "").RunPhase(ctx, orchestrator.PhaseDetect)
	if err != nil {
		return nil, DetectOutput{}, err
	}

	out := DetectOutput{Artifacts: res.Artifacts, Warnings: res.Warnings}
	if ca, err := s.runDir(input.RunID).LoadConflicts(); err == nil {
		out.Summary = ca.Summary
	}
	return nil, out, nil
}

// SelectResolutions picks a strategy for every detected conflict.
func (s *Service) SelectResolutions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolveInput,
) (*mcp.CallToolResult, ResolveOutput, error) {
	if input.RunID == "" {
		return nil, ResolveOutput{}, fmt.Errorf("run_id is required")
	}

	res, err := s.pipeline(input.RunID, "").RunPhase(ctx, orchestrator.PhaseResolve)
	if err != nil {
		return nil, ResolveOutput{}, err
	}

	out := ResolveOutput{}
	if len(res.Artifacts) > 0 {
		out.Artifact = res.Artifacts[0]
	}
	if ra, err := s.runDir(input.RunID).LoadResolutions(); err == nil {
		out.Total = len(ra.Resolutions)
		out.ByStrategy = make(map[resolve.Strategy]int)
		for _, r := range ra.Resolutions {
			out.ByStrategy[r.Strategy]++
			if r.Strategy == resolve.StrategyEscalate {
				out.Escalated = append(out.Escalated, r.ConflictID)
			}
		}
	}
	return nil, out, nil
}

// RunMerge applies the batch in dependency order and runs the verification
// gate. Execution failures come back as a failed status rather than a tool
// error so the caller still sees what the merge artifacts say.
func (s *Service) RunMerge(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeInput,
) (*mcp.CallToolResult, MergeOutput, error) {
	if input.RunID == "" {
		return nil, MergeOutput{}, fmt.Errorf("run_id is required")
	}

	p := s.pipeline(input.RunID, "")
	out := MergeOutput{Status: "completed"}

	for _, phase := range []orchestrator.Phase{orchestrator.PhaseMerge, orchestrator.PhaseVerify} {
		res, err := p.RunPhase(ctx, phase)
		if err != nil {
			out.Status = "failed"
			out.Message = err.Error()
			break
		}
		out.Warnings = append(out.Warnings, res.Warnings...)
	}

	dir := s.runDir(input.RunID)
	if mr, err := dir.LoadMergeResult(); err == nil {
		out.MergedFiles = mr.MergedFiles
		out.SkippedAgents = mr.SkippedAgents
		out.Unresolved = len(mr.UnresolvedConflicts)
		out.VerificationStatus = mr.VerificationStatus
	}
	if vr, err := dir.LoadVerification(); err == nil {
		out.GateStatus = string(vr.Status)
	}
	return nil, out, nil
}

// MergeStatus reports where a run stands, or lists every run when no run ID
// is given.
func (s *Service) MergeStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	out := StatusOutput{Capability: s.base.Capability.String()}

	if input.RunID == "" {
		for _, rs := range status.ListRuns(s.base.RunsRoot) {
			out.Runs = append(out.Runs, RunSummary{
				RunID:     rs.RunID,
				NextPhase: rs.NextPhase,
				Verdict:   rs.Verdict,
			})
		}
		return nil, out, nil
	}

	rs := status.GetRunStatus(s.base.RunsRoot, input.RunID)
	out.RunID = rs.RunID
	out.NextPhase = rs.NextPhase
	out.Verdict = rs.Verdict
	for _, pi := range rs.Phases {
		if pi.Complete {
			out.CompletedPhases = append(out.CompletedPhases, int(pi.Phase))
		}
	}
	return nil, out, nil
}

// ExportReport renders a run's artifacts as JSON, markdown, or Mermaid.
func (s *Service) ExportReport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExportInput,
) (*mcp.CallToolResult, ExportOutput, error) {
	if input.RunID == "" {
		return nil, ExportOutput{}, fmt.Errorf("run_id is required")
	}
	format := input.Format
	if format == "" {
		format = "json"
	}

	switch format {
	case "json":
		run, err := export.ExportRun(s.base.RunsRoot, input.RunID)
		if err != nil {
			return nil, ExportOutput{}, err
		}
		return nil, ExportOutput{Format: format, Run: run}, nil

	case "markdown":
		run, err := export.ExportRun(s.base.RunsRoot, input.RunID)
		if err != nil {
			return nil, ExportOutput{}, err
		}
		return nil, ExportOutput{Format: format, Report: export.FormatRunReport(run)}, nil

	case "mermaid":
		diagram, err := s.mermaid(ctx, input.RunID)
		if err != nil {
			return nil, ExportOutput{}, err
		}
		return nil, ExportOutput{Format: format, Report: diagram}, nil

	default:
		return nil, ExportOutput{}, fmt.Errorf("unknown format %q (json, markdown, mermaid)", input.Format)
	}
}

// mermaid rebuilds the agent graph from the collected batch and renders it.
// Conflict links are included when detection has run.
func (s *Service) mermaid(ctx context.Context, runID string) (string, error) {
	dir := s.runDir(runID)
	batch, err := dir.LoadBatch()
	if err != nil {
		return "", fmt.Errorf("load batch: %w", err)
	}
	var conflicts []conflict.Conflict
	if ca, err := dir.LoadConflicts(); err == nil {
		conflicts = ca.Conflicts
	}

	store := graph.NewMemStore()
	defer store.Close()
	if err := graph.NewIngestor(store, graph.WithLogger(s.log)).Ingest(ctx, batch, nil); err != nil {
		return "", err
	}
	return export.GenerateMermaid(ctx, store, conflicts)
}
