package mcptools

import (
	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/export"
	"github.com/dusk-indust/orchestrate/internal/resolve"
)

// --- MCP Tool Input/Output Types ---
// These structs define the JSON schema for each MCP tool.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// CollectInput is the input for the collect_outputs MCP tool.
type CollectInput struct {
	RunID     string `json:"run_id" jsonschema:"run identifier; artifacts land under <runs root>/<run_id>"`
	InputFile string `json:"input_file,omitempty" jsonschema:"agent outputs JSON file to collect from (default: the configured input file)"`
}

// CollectOutput is the result of the collect_outputs MCP tool.
type CollectOutput struct {
	Agents   []string `json:"agents"`
	Artifact string   `json:"artifact"`
	Warnings []string `json:"warnings,omitempty"`
}

// DetectInput is the input for the detect_conflicts MCP tool.
type DetectInput struct {
	RunID string `json:"run_id" jsonschema:"run identifier of a collected run"`
}

// DetectOutput is the result of the detect_conflicts MCP tool.
type DetectOutput struct {
	Summary   conflict.Summary `json:"summary"`
	Artifacts []string         `json:"artifacts"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// ResolveInput is the input for the select_resolutions MCP tool.
type ResolveInput struct {
	RunID string `json:"run_id" jsonschema:"run identifier of a detected run"`
}

// ResolveOutput is the result of the select_resolutions MCP tool.
type ResolveOutput struct {
	Total      int                      `json:"total"`
	ByStrategy map[resolve.Strategy]int `json:"by_strategy,omitempty"`
	Escalated  []string                 `json:"escalated,omitempty"`
	Artifact   string                   `json:"artifact"`
}

// MergeInput is the input for the run_merge MCP tool.
type MergeInput struct {
	RunID string `json:"run_id" jsonschema:"run identifier of a resolved run"`
}

// MergeOutput is the result of the run_merge MCP tool.
type MergeOutput struct {
	Status             string   `json:"status"` // "completed" or "failed"
	Message            string   `json:"message,omitempty"`
	MergedFiles        []string `json:"merged_files,omitempty"`
	SkippedAgents      []string `json:"skipped_agents,omitempty"`
	Unresolved         int      `json:"unresolved"`
	VerificationStatus string   `json:"verification_status,omitempty"`
	GateStatus         string   `json:"gate_status,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// StatusInput is the input for the merge_status MCP tool.
type StatusInput struct {
	RunID string `json:"run_id,omitempty" jsonschema:"run identifier; empty lists every run"`
}

// StatusOutput is the result of the merge_status MCP tool.
type StatusOutput struct {
	RunID           string       `json:"run_id,omitempty"`
	CompletedPhases []int        `json:"completed_phases,omitempty"`
	NextPhase       int          `json:"next_phase"`
	Verdict         string       `json:"verdict,omitempty"`
	Capability      string       `json:"capability"`
	Runs            []RunSummary `json:"runs,omitempty"`
}

// RunSummary is a brief overview of one run.
type RunSummary struct {
	RunID     string `json:"run_id"`
	NextPhase int    `json:"next_phase"`
	Verdict   string `json:"verdict"`
}

// ExportInput is the input for the export_report MCP tool.
type ExportInput struct {
	RunID  string `json:"run_id" jsonschema:"run identifier"`
	Format string `json:"format,omitempty" jsonschema:"json, markdown, or mermaid (default: json)"`
}

// ExportOutput is the result of the export_report MCP tool.
type ExportOutput struct {
	Format string            `json:"format"`
	Run    *export.RunExport `json:"run,omitempty"`
	Report string            `json:"report,omitempty"`
}
