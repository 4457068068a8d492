// Package export renders a run's artifacts for consumption outside the
// pipeline: a JSON document, a markdown report, and a Mermaid diagram of the
// merge graph. Everything here reads artifacts that earlier phases wrote;
// nothing is recomputed.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/resolve"
	"github.com/dusk-indust/orchestrate/internal/status"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// RunExport is the top-level JSON export structure for one run.
type RunExport struct {
	RunID        string               `json:"run_id"`
	ExportedAt   string               `json:"exported_at"`
	Verdict      string               `json:"verdict"`
	Phases       []PhaseExport        `json:"phases"`
	Agents       []AgentExport        `json:"agents,omitempty"`
	Conflicts    []conflict.Conflict  `json:"conflicts,omitempty"`
	Resolutions  []resolve.Resolution `json:"resolutions,omitempty"`
	Merge        *MergeExport         `json:"merge,omitempty"`
	Verification *verify.GateResult   `json:"verification,omitempty"`
}

// PhaseExport describes one pipeline phase.
type PhaseExport struct {
	Phase    int    `json:"phase"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Artifact string `json:"artifact,omitempty"`
}

// AgentExport describes a single agent's submission.
type AgentExport struct {
	AgentID     string            `json:"agent_id"`
	Priority    int               `json:"priority,omitempty"`
	FileActions []string          `json:"file_actions,omitempty"`
	Requires    []string          `json:"requires,omitempty"`
	Packages    map[string]string `json:"packages,omitempty"`
}

// MergeExport is the merge result without the snapshot body. File contents
// stay in the artifact; the export carries what happened, not the tree.
type MergeExport struct {
	MergedFiles        []string          `json:"merged_files"`
	Order              []string          `json:"merge_order"`
	SkippedAgents      []string          `json:"skipped_agents,omitempty"`
	Unresolved         int               `json:"unresolved"`
	VerificationStatus string            `json:"verification_status"`
	Warnings           []string          `json:"warnings,omitempty"`
	Dependencies       map[string]string `json:"dependencies,omitempty"`
	SnapshotVersion    int               `json:"snapshot_version"`
}

// ExportRun builds a RunExport from the run's artifacts on disk. Artifacts a
// run has not produced yet are simply absent from the export, so a run can be
// exported at any point after collection.
func ExportRun(runsRoot, runID string) (*RunExport, error) {
	dir := orchestrator.NewRunDir(runsRoot, runID)
	if len(status.ScanCompletedPhases(dir)) == 0 {
		return nil, fmt.Errorf("run %s: no artifacts found under %s", runID, dir.Path)
	}

	rs := status.GetRunStatus(runsRoot, runID)
	export := &RunExport{
		RunID:      runID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Verdict:    rs.Verdict,
	}

	for _, pi := range rs.Phases {
		s := "pending"
		if pi.Complete {
			s = "complete"
		}
		export.Phases = append(export.Phases, PhaseExport{
			Phase:    int(pi.Phase),
			Name:     pi.Name,
			Status:   s,
			Artifact: pi.Artifact,
		})
	}

	if batch, err := dir.LoadBatch(); err == nil {
		for _, out := range batch.Outputs {
			export.Agents = append(export.Agents, exportAgent(out))
		}
	}
	if ca, err := dir.LoadConflicts(); err == nil {
		export.Conflicts = ca.Conflicts
	}
	if ra, err := dir.LoadResolutions(); err == nil {
		export.Resolutions = ra.Resolutions
	}
	if mr, err := dir.LoadMergeResult(); err == nil {
		export.Merge = exportMerge(mr)
	}
	if vr, err := dir.LoadVerification(); err == nil {
		export.Verification = vr
	}

	return export, nil
}

func exportAgent(out output.AgentOutput) AgentExport {
	a := AgentExport{
		AgentID:  out.AgentID,
		Priority: out.Priority,
		Requires: out.Requires,
	}
	for _, fc := range out.Files {
		a.FileActions = append(a.FileActions, fmt.Sprintf("%s %s", strings.ToUpper(string(fc.Op)), fc.Path))
	}
	if len(out.Dependencies) > 0 {
		a.Packages = out.Dependencies
	}
	return a
}

func exportMerge(mr *merge.Result) *MergeExport {
	return &MergeExport{
		MergedFiles:        mr.MergedFiles,
		Order:              mr.Order,
		SkippedAgents:      mr.SkippedAgents,
		Unresolved:         len(mr.UnresolvedConflicts),
		VerificationStatus: mr.VerificationStatus,
		Warnings:           mr.Warnings,
		Dependencies:       mr.Dependencies,
		SnapshotVersion:    mr.Snapshot.Version,
	}
}
