package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/resolve"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// seedFullRun writes a complete artifact set: two agents, one resolved
// dependency conflict, a clean merge, a passing gate.
func seedFullRun(t *testing.T, runsRoot, runID string) {
	t.Helper()
	dir := orchestrator.NewRunDir(runsRoot, runID)

	require.NoError(t, dir.SaveBatch(&output.Batch{RunID: runID, Outputs: []output.AgentOutput{
		{
			AgentID:      "agent-models",
			Priority:     5,
			Files:        []output.FileChange{{Path: "app/models.py", Op: output.OpCreate, Content: "class User:\n    pass\n"}},
			Dependencies: map[string]string{"pandas": "2.0.0"},
		},
		{
			AgentID:  "agent-views",
			Files:    []output.FileChange{{Path: "app/views.py", Op: output.OpCreate, Content: "def index():\n    pass\n"}},
			Requires: []string{"agent-models"},
		},
	}}))

	conflicts := []conflict.Conflict{{
		ID:       "dependency:pandas",
		Kind:     conflict.KindDependency,
		Agents:   []string{"agent-models", "agent-views"},
		Severity: conflict.SeverityCritical,
		Subject:  "pandas",
		Detail:   "pandas required at 2.0.0 vs 1.5.2",
	}}
	require.NoError(t, dir.SaveConflicts(orchestrator.ConflictsArtifact{
		RunID:     runID,
		Summary:   conflict.Summarize(conflicts),
		Conflicts: conflicts,
	}))

	require.NoError(t, dir.SaveResolutions(orchestrator.ResolutionsArtifact{
		RunID: runID,
		Resolutions: []resolve.Resolution{{
			ConflictID: "dependency:pandas",
			Strategy:   resolve.StrategyLatestVersion,
			Action:     "pin pandas to 2.0.0",
			Value:      "2.0.0",
		}},
	}))

	snap := merge.NewSnapshot(map[string]string{
		"app/models.py": "class User:\n    pass\n",
		"app/views.py":  "def index():\n    pass\n",
	})
	snap.Version = 2
	require.NoError(t, dir.SaveMergeResult(&merge.Result{
		MergedFiles:        []string{"app/models.py", "app/views.py"},
		Order:              []string{"agent-models", "agent-views"},
		VerificationStatus: merge.VerificationPass,
		Snapshot:           snap,
		Dependencies:       map[string]string{"pandas": "2.0.0"},
	}))

	require.NoError(t, dir.SaveVerification(&verify.GateResult{Status: verify.StatusPass}))
}

func TestExportRun_FullRun(t *testing.T) {
	root := t.TempDir()
	seedFullRun(t, root, "run-a")

	export, err := ExportRun(root, "run-a")
	require.NoError(t, err)

	assert.Equal(t, "run-a", export.RunID)
	assert.NotEmpty(t, export.ExportedAt)
	assert.Equal(t, "merged and verified", export.Verdict)
	require.Len(t, export.Phases, 5)
	assert.Equal(t, "collect", export.Phases[0].Name)
	assert.Equal(t, "complete", export.Phases[4].Status)
	assert.NotEmpty(t, export.Phases[4].Artifact)

	require.Len(t, export.Agents, 2)
	models := export.Agents[0]
	assert.Equal(t, "agent-models", models.AgentID)
	assert.Equal(t, 5, models.Priority)
	assert.Equal(t, []string{"CREATE app/models.py"}, models.FileActions)
	assert.Equal(t, "2.0.0", models.Packages["pandas"])
	assert.Equal(t, []string{"agent-models"}, export.Agents[1].Requires)

	require.Len(t, export.Conflicts, 1)
	assert.Equal(t, conflict.KindDependency, export.Conflicts[0].Kind)
	require.Len(t, export.Resolutions, 1)
	assert.Equal(t, resolve.StrategyLatestVersion, export.Resolutions[0].Strategy)

	require.NotNil(t, export.Merge)
	assert.Equal(t, 0, export.Merge.Unresolved)
	assert.Equal(t, 2, export.Merge.SnapshotVersion)
	assert.Equal(t, merge.VerificationPass, export.Merge.VerificationStatus)

	require.NotNil(t, export.Verification)
	assert.Equal(t, verify.StatusPass, export.Verification.Status)
}

func TestExportRun_PartialRun(t *testing.T) {
	root := t.TempDir()
	dir := orchestrator.NewRunDir(root, "run-b")
	require.NoError(t, dir.SaveBatch(&output.Batch{RunID: "run-b", Outputs: []output.AgentOutput{
		{AgentID: "agent-a", Files: []output.FileChange{{Path: "a.py", Op: output.OpCreate, Content: "x = 1\n"}}},
	}}))

	export, err := ExportRun(root, "run-b")
	require.NoError(t, err)

	assert.Equal(t, "in progress", export.Verdict)
	assert.Equal(t, "complete", export.Phases[0].Status)
	assert.Equal(t, "pending", export.Phases[1].Status)
	require.Len(t, export.Agents, 1)
	assert.Empty(t, export.Conflicts)
	assert.Nil(t, export.Merge)
	assert.Nil(t, export.Verification)
}

func TestExportRun_UnknownRun(t *testing.T) {
	_, err := ExportRun(t.TempDir(), "run-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no artifacts")
}
