package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// seedRun writes artifacts for the first n phases of a run.
func seedRun(t *testing.T, runsRoot, runID string, n int) orchestrator.RunDir {
	t.Helper()
	dir := orchestrator.NewRunDir(runsRoot, runID)

	if n > 0 {
		require.NoError(t, dir.SaveBatch(&output.Batch{RunID: runID, Outputs: []output.AgentOutput{
			{AgentID: "agent-a", Files: []output.FileChange{{Path: "a.py", Op: output.OpCreate, Content: "x = 1\n"}}},
		}}))
	}
	if n > 1 {
		require.NoError(t, dir.SaveConflicts(orchestrator.ConflictsArtifact{RunID: runID}))
	}
	if n > 2 {
		require.NoError(t, dir.SaveResolutions(orchestrator.ResolutionsArtifact{RunID: runID}))
	}
	if n > 3 {
		require.NoError(t, dir.SaveMergeResult(&merge.Result{
			MergedFiles:        []string{"a.py"},
			VerificationStatus: merge.VerificationPass,
			Snapshot:           merge.NewSnapshot(map[string]string{"a.py": "x = 1\n"}),
		}))
	}
	if n > 4 {
		require.NoError(t, dir.SaveVerification(&verify.GateResult{Status: verify.StatusPass}))
	}
	return dir
}

func TestScanCompletedPhases_EmptyDir(t *testing.T) {
	dir := orchestrator.NewRunDir(t.TempDir(), "run-empty")
	assert.Empty(t, ScanCompletedPhases(dir))
}

func TestScanCompletedPhases_Partial(t *testing.T) {
	root := t.TempDir()
	dir := seedRun(t, root, "run-a", 3)

	completed := ScanCompletedPhases(dir)
	assert.Equal(t, []orchestrator.Phase{
		orchestrator.PhaseCollect,
		orchestrator.PhaseDetect,
		orchestrator.PhaseResolve,
	}, completed)
}

func TestNextPhase(t *testing.T) {
	tests := []struct {
		name      string
		completed []orchestrator.Phase
		want      int
	}{
		{"nothing done", nil, 0},
		{"collect done", []orchestrator.Phase{orchestrator.PhaseCollect}, 1},
		{"through resolve", []orchestrator.Phase{0, 1, 2}, 3},
		{"all done", []orchestrator.Phase{0, 1, 2, 3, 4}, -1},
		{"gap counts from furthest", []orchestrator.Phase{orchestrator.PhaseCollect, orchestrator.PhaseMerge}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextPhase(tt.completed))
		})
	}
}

func TestGetRunStatus_PartialRun(t *testing.T) {
	root := t.TempDir()
	seedRun(t, root, "run-a", 2)

	rs := GetRunStatus(root, "run-a")

	assert.Equal(t, "run-a", rs.RunID)
	require.Len(t, rs.Phases, 5)
	assert.True(t, rs.Phases[0].Complete)
	assert.True(t, rs.Phases[1].Complete)
	assert.False(t, rs.Phases[2].Complete)
	assert.Equal(t, "collect", rs.Phases[0].Name)
	assert.NotEmpty(t, rs.Phases[0].Artifact)
	assert.Empty(t, rs.Phases[2].Artifact)
	assert.Equal(t, 2, rs.NextPhase)
	assert.Equal(t, "in progress", rs.Verdict)
}

func TestGetRunStatus_CompleteRun(t *testing.T) {
	root := t.TempDir()
	seedRun(t, root, "run-a", 5)

	rs := GetRunStatus(root, "run-a")

	assert.Equal(t, -1, rs.NextPhase)
	assert.Equal(t, "merged and verified", rs.Verdict)
}

func TestGetRunStatus_FailedVerification(t *testing.T) {
	root := t.TempDir()
	dir := seedRun(t, root, "run-a", 4)
	require.NoError(t, dir.SaveVerification(&verify.GateResult{
		Status:     verify.StatusFail,
		Violations: []verify.Violation{{Check: "battery", Subject: "smoke", Detail: "exit status 1"}},
	}))

	rs := GetRunStatus(root, "run-a")
	assert.Equal(t, "verification failed", rs.Verdict)
}

func TestGetRunStatus_UnresolvedConflicts(t *testing.T) {
	root := t.TempDir()
	dir := seedRun(t, root, "run-a", 3)
	require.NoError(t, dir.SaveMergeResult(&merge.Result{
		VerificationStatus: merge.VerificationPass,
		UnresolvedConflicts: []conflict.Conflict{{
			ID:       "semantic:authentication_method",
			Kind:     conflict.KindSemantic,
			Subject:  "authentication_method",
			Severity: conflict.SeverityCritical,
		}},
	}))

	rs := GetRunStatus(root, "run-a")
	assert.Equal(t, "merged, unresolved conflicts", rs.Verdict)
}

func TestGetRunStatus_MergedNotVerified(t *testing.T) {
	root := t.TempDir()
	seedRun(t, root, "run-a", 4)

	rs := GetRunStatus(root, "run-a")
	assert.Equal(t, 4, rs.NextPhase)
	assert.Equal(t, "merged, not verified", rs.Verdict)
}

func TestGetRunStatus_VerifiedWithEscalations(t *testing.T) {
	root := t.TempDir()
	dir := seedRun(t, root, "run-a", 3)
	require.NoError(t, dir.SaveMergeResult(&merge.Result{
		VerificationStatus: merge.VerificationPass,
		UnresolvedConflicts: []conflict.Conflict{{
			ID:   "semantic:authentication_method",
			Kind: conflict.KindSemantic,
		}},
	}))
	require.NoError(t, dir.SaveVerification(&verify.GateResult{Status: verify.StatusPass}))

	rs := GetRunStatus(root, "run-a")
	assert.Equal(t, "verified, unresolved conflicts remain", rs.Verdict)
}

func TestGetRunStatus_RolledBackAgents(t *testing.T) {
	root := t.TempDir()
	dir := seedRun(t, root, "run-a", 3)
	require.NoError(t, dir.SaveMergeResult(&merge.Result{
		VerificationStatus: merge.VerificationFail,
		SkippedAgents:      []string{"agent-b"},
	}))

	rs := GetRunStatus(root, "run-a")
	assert.Equal(t, "merged with rolled-back agents", rs.Verdict)
}

func TestListRuns(t *testing.T) {
	root := t.TempDir()
	seedRun(t, root, "run-b", 1)
	seedRun(t, root, "run-a", 5)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	runs := ListRuns(root)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
	assert.Equal(t, -1, runs[0].NextPhase)
	assert.Equal(t, 1, runs[1].NextPhase)
}

func TestListRuns_MissingRoot(t *testing.T) {
	assert.Nil(t, ListRuns(filepath.Join(t.TempDir(), "absent")))
}
