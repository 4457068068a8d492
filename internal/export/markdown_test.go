package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRunReport_FullRun(t *testing.T) {
	root := t.TempDir()
	seedFullRun(t, root, "run-a")
	export, err := ExportRun(root, "run-a")
	require.NoError(t, err)

	report := FormatRunReport(export)

	assert.Contains(t, report, "# Merge Run: run-a")
	assert.Contains(t, report, "- verdict: merged and verified")
	assert.Contains(t, report, "| 0 | collect | complete |")
	assert.Contains(t, report, "**agent-models** (priority 5): 1 file(s)")
	assert.Contains(t, report, "requires agent-models")
	assert.Contains(t, report, "- CREATE app/views.py")
	assert.Contains(t, report, "- [critical] dependency pandas: pandas required at 2.0.0 vs 1.5.2")
	assert.Contains(t, report, "| dependency:pandas | latest_version | pin pandas to 2.0.0 |")
	assert.Contains(t, report, "- merged 2 file(s), snapshot v2")
	assert.Contains(t, report, "- order: agent-models, agent-views")
	assert.Contains(t, report, "- pinned: pandas 2.0.0")
	assert.Contains(t, report, "## Verification Gate: PASSED")
}

func TestFormatRunReport_OmitsMissingSections(t *testing.T) {
	export := &RunExport{
		RunID:   "run-x",
		Verdict: "in progress",
		Phases:  []PhaseExport{{Phase: 0, Name: "collect", Status: "pending"}},
	}

	report := FormatRunReport(export)

	assert.Contains(t, report, "| 0 | collect | pending |")
	assert.NotContains(t, report, "## Agents")
	assert.NotContains(t, report, "## Conflicts")
	assert.NotContains(t, report, "## Resolutions")
	assert.NotContains(t, report, "## Merge")
	assert.NotContains(t, report, "## Verification")
}

func TestFormatRunReport_MergeWarnings(t *testing.T) {
	export := &RunExport{
		RunID:  "run-y",
		Phases: []PhaseExport{{Phase: 3, Name: "merge", Status: "complete"}},
		Merge: &MergeExport{
			MergedFiles:        []string{"a.py"},
			SkippedAgents:      []string{"agent-bad"},
			Unresolved:         1,
			VerificationStatus: "fail",
			Warnings:           []string{"verification failed after agent-bad, rolled back"},
		},
	}

	report := FormatRunReport(export)

	assert.Contains(t, report, "- rolled back: agent-bad")
	assert.Contains(t, report, "- unresolved conflicts: 1")
	assert.Contains(t, report, "- warning: verification failed after agent-bad, rolled back")
}
