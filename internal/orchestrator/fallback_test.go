package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// runThrough advances a basic pipeline up to but not including the given
// phase, so a single fallback phase can be exercised in isolation.
func runThrough(t *testing.T, p *Pipeline, until Phase) {
	t.Helper()
	for phase := PhaseCollect; phase < until; phase++ {
		_, err := p.RunPhase(context.Background(), phase)
		require.NoError(t, err)
	}
}

func TestFallback_CollectNotesDegradationWhenWorkersConfigured(t *testing.T) {
	cfg := basicConfig(t, disjointBatch())
	cfg.Workers = []output.Worker{{AgentID: "agent-models", Endpoint: "http://127.0.0.1:9"}}
	p := NewPipeline(cfg, nil)
	t.Cleanup(p.Close)

	res, err := p.RunPhase(context.Background(), PhaseCollect)
	require.NoError(t, err)

	joined := strings.Join(res.Warnings, "\n")
	assert.Contains(t, joined, "worker intake unavailable")
	assert.Contains(t, joined, "input file")
}

func TestFallback_CollectSilentWithoutWorkers(t *testing.T) {
	p := newBasicPipeline(t, disjointBatch())

	res, err := p.RunPhase(context.Background(), PhaseCollect)
	require.NoError(t, err)

	// Nothing was configured, so nothing is degraded.
	assert.Empty(t, res.Warnings)
}

func TestFallback_DetectNotesDeclaredRanges(t *testing.T) {
	p := newBasicPipeline(t, disjointBatch())
	runThrough(t, p, PhaseDetect)

	res, err := p.RunPhase(context.Background(), PhaseDetect)
	require.NoError(t, err)

	assert.Contains(t, strings.Join(res.Warnings, "\n"), "declared ranges")
}

func TestFallback_ResolveHasNoDegradation(t *testing.T) {
	p := newBasicPipeline(t, disjointBatch())
	runThrough(t, p, PhaseResolve)

	res, err := p.RunPhase(context.Background(), PhaseResolve)
	require.NoError(t, err)

	assert.Empty(t, res.Warnings)
}

func TestFallback_MergeAndVerifyNotes(t *testing.T) {
	p := newBasicPipeline(t, disjointBatch())
	runThrough(t, p, PhaseMerge)

	mres, err := p.RunPhase(context.Background(), PhaseMerge)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(mres.Warnings, "\n"), "declared dependencies only")

	vres, err := p.RunPhase(context.Background(), PhaseVerify)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(vres.Warnings, "\n"), "regex surface counting")
}

func TestFallback_UnknownPhase(t *testing.T) {
	p := newBasicPipeline(t, disjointBatch())

	_, err := p.fallback.Execute(context.Background(), Phase(9))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown phase")
}
