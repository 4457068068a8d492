package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReporter_EmitAndSubscribe(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	ch := pr.Subscribe()
	want := ProgressEvent{
		Phase:   PhaseDetect,
		Subject: "detect",
		Status:  ProgressWorking,
		Message: "scanning",
	}

	pr.Emit(want)

	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestProgressReporter_EmitWhenFull_DoesNotBlock(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	// The internal channel buffer is 64. Emitting 100 events must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.Emit(ProgressEvent{
				Phase:   PhaseMerge,
				Subject: "merge",
				Status:  ProgressWorking,
			})
		}
		close(done)
	}()

	select {
	case <-done:
		// All 100 emits returned without blocking.
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked when the channel was full")
	}

	// 64 fit the buffer; the rest were dropped and counted.
	assert.Equal(t, int64(36), pr.Dropped())
}

func TestProgressReporter_Close_ChannelClosed(t *testing.T) {
	pr := NewProgressReporter()
	ch := pr.Subscribe()

	pr.Emit(ProgressEvent{
		Phase:   PhaseVerify,
		Subject: "verify",
		Status:  ProgressComplete,
	})
	pr.Close()

	// Range over the channel; it must terminate because Close was called.
	var received []ProgressEvent
	for ev := range ch {
		received = append(received, ev)
	}
	require.Len(t, received, 1)
	assert.Equal(t, ProgressComplete, received[0].Status)

	// Closing again and emitting into a closed reporter must not panic.
	pr.Close()
	pr.Emit(ProgressEvent{Phase: PhaseVerify, Subject: "verify"})
	assert.Equal(t, int64(1), pr.Dropped())
}

func TestFormatProgress_AllStatuses(t *testing.T) {
	tests := []struct {
		name   string
		event  ProgressEvent
		expect string
	}{
		{
			name:   "pending",
			event:  ProgressEvent{Subject: "conflicts", Status: ProgressPending},
			expect: "  ○ conflicts (pending)",
		},
		{
			name:   "working",
			event:  ProgressEvent{Subject: "conflicts", Status: ProgressWorking},
			expect: "  ● conflicts...",
		},
		{
			name:   "complete",
			event:  ProgressEvent{Subject: "conflicts", Status: ProgressComplete},
			expect: "  ✓ conflicts complete",
		},
		{
			name:   "failed",
			event:  ProgressEvent{Subject: "conflicts", Status: ProgressFailed, Message: "timeout"},
			expect: "  ✗ conflicts failed: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatProgress(tt.event)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestFormatPhaseHeader(t *testing.T) {
	got := FormatPhaseHeader("run-42", PhaseMerge)
	assert.Equal(t, "[run-42] Phase 3: merge", got)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "collect", PhaseCollect.String())
	assert.Equal(t, "detect", PhaseDetect.String())
	assert.Equal(t, "resolve", PhaseResolve.String())
	assert.Equal(t, "merge", PhaseMerge.String())
	assert.Equal(t, "verify", PhaseVerify.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
