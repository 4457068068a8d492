package orchestrator

import (
	"fmt"
	"sync/atomic"
)

// ProgressReporter fans phase progress out to a consumer through a buffered
// channel. Emitting never blocks: events beyond the buffer are dropped and
// counted, so a slow or absent consumer cannot stall a run.
type ProgressReporter struct {
	ch      chan ProgressEvent
	closed  atomic.Bool
	dropped atomic.Int64
}

const progressBuffer = 64

// NewProgressReporter creates an open reporter.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, progressBuffer),
	}
}

// Emit delivers an event if the reporter is open and the buffer has room.
// Otherwise the event is dropped and counted.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	if pr.closed.Load() {
		pr.dropped.Add(1)
		return
	}
	select {
	case pr.ch <- event:
	default:
		pr.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because no consumer kept up.
func (pr *ProgressReporter) Dropped() int64 {
	return pr.dropped.Load()
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the event channel. Safe to call more than once; anything
// emitted afterwards counts as dropped.
func (pr *ProgressReporter) Close() {
	if pr.closed.CompareAndSwap(false, true) {
		close(pr.ch)
	}
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Subject)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", event.Subject)
	case ProgressComplete:
		return fmt.Sprintf("  ✓ %s complete", event.Subject)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Subject, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Subject)
	}
}

// FormatPhaseHeader renders the banner printed when a phase starts, such as
// "[run-7f3a] Phase 2: resolve".
func FormatPhaseHeader(runID string, phase Phase) string {
	return fmt.Sprintf("[%s] Phase %d: %s", runID, int(phase), phase)
}
