package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// Fleet starts and stops a set of replay workers as one unit, one worker
// per output in a batch.
type Fleet struct {
	mu      sync.Mutex
	workers []*Replay
	started []*Replay
}

// NewFleet builds a replay worker for every output in the batch. Nothing
// listens until StartAll.
func NewFleet(batch *output.Batch, opts ...ReplayOption) *Fleet {
	f := &Fleet{}
	for _, out := range batch.Outputs {
		f.workers = append(f.workers, NewReplay(batch.RunID, out, opts...))
	}
	return f
}

// StartAll starts every worker on sequential localhost ports beginning at
// basePort and returns the worker list in collector config shape. A start
// failure stops whatever already came up, in reverse order.
func (f *Fleet) StartAll(ctx context.Context, basePort int) ([]output.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var endpoints []output.Worker
	for i, w := range f.workers {
		addr := fmt.Sprintf("127.0.0.1:%d", basePort+i)
		if err := w.Start(ctx, addr); err != nil {
			for j := len(f.started) - 1; j >= 0; j-- {
				_ = f.started[j].Stop(ctx)
			}
			f.started = nil
			return nil, fmt.Errorf("start worker %q on %s: %w", w.AgentID(), addr, err)
		}
		f.started = append(f.started, w)
		endpoints = append(endpoints, output.Worker{
			AgentID:  w.AgentID(),
			Endpoint: "http://" + addr,
		})
	}
	return endpoints, nil
}

// StopAll gracefully stops every started worker in reverse order.
func (f *Fleet) StopAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for i := len(f.started) - 1; i >= 0; i-- {
		if err := f.started[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.started = nil
	return firstErr
}
