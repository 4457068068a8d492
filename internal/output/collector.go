package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher pulls one agent's submitted output from a worker endpoint.
// The intake HTTP client implements this.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) (*AgentOutput, error)
}

// Worker names an agent and where its submission can be fetched.
type Worker struct {
	AgentID  string `json:"agent_id" yaml:"agent_id"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// Collector gathers a batch of agent outputs, from a JSON file or by pulling
// worker endpoints in parallel, and validates it before anything downstream
// runs.
type Collector struct {
	fetcher Fetcher
	log     *zap.Logger
}

// NewCollector creates a Collector. fetcher may be nil when only file-based
// collection is used; log may be nil.
func NewCollector(fetcher Fetcher, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{fetcher: fetcher, log: log}
}

// FromFile reads a batch from a JSON file. Both a bare array of outputs and
// the wrapped {"run_id": ..., "outputs": [...]} form are accepted.
func (c *Collector) FromFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read outputs: %w", err)
	}
	return c.FromJSON(data)
}

// FromJSON parses and validates a batch from raw JSON.
func (c *Collector) FromJSON(data []byte) (*Batch, error) {
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		var outputs []AgentOutput
		if arrErr := json.Unmarshal(data, &outputs); arrErr != nil {
			return nil, &IncompleteOutputError{Reason: fmt.Sprintf("malformed outputs JSON: %v", err)}
		}
		batch = Batch{Outputs: outputs}
	}

	if err := ValidateBatch(&batch); err != nil {
		return nil, err
	}

	c.log.Debug("collected batch from JSON",
		zap.Int("outputs", len(batch.Outputs)),
		zap.Strings("agents", batch.AgentIDs()))
	return &batch, nil
}

// FromEndpoints pulls every worker's submission in parallel and assembles a
// validated batch. Any unreachable worker or malformed submission aborts the
// whole collection: a merge never starts on a partial batch.
func (c *Collector) FromEndpoints(ctx context.Context, runID string, workers []Worker) (*Batch, error) {
	if c.fetcher == nil {
		return nil, fmt.Errorf("collector has no fetcher configured")
	}
	if len(workers) == 0 {
		return nil, &IncompleteOutputError{Reason: "no workers configured"}
	}

	outputs := make([]AgentOutput, len(workers))

	g, gctx := errgroup.WithContext(ctx)
	for i, w := range workers {
		g.Go(func() error {
			c.log.Debug("fetching submission",
				zap.String("agent", w.AgentID),
				zap.String("endpoint", w.Endpoint))

			out, err := c.fetcher.Fetch(gctx, w.Endpoint)
			if err != nil {
				return &IncompleteOutputError{AgentID: w.AgentID, Reason: fmt.Sprintf("fetch from %s: %v", w.Endpoint, err)}
			}
			if w.AgentID != "" && out.AgentID != w.AgentID {
				return &IncompleteOutputError{
					AgentID: w.AgentID,
					Reason:  fmt.Sprintf("endpoint %s answered as %q", w.Endpoint, out.AgentID),
				}
			}
			outputs[i] = *out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{RunID: runID, Outputs: outputs}
	if err := ValidateBatch(batch); err != nil {
		return nil, err
	}

	c.log.Info("collected batch from workers",
		zap.String("run", runID),
		zap.Int("outputs", len(batch.Outputs)))
	return batch, nil
}
