// Package worker runs stand-in agent endpoints. A Replay worker serves one
// recorded output over the intake protocol, which is what collector fan-in
// tests and end-to-end runs need from the worker side.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/intake"
	"github.com/dusk-indust/orchestrate/internal/output"
)

// Compile-time interface check.
var _ intake.Handler = (*Replay)(nil)

// Replay serves a single recorded AgentOutput. It answers submission/get
// with the recording and the well-known descriptor for discovery; every
// other method is unsupported, the way a real worker would refuse to act
// as an orchestrator.
type Replay struct {
	sub    intake.Submission
	server *intake.Server
	log    *zap.Logger
}

// ReplayOption configures a Replay worker.
type ReplayOption func(*Replay)

// WithLogger sets the worker's logger.
func WithLogger(log *zap.Logger) ReplayOption {
	return func(r *Replay) { r.log = log }
}

// NewReplay creates a Replay worker serving the given output for runID.
func NewReplay(runID string, out output.AgentOutput, opts ...ReplayOption) *Replay {
	r := &Replay{
		sub: intake.Submission{
			ID:         intake.NewSubmissionID(),
			RunID:      runID,
			AgentID:    out.AgentID,
			State:      intake.StateReceived,
			Output:     &out,
			ReceivedAt: time.Now().UTC(),
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.server = intake.NewServer(replayDescriptor(out.AgentID), r)
	return r
}

// replayDescriptor advertises only what a replay worker serves. The
// capability detector requires submission/get in the method list.
func replayDescriptor(agentID string) intake.ServiceDescriptor {
	return intake.ServiceDescriptor{
		Name:            agentID,
		Description:     "replay worker",
		Version:         "1",
		ProtocolVersion: intake.ProtocolVersion,
		Methods:         []string{intake.MethodGetSubmission},
	}
}

// AgentID returns the agent this worker replays.
func (r *Replay) AgentID() string {
	return r.sub.AgentID
}

// Start serves the worker on addr. It returns immediately.
func (r *Replay) Start(ctx context.Context, addr string) error {
	return r.server.Start(ctx, addr)
}

// Stop gracefully shuts the worker down.
func (r *Replay) Stop(ctx context.Context) error {
	return r.server.Stop(ctx)
}

// Routes exposes the worker's handler, usable directly with httptest.
func (r *Replay) Routes() http.Handler {
	return r.server.Routes()
}

// HandleGetSubmission serves the recording. An empty ID asks for the
// worker's current submission, which is the only one it has.
func (r *Replay) HandleGetSubmission(_ context.Context, req intake.GetSubmissionRequest) (*intake.Submission, error) {
	if req.ID != "" && req.ID != r.sub.ID {
		return nil, fmt.Errorf("submission %q: %w", req.ID, intake.ErrNotFound)
	}
	r.log.Debug("replaying submission", zap.String("agent_id", r.sub.AgentID))
	sub := r.sub
	sub.Output = r.sub.Output.Clone()
	return &sub, nil
}

// HandleSubmit is unsupported; a worker hands outputs out, it takes none in.
func (r *Replay) HandleSubmit(context.Context, intake.SubmitRequest) (*intake.Submission, error) {
	return nil, fmt.Errorf("submission/submit: %w", intake.ErrUnsupported)
}

func (r *Replay) HandleListSubmissions(context.Context, intake.ListSubmissionsRequest) (*intake.ListSubmissionsResponse, error) {
	return nil, fmt.Errorf("submission/list: %w", intake.ErrUnsupported)
}

func (r *Replay) HandleRunStatus(context.Context, intake.RunStatusRequest) (*intake.RunStatus, error) {
	return nil, fmt.Errorf("run/status: %w", intake.ErrUnsupported)
}

func (r *Replay) HandleSubscribeRun(context.Context, intake.SubscribeRunRequest) (<-chan intake.StreamEvent, error) {
	return nil, fmt.Errorf("run/subscribe: %w", intake.ErrUnsupported)
}
