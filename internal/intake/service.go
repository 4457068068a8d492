package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// StatusFunc answers run/status. The serve wiring plugs in the artifact
// scanner here; without one the service synthesizes a collect-phase status
// from its own store.
type StatusFunc func(ctx context.Context, runID string) (*RunStatus, error)

// SubscribeFunc answers run/subscribe with a stream of events.
type SubscribeFunc func(ctx context.Context, runID string) (<-chan StreamEvent, error)

// Service is the store-backed Handler the orchestrator runs. Submissions are
// validated on the way in so workers get immediate feedback; batch-level
// checks still happen at collection.
type Service struct {
	store     *SubmissionStore
	status    StatusFunc
	subscribe SubscribeFunc
	log       *zap.Logger
}

var _ Handler = (*Service)(nil)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRunStatus plugs in the run/status answer.
func WithRunStatus(fn StatusFunc) ServiceOption {
	return func(s *Service) { s.status = fn }
}

// WithRunEvents plugs in the run/subscribe stream.
func WithRunEvents(fn SubscribeFunc) ServiceOption {
	return func(s *Service) { s.subscribe = fn }
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// NewService creates a Service. A nil store gets a fresh in-memory one.
func NewService(store *SubmissionStore, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		log:   zap.NewNop(),
	}
	if s.store == nil {
		s.store = NewSubmissionStore()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying submission store for collector wiring.
func (s *Service) Store() *SubmissionStore {
	return s.store
}

// HandleSubmit validates and stores one agent output. A resubmission from
// the same agent for the same run replaces the earlier record.
func (s *Service) HandleSubmit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	out := req.Output
	output.Normalize(&out)

	state := StateReceived
	errMsg := ""
	if err := output.Validate(&out); err != nil {
		state = StateRejected
		errMsg = err.Error()
	}
	now := time.Now().UTC()

	if out.AgentID != "" {
		if prev := s.store.Latest(req.RunID, out.AgentID); prev != nil {
			err := s.store.Update(prev.ID, func(sub *Submission) {
				sub.State = state
				sub.Output = &out
				sub.Error = errMsg
				sub.ReceivedAt = now
			})
			if err != nil {
				return nil, err
			}
			s.log.Info("submission replaced",
				zap.String("run", req.RunID),
				zap.String("agent", out.AgentID),
				zap.String("state", string(state)))
			return s.store.Get(prev.ID)
		}
	}

	sub := Submission{
		ID:         NewSubmissionID(),
		RunID:      req.RunID,
		AgentID:    out.AgentID,
		State:      state,
		Output:     &out,
		Error:      errMsg,
		ReceivedAt: now,
	}
	if err := s.store.Create(sub); err != nil {
		return nil, err
	}

	s.log.Info("submission received",
		zap.String("run", req.RunID),
		zap.String("agent", out.AgentID),
		zap.String("state", string(state)),
		zap.Int("files", len(out.Files)))
	return &sub, nil
}

// HandleGetSubmission returns a stored submission by ID.
func (s *Service) HandleGetSubmission(ctx context.Context, req GetSubmissionRequest) (*Submission, error) {
	if req.ID == "" {
		return nil, errors.New("submission id required")
	}
	return s.store.Get(req.ID)
}

// HandleListSubmissions returns submissions matching the filter.
func (s *Service) HandleListSubmissions(ctx context.Context, req ListSubmissionsRequest) (*ListSubmissionsResponse, error) {
	return s.store.List(req)
}

// HandleRunStatus reports where a run stands. With no StatusFunc wired the
// answer comes from the store alone: the run is collecting until something
// downstream says otherwise.
func (s *Service) HandleRunStatus(ctx context.Context, req RunStatusRequest) (*RunStatus, error) {
	if s.status != nil {
		return s.status(ctx, req.RunID)
	}

	resp, err := s.store.List(ListSubmissionsRequest{RunID: req.RunID})
	if err != nil {
		return nil, err
	}
	if resp.TotalSize == 0 {
		return nil, fmt.Errorf("run %q: %w", req.RunID, ErrNotFound)
	}

	status := &RunStatus{
		RunID:       req.RunID,
		Phase:       "collect",
		Submissions: resp.TotalSize,
	}
	for _, sub := range resp.Submissions {
		if sub.ReceivedAt.After(status.UpdatedAt) {
			status.UpdatedAt = sub.ReceivedAt
		}
	}
	return status, nil
}

// HandleSubscribeRun returns the event stream for a run.
func (s *Service) HandleSubscribeRun(ctx context.Context, req SubscribeRunRequest) (<-chan StreamEvent, error) {
	if s.subscribe == nil {
		return nil, fmt.Errorf("run/subscribe: %w", ErrUnsupported)
	}
	return s.subscribe(ctx, req.RunID)
}
