package intake

import (
	"context"
	"errors"
	"net/http"
)

// ErrNotFound marks lookups that missed. Handlers wrap it so the HTTP layer
// can answer with the matching JSON-RPC code.
var ErrNotFound = errors.New("not found")

// ErrUnsupported marks methods a serving side does not implement, such as
// submission/submit on a replay worker.
var ErrUnsupported = errors.New("method not supported")

// Handler processes incoming intake requests.
type Handler interface {
	// HandleSubmit stores an agent output and returns the submission record.
	HandleSubmit(ctx context.Context, req SubmitRequest) (*Submission, error)

	// HandleGetSubmission returns a stored submission.
	HandleGetSubmission(ctx context.Context, req GetSubmissionRequest) (*Submission, error)

	// HandleListSubmissions returns submissions matching the filter.
	HandleListSubmissions(ctx context.Context, req ListSubmissionsRequest) (*ListSubmissionsResponse, error)

	// HandleRunStatus reports a run's current phase.
	HandleRunStatus(ctx context.Context, req RunStatusRequest) (*RunStatus, error)

	// HandleSubscribeRun returns a stream of events for a run. The channel
	// closes when the run finishes or ctx is cancelled.
	HandleSubscribeRun(ctx context.Context, req SubscribeRunRequest) (<-chan StreamEvent, error)
}

// Server exposes a Handler over HTTP.
type Server struct {
	descriptor ServiceDescriptor
	handler    Handler
	http       *http.Server
}

// NewServer creates an intake server.
func NewServer(descriptor ServiceDescriptor, handler Handler) *Server {
	return &Server{
		descriptor: descriptor,
		handler:    handler,
	}
}
