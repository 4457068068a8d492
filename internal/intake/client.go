package intake

import "context"

// Client is the interface for talking to an intake server or a worker.
type Client interface {
	// Submit hands an agent output to the server and returns the stored
	// submission, including its validation state.
	Submit(ctx context.Context, endpoint string, req SubmitRequest) (*Submission, error)

	// GetSubmission retrieves a submission by ID, or a worker's current
	// submission when the ID is empty.
	GetSubmission(ctx context.Context, endpoint string, req GetSubmissionRequest) (*Submission, error)

	// ListSubmissions queries submissions from the server.
	ListSubmissions(ctx context.Context, endpoint string, req ListSubmissionsRequest) (*ListSubmissionsResponse, error)

	// RunStatus reports where a run currently stands.
	RunStatus(ctx context.Context, endpoint string, req RunStatusRequest) (*RunStatus, error)

	// SubscribeRun opens an SSE stream of progress events for a run.
	SubscribeRun(ctx context.Context, endpoint string, runID string) (<-chan StreamEvent, error)

	// Discover fetches the ServiceDescriptor from the well-known URI.
	Discover(ctx context.Context, baseURL string) (*ServiceDescriptor, error)
}

// StreamEvent is a typed event received from an SSE subscription.
type StreamEvent struct {
	// Exactly one of these is set.
	Progress   *ProgressEvent `json:"progress,omitempty"`
	Run        *RunStatus     `json:"run,omitempty"`
	Submission *Submission    `json:"submission,omitempty"`

	// Err is set if the stream encountered an error.
	Err error `json:"-"`
}
