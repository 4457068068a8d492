// Package intake is the submission transport: a JSON-RPC 2.0 protocol over
// HTTP through which worker agents hand their outputs to the orchestrator
// and clients watch a run's progress over SSE.
package intake

import (
	"time"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// SubmissionState is the lifecycle state of a stored submission.
type SubmissionState string

const (
	// StateReceived means the output parsed and passed single-output
	// validation; batch-level checks happen at collection.
	StateReceived SubmissionState = "received"
	// StateAccepted means the output made it into a collected batch.
	StateAccepted SubmissionState = "accepted"
	// StateRejected means the output failed validation.
	StateRejected SubmissionState = "rejected"
)

// IsTerminal returns true once a submission can no longer change state.
func (s SubmissionState) IsTerminal() bool {
	return s == StateAccepted || s == StateRejected
}

// Submission is one agent output as stored by the intake service.
type Submission struct {
	ID         string              `json:"id"`
	RunID      string              `json:"runId,omitempty"`
	AgentID    string              `json:"agentId"`
	State      SubmissionState     `json:"state"`
	Output     *output.AgentOutput `json:"output,omitempty"`
	Error      string              `json:"error,omitempty"`
	ReceivedAt time.Time           `json:"receivedAt"`
}

// ServiceDescriptor is the self-describing manifest served at the
// well-known endpoint.
type ServiceDescriptor struct {
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Version         string       `json:"version"`
	ProtocolVersion string       `json:"protocolVersion"`
	Methods         []string     `json:"methods"`
	Capabilities    Capabilities `json:"capabilities"`
}

// Capabilities declares which optional protocol features the server supports.
type Capabilities struct {
	Streaming bool `json:"streaming"`
}

// DefaultDescriptor describes a full intake server.
func DefaultDescriptor(name, version string) ServiceDescriptor {
	return ServiceDescriptor{
		Name:            name,
		Version:         version,
		ProtocolVersion: ProtocolVersion,
		Methods: []string{
			MethodSubmit,
			MethodGetSubmission,
			MethodListSubmissions,
			MethodRunStatus,
			MethodSubscribeRun,
		},
		Capabilities: Capabilities{Streaming: true},
	}
}

// --- Request / Response Types ---

// SubmitRequest hands one agent output to the orchestrator.
type SubmitRequest struct {
	RunID  string             `json:"runId,omitempty"`
	Output output.AgentOutput `json:"output"`
}

// GetSubmissionRequest retrieves a submission. An empty ID asks the serving
// side for its current submission: replay workers serve exactly one, the
// orchestrator service requires an ID.
type GetSubmissionRequest struct {
	ID string `json:"id,omitempty"`
}

// ListSubmissionsRequest queries submissions with filtering and pagination.
type ListSubmissionsRequest struct {
	RunID     string `json:"runId,omitempty"`
	AgentID   string `json:"agentId,omitempty"`
	State     string `json:"state,omitempty"`
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

// ListSubmissionsResponse is the paginated response for submission/list.
type ListSubmissionsResponse struct {
	Submissions   []Submission `json:"submissions"`
	TotalSize     int          `json:"totalSize"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

// RunStatusRequest asks where a run currently stands.
type RunStatusRequest struct {
	RunID string `json:"runId"`
}

// RunStatus reports a run's current phase and artifacts.
type RunStatus struct {
	RunID       string    `json:"runId"`
	Phase       string    `json:"phase"`
	Artifacts   []string  `json:"artifacts,omitempty"`
	Submissions int       `json:"submissions"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// SubscribeRunRequest opens an SSE stream of progress events for a run.
type SubscribeRunRequest struct {
	RunID string `json:"runId"`
}

// ProgressEvent is one pipeline progress tick.
type ProgressEvent struct {
	RunID   string    `json:"runId,omitempty"`
	Phase   string    `json:"phase"`
	Message string    `json:"message,omitempty"`
	Dropped int       `json:"dropped,omitempty"`
	At      time.Time `json:"at,omitzero"`
}
