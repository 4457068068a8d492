package output

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher returns canned outputs keyed by endpoint.
type stubFetcher struct {
	outputs map[string]*AgentOutput
	errs    map[string]error
}

func (s *stubFetcher) Fetch(_ context.Context, endpoint string) (*AgentOutput, error) {
	if err, ok := s.errs[endpoint]; ok {
		return nil, err
	}
	out, ok := s.outputs[endpoint]
	if !ok {
		return nil, fmt.Errorf("no submission at %s", endpoint)
	}
	return out, nil
}

func TestCollector_FromJSON_BareArray(t *testing.T) {
	raw := `[
		{"agent_id": "agent-a", "modified_files": ["src/auth.py"]},
		{"agent_id": "agent-b", "modified_files": [{"path": "src/db.py", "ranges": [{"start": 3, "end": 9}]}]}
	]`

	batch, err := NewCollector(nil, nil).FromJSON([]byte(raw))

	require.NoError(t, err)
	require.Len(t, batch.Outputs, 2)
	assert.Equal(t, []string{"agent-a", "agent-b"}, batch.AgentIDs())
}

func TestCollector_FromJSON_WrappedForm(t *testing.T) {
	raw := `{"run_id": "run-7", "outputs": [{"agent_id": "agent-a", "modified_files": ["a.py"]}]}`

	batch, err := NewCollector(nil, nil).FromJSON([]byte(raw))

	require.NoError(t, err)
	assert.Equal(t, "run-7", batch.RunID)
	require.Len(t, batch.Outputs, 1)
}

func TestCollector_FromJSON_Malformed(t *testing.T) {
	_, err := NewCollector(nil, nil).FromJSON([]byte(`{"outputs": 12}`))

	var incomplete *IncompleteOutputError
	require.ErrorAs(t, err, &incomplete)
}

func TestCollector_FromEndpoints_AllWorkers(t *testing.T) {
	fetcher := &stubFetcher{outputs: map[string]*AgentOutput{
		"http://127.0.0.1:9100": {AgentID: "agent-a", Files: []FileChange{{Path: "a.py"}}},
		"http://127.0.0.1:9101": {AgentID: "agent-b", Files: []FileChange{{Path: "b.py"}}},
	}}
	workers := []Worker{
		{AgentID: "agent-a", Endpoint: "http://127.0.0.1:9100"},
		{AgentID: "agent-b", Endpoint: "http://127.0.0.1:9101"},
	}

	batch, err := NewCollector(fetcher, nil).FromEndpoints(context.Background(), "run-1", workers)

	require.NoError(t, err)
	assert.Equal(t, "run-1", batch.RunID)
	assert.Equal(t, []string{"agent-a", "agent-b"}, batch.AgentIDs())
}

func TestCollector_FromEndpoints_UnreachableWorkerFailsFast(t *testing.T) {
	fetcher := &stubFetcher{
		outputs: map[string]*AgentOutput{
			"http://127.0.0.1:9100": {AgentID: "agent-a", Files: []FileChange{{Path: "a.py"}}},
		},
		errs: map[string]error{"http://127.0.0.1:9101": fmt.Errorf("connection refused")},
	}
	workers := []Worker{
		{AgentID: "agent-a", Endpoint: "http://127.0.0.1:9100"},
		{AgentID: "agent-b", Endpoint: "http://127.0.0.1:9101"},
	}

	_, err := NewCollector(fetcher, nil).FromEndpoints(context.Background(), "run-1", workers)

	var incomplete *IncompleteOutputError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "agent-b", incomplete.AgentID)
}

func TestCollector_FromEndpoints_IdentityMismatch(t *testing.T) {
	fetcher := &stubFetcher{outputs: map[string]*AgentOutput{
		"http://127.0.0.1:9100": {AgentID: "agent-x", Files: []FileChange{{Path: "a.py"}}},
	}}
	workers := []Worker{{AgentID: "agent-a", Endpoint: "http://127.0.0.1:9100"}}

	_, err := NewCollector(fetcher, nil).FromEndpoints(context.Background(), "run-1", workers)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `answered as "agent-x"`)
}

func TestCollector_FromEndpoints_NoWorkers(t *testing.T) {
	_, err := NewCollector(&stubFetcher{}, nil).FromEndpoints(context.Background(), "run-1", nil)

	var incomplete *IncompleteOutputError
	require.ErrorAs(t, err, &incomplete)
}
