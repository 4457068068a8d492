package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// Compile-time interface checks.
var (
	_ Client         = (*HTTPClient)(nil)
	_ output.Fetcher = (*HTTPClient)(nil)
)

// HTTPClient implements the Client interface using HTTP/JSON-RPC. It also
// implements output.Fetcher, which is how the collector pulls worker
// submissions.
type HTTPClient struct {
	http      *http.Client
	requestID atomic.Int64
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout for unary calls. Subscriptions
// ignore it; a stream outlives any sane request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient creates a new intake HTTP client.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit hands an agent output to the server via submission/submit.
func (c *HTTPClient) Submit(ctx context.Context, endpoint string, req SubmitRequest) (*Submission, error) {
	var sub Submission
	if err := c.call(ctx, endpoint, MethodSubmit, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubmission retrieves a submission via submission/get.
func (c *HTTPClient) GetSubmission(ctx context.Context, endpoint string, req GetSubmissionRequest) (*Submission, error) {
	var sub Submission
	if err := c.call(ctx, endpoint, MethodGetSubmission, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions queries submissions via submission/list.
func (c *HTTPClient) ListSubmissions(ctx context.Context, endpoint string, req ListSubmissionsRequest) (*ListSubmissionsResponse, error) {
	var resp ListSubmissionsResponse
	if err := c.call(ctx, endpoint, MethodListSubmissions, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunStatus reports a run's phase via run/status.
func (c *HTTPClient) RunStatus(ctx context.Context, endpoint string, req RunStatusRequest) (*RunStatus, error) {
	var status RunStatus
	if err := c.call(ctx, endpoint, MethodRunStatus, req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Fetch pulls a worker's current submission and unwraps the agent output.
// This is the collector's side of the protocol.
func (c *HTTPClient) Fetch(ctx context.Context, endpoint string) (*output.AgentOutput, error) {
	sub, err := c.GetSubmission(ctx, endpoint, GetSubmissionRequest{})
	if err != nil {
		return nil, err
	}
	if sub.State == StateRejected {
		return nil, fmt.Errorf("intake: submission from %q was rejected: %s", sub.AgentID, sub.Error)
	}
	if sub.Output == nil {
		return nil, fmt.Errorf("intake: submission %s carries no output", sub.ID)
	}
	return sub.Output, nil
}

// SubscribeRun opens an SSE stream of run events via run/subscribe.
func (c *HTTPClient) SubscribeRun(ctx context.Context, endpoint string, runID string) (<-chan StreamEvent, error) {
	paramsJSON, err := json.Marshal(SubscribeRunRequest{RunID: runID})
	if err != nil {
		return nil, fmt.Errorf("intake: marshal params: %w", err)
	}

	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      c.nextID(),
		Method:  MethodSubscribeRun,
		Params:  paramsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("intake: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("intake: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	// The subscription must not be cut off by the unary call timeout.
	streamClient := *c.http
	streamClient.Timeout = 0

	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("intake: %s: %w", MethodSubscribeRun, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("intake: %s: HTTP %d: %s", MethodSubscribeRun, resp.StatusCode, string(respBody))
	}

	// A JSON body instead of an event stream is the server declining the
	// subscription with a JSON-RPC error.
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		defer resp.Body.Close()
		var rpcResp JSONRPCResponse
		if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
			return nil, fmt.Errorf("intake: decode response: %w", err)
		}
		if rpcResp.Error != nil {
			return nil, &RPCError{
				Method:  MethodSubscribeRun,
				Code:    rpcResp.Error.Code,
				Message: rpcResp.Error.Message,
				Data:    rpcResp.Error.Data,
			}
		}
		return nil, fmt.Errorf("intake: %s: server does not stream", MethodSubscribeRun)
	}

	return ReadEvents(ctx, resp.Body), nil
}

// Discover fetches the ServiceDescriptor from the well-known URI.
func (c *HTTPClient) Discover(ctx context.Context, baseURL string) (*ServiceDescriptor, error) {
	url := strings.TrimRight(baseURL, "/") + WellKnownPath

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("intake: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("intake: discover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("intake: discover: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var desc ServiceDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("intake: decode descriptor: %w", err)
	}
	return &desc, nil
}

// nextID returns a monotonically increasing request ID for JSON-RPC calls.
func (c *HTTPClient) nextID() int64 {
	return c.requestID.Add(1)
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (c *HTTPClient) call(ctx context.Context, endpoint, method string, params any, result any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("intake: marshal params: %w", err)
	}

	rpcReq := JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      c.nextID(),
		Method:  method,
		Params:  paramsJSON,
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("intake: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("intake: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("intake: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("intake: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("intake: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("intake: decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("intake: decode result: %w", err)
		}
	}

	return nil
}

// RPCError represents a JSON-RPC error returned by a remote side.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("intake: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("intake: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}
