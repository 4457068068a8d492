package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Start creates an HTTP server, registers routes, and begins serving.
// It returns immediately after starting the server in a background goroutine.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	go s.http.ListenAndServe()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Routes returns the server's handler, usable directly with httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+WellKnownPath, s.handleDescriptor)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// handleDescriptor serves the service descriptor at the well-known endpoint.
func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.descriptor); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleJSONRPC processes incoming JSON-RPC 2.0 requests and dispatches them
// to the appropriate handler method. run/subscribe switches the response to
// an SSE stream instead of a single JSON body.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}

	ctx := r.Context()

	switch req.Method {
	case MethodSubmit:
		dispatch(ctx, w, &req, s.handler.HandleSubmit)
	case MethodGetSubmission:
		dispatch(ctx, w, &req, s.handler.HandleGetSubmission)
	case MethodListSubmissions:
		dispatch(ctx, w, &req, s.handler.HandleListSubmissions)
	case MethodRunStatus:
		dispatch(ctx, w, &req, s.handler.HandleRunStatus)
	case MethodSubscribeRun:
		s.dispatchSubscribeRun(ctx, w, &req)
	default:
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// dispatch unmarshals params, invokes the handler, and writes the result.
func dispatch[P any, R any](
	ctx context.Context,
	w http.ResponseWriter,
	req *JSONRPCRequest,
	handle func(context.Context, P) (R, error),
) {
	var params P
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
	}

	result, err := handle(ctx, params)
	if err != nil {
		writeJSONRPCError(w, req.ID, errorCode(err), err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, result)
}

// dispatchSubscribeRun opens the stream and forwards handler events as SSE
// frames until the channel closes or the client goes away.
func (s *Server) dispatchSubscribeRun(ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest) {
	var params SubscribeRunRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
	}

	events, err := s.handler.HandleSubscribeRun(ctx, params)
	if err != nil {
		writeJSONRPCError(w, req.ID, errorCode(err), err.Error())
		return
	}

	sw := NewSSEWriter(w)
	sw.Init()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sw.WriteEvent(ev); err != nil {
				return
			}
		}
	}
}

// errorCode maps handler errors to JSON-RPC error codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrUnsupported):
		return ErrCodeUnsupported
	}
	return ErrCodeInternal
}

// writeJSONRPCResult writes a successful JSON-RPC response.
func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}

	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeJSONRPCError writes a JSON-RPC error response.
func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
