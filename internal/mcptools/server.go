package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the merge pipeline tools registered.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "orchestrate",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "collect_outputs",
		Description: "Collect agent outputs for a run: pull from live workers when available, otherwise read the configured outputs file. Writes outputs.json and returns the agents collected.",
	}, svc.CollectOutputs)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "detect_conflicts",
		Description: "Detect conflicts between the collected outputs: contested files, dependency version divergence, schema contradictions, and behavior disagreements. Writes conflicts.json and a markdown report.",
	}, svc.DetectConflicts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_resolutions",
		Description: "Choose a resolution strategy for every detected conflict. Writes resolutions.json and reports which conflicts escalate to a human.",
	}, svc.SelectResolutions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_merge",
		Description: "Apply agent outputs in dependency order with per-step verification and rollback, then run the final verification gate. Writes merge-result.json and verification.json.",
	}, svc.RunMerge)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_status",
		Description: "Report a run's progress: completed phases, the next phase to run, and the verdict so far. With no run_id, lists every run.",
	}, svc.MergeStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_report",
		Description: "Export a run as JSON, a markdown report, or a Mermaid diagram of the merge graph.",
	}, svc.ExportReport)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts an HTTP server exposing the MCP tools.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
