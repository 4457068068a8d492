package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/intake"
	"github.com/dusk-indust/orchestrate/internal/mcptools"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/status"
)

var (
	serveMCP  bool
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the merge engine over MCP stdio or accept submissions over HTTP",
	Long: `With --mcp the merge engine is exposed as MCP tools on stdio, for use
from an agent session. With --http the intake endpoint accepts worker
submissions and answers run status queries until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "serve MCP tools on stdio")
	serveCmd.Flags().StringVar(&serveAddr, "http", "", "serve the intake endpoint on this address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case serveMCP:
		return serveMCPStdio(ctx)
	case serveAddr != "":
		return serveIntake(ctx, serveAddr)
	default:
		return fmt.Errorf("serve needs --mcp or --http <addr>")
	}
}

// serveMCPStdio exposes the merge tools over MCP on stdin/stdout. Capability
// is probed once at startup; every tool call reuses it.
func serveMCPStdio(ctx context.Context) error {
	cfg, err := buildConfig("")
	if err != nil {
		return err
	}
	client := intake.NewHTTPClient()
	detectCapability(ctx, &cfg, client)

	opts := []mcptools.ServiceOption{mcptools.WithLogger(logger)}
	if cfg.Capability.HasCodeIntel() {
		parser := graph.NewTreeSitterParser()
		defer parser.Close()
		opts = append(opts, mcptools.WithParser(parser))
	}
	var fetcher output.Fetcher
	if cfg.Capability.HasIntake() {
		fetcher = client
	}

	svc := mcptools.NewService(cfg, fetcher, opts...)
	return mcptools.RunStdio(ctx, mcptools.NewServer(svc))
}

// serveIntake runs the submission endpoint until the context is cancelled.
// Run status and subscriptions are answered from the run directory, so the
// endpoint needs no link to the process doing the merging.
func serveIntake(ctx context.Context, addr string) error {
	root, err := absRoot()
	if err != nil {
		return err
	}
	runsRoot := proj.RunsRoot(root)

	store := intake.NewSubmissionStore()
	svc := intake.NewService(store,
		intake.WithLogger(logger),
		intake.WithRunStatus(runStatusFunc(runsRoot, store)),
		intake.WithRunEvents(runEventsFunc(runsRoot)),
	)
	srv := intake.NewServer(intake.DefaultDescriptor("orchestrate", version), svc)

	if err := srv.Start(ctx, addr); err != nil {
		return err
	}
	logger.Info("intake endpoint started", zap.String("addr", addr))
	fmt.Printf("Intake endpoint listening on %s\n", addr)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(stopCtx)
}

// runStatusFunc answers run/status from the run directory's artifacts plus
// the live submission store. A run nobody has heard of reports not found.
func runStatusFunc(runsRoot string, store *intake.SubmissionStore) intake.StatusFunc {
	return func(ctx context.Context, runID string) (*intake.RunStatus, error) {
		dir := orchestrator.NewRunDir(runsRoot, runID)
		completed := status.ScanCompletedPhases(dir)

		resp, err := store.List(intake.ListSubmissionsRequest{RunID: runID})
		if err != nil {
			return nil, err
		}
		if len(completed) == 0 && resp.TotalSize == 0 {
			return nil, fmt.Errorf("run %q: %w", runID, intake.ErrNotFound)
		}

		rs := &intake.RunStatus{
			RunID:       runID,
			Phase:       "collect",
			Submissions: resp.TotalSize,
		}
		for _, sub := range resp.Submissions {
			if sub.ReceivedAt.After(rs.UpdatedAt) {
				rs.UpdatedAt = sub.ReceivedAt
			}
		}
		for _, p := range completed {
			rs.Phase = p.String()
			path := dir.ArtifactPath(orchestrator.ArtifactForPhase(p))
			rs.Artifacts = append(rs.Artifacts, path)
			if fi, err := os.Stat(path); err == nil && fi.ModTime().After(rs.UpdatedAt) {
				rs.UpdatedAt = fi.ModTime()
			}
		}
		return rs, nil
	}
}

// runEventsFunc streams run/subscribe events by watching the run directory
// for new phase artifacts. Each completed phase is announced once; the
// stream closes when every phase has its artifact or the client goes away.
func runEventsFunc(runsRoot string) intake.SubscribeFunc {
	return func(ctx context.Context, runID string) (<-chan intake.StreamEvent, error) {
		dir := orchestrator.NewRunDir(runsRoot, runID)
		ch := make(chan intake.StreamEvent, 16)

		go func() {
			defer close(ch)
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()

			seen := make(map[orchestrator.Phase]bool)
			for {
				completed := status.ScanCompletedPhases(dir)
				for _, p := range completed {
					if seen[p] {
						continue
					}
					seen[p] = true
					ev := intake.StreamEvent{Progress: &intake.ProgressEvent{
						RunID: runID,
						Phase: p.String(),
						At:    time.Now().UTC(),
					}}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
				if status.NextPhase(completed) == -1 {
					final := &intake.RunStatus{
						RunID:     runID,
						Phase:     orchestrator.PhaseVerify.String(),
						UpdatedAt: time.Now().UTC(),
					}
					for _, p := range completed {
						final.Artifacts = append(final.Artifacts,
							dir.ArtifactPath(orchestrator.ArtifactForPhase(p)))
					}
					select {
					case ch <- intake.StreamEvent{Run: final}:
					case <-ctx.Done():
					}
					return
				}

				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
		}()

		return ch, nil
	}
}
