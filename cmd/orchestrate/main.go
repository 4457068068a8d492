// Package main is the orchestrate CLI. It merges the outputs of parallel
// coding agents into one consistent tree: collect, detect conflicts, select
// resolutions, merge in dependency order, verify.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dusk-indust/orchestrate/internal/config"
	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/intake"
	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/output"
)

var (
	// Global flags
	projectRoot string
	verbose     bool
	dryRun      bool

	// proj is the loaded orchestrate.yml, set before any command runs.
	proj *config.Project

	// Logger
	logger *zap.Logger
)

// version is set by goreleaser at build time.
var version = "dev"

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "orchestrate",
	Short: "Merge parallel agent outputs into one verified tree",
	Long: `orchestrate merges the outputs of parallel coding agents into one
consistent codebase.

A run moves through five phases: collect agent outputs, detect conflicts
between them, select a resolution strategy per conflict, merge in dependency
order, and verify the merged snapshot. Each phase writes its artifact under
.orchestrate/runs/<run-id>/ and can be rerun standalone once its inputs exist.

Exit codes: 0 merged and verified, 1 unresolved conflicts remain,
2 verification failure, 3 input or internal error.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		proj, err = config.Load(projectRoot)
		if err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if verbose || proj.Verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// versionCmd prints the build version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", ".", "path to the project the agents started from")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "merge in memory without writing the merged tree")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the documented exit codes: 1 for
// escalated conflicts, 2 for verification failures, 3 for everything else.
func exitCode(err error) int {
	var (
		escalated  *escalatedError
		gate       *orchestrator.GateFailedError
		critical   *merge.CriticalPathError
		incomplete *output.IncompleteOutputError
		detection  *conflict.DetectionError
		uncovered  *merge.UncoveredConflictError
	)
	switch {
	case errors.As(err, &escalated):
		return 1
	case errors.As(err, &gate), errors.As(err, &critical):
		return 2
	case errors.As(err, &incomplete), errors.As(err, &detection), errors.As(err, &uncovered):
		return 3
	default:
		return 3
	}
}

// absRoot resolves the --project flag to an absolute path.
func absRoot() (string, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	return abs, nil
}

// buildConfig assembles the run configuration from orchestrate.yml and the
// global flags. Capability stays at basic until detectCapability probes it.
func buildConfig(runID string) (orchestrator.Config, error) {
	root, err := absRoot()
	if err != nil {
		return orchestrator.Config{}, err
	}
	overrides, err := proj.StrategyOverrides()
	if err != nil {
		return orchestrator.Config{}, err
	}

	input := inputFile
	if input == "" {
		input = proj.InputFile
	}
	if input != "" && !filepath.IsAbs(input) {
		input = filepath.Join(root, input)
	}

	return orchestrator.Config{
		RunID:       runID,
		ProjectRoot: root,
		RunsRoot:    proj.RunsRoot(root),
		InputFile:   input,
		Workers:     proj.Workers,
		Priorities:  proj.Priorities,
		Overrides:   overrides,
		Gate:        proj.GateConfig(root),
		DryRun:      dryRun,
		Verbose:     verbose || proj.Verbose,
	}, nil
}

// detectCapability probes the configured workers and the code-intel stack,
// narrowing the worker list to the ones that answered.
func detectCapability(ctx context.Context, cfg *orchestrator.Config, client intake.Client) {
	level, live, err := orchestrator.NewDefaultDetector(client, cfg.Workers, logger).Detect(ctx)
	if err != nil {
		level = orchestrator.CapBasic
		live = nil
	}
	cfg.Capability = level
	cfg.Workers = live
}

// newPipeline builds a pipeline for the run after capability detection. The
// returned config carries the detected capability and the narrowed worker
// list; the cleanup closes the pipeline and any parser it owns.
func newPipeline(ctx context.Context, runID string) (*orchestrator.Pipeline, orchestrator.Config, func(), error) {
	cfg, err := buildConfig(runID)
	if err != nil {
		return nil, orchestrator.Config{}, nil, err
	}

	client := intake.NewHTTPClient()
	detectCapability(ctx, &cfg, client)

	opts := []orchestrator.PipelineOption{orchestrator.WithLogger(logger)}
	var parser graph.Parser
	if cfg.Capability.HasCodeIntel() {
		parser = graph.NewTreeSitterParser()
		opts = append(opts, orchestrator.WithParser(parser))
	}
	var fetcher output.Fetcher
	if cfg.Capability.HasIntake() {
		fetcher = client
	}

	pl := orchestrator.NewPipeline(cfg, fetcher, opts...)
	cleanup := func() {
		pl.Close()
		if parser != nil {
			_ = parser.Close()
		}
	}
	return pl, cfg, cleanup, nil
}
