package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/orchestrate/internal/orchestrator"
)

var (
	// inputFile is the --input override shared by collect and merge.
	inputFile string
	// fromEndpoints requires live worker collection instead of falling back.
	fromEndpoints bool
	// showReport prints the conflict report after detection.
	showReport bool
)

var collectCmd = &cobra.Command{
	Use:   "collect <run-id>",
	Short: "Collect agent outputs into the run's batch artifact",
	Long: `Gathers every agent's output, validates and normalizes it, and writes
outputs.json into the run directory. Outputs come from the configured worker
endpoints when they answer, otherwise from the input file.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

var detectCmd = &cobra.Command{
	Use:   "detect <run-id>",
	Short: "Detect conflicts between the collected outputs",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <run-id>",
	Short: "Select a resolution strategy for every detected conflict",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	collectCmd.Flags().StringVar(&inputFile, "input", "", "collected outputs JSON (overrides orchestrate.yml)")
	collectCmd.Flags().BoolVar(&fromEndpoints, "endpoints", false, "require live collection from worker endpoints")
	detectCmd.Flags().BoolVar(&showReport, "report", false, "print the markdown conflict report")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(resolveCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pl, cfg, cleanup, err := newPipeline(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	if fromEndpoints && !cfg.Capability.HasIntake() {
		return fmt.Errorf("--endpoints: no live workers (%d configured in orchestrate.yml)", len(proj.Workers))
	}

	_, err = runPhase(ctx, pl, orchestrator.PhaseCollect)
	return err
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pl, _, cleanup, err := newPipeline(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := runPhase(ctx, pl, orchestrator.PhaseDetect)
	if err != nil {
		return err
	}

	if showReport && len(res.Artifacts) > 1 {
		data, err := os.ReadFile(res.Artifacts[1])
		if err != nil {
			return fmt.Errorf("reading conflict report: %w", err)
		}
		fmt.Println()
		fmt.Print(string(data))
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pl, _, cleanup, err := newPipeline(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = runPhase(ctx, pl, orchestrator.PhaseResolve)
	return err
}

// runPhase executes one phase and prints its outcome.
func runPhase(ctx context.Context, pl *orchestrator.Pipeline, phase orchestrator.Phase) (*orchestrator.PhaseResult, error) {
	res, err := pl.RunPhase(ctx, phase)
	if err != nil {
		return nil, err
	}

	fmt.Printf("%s: %s\n", phase, res.Summary)
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	root, rootErr := absRoot()
	for _, artifact := range res.Artifacts {
		if rootErr == nil {
			artifact = dotRelative(root, artifact)
		}
		fmt.Printf("  wrote %s\n", artifact)
	}
	return res, nil
}
