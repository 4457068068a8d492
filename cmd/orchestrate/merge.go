package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
)

// mergeCmd runs the full pipeline.
var mergeCmd = &cobra.Command{
	Use:   "merge <run-id>",
	Short: "Run the full pipeline: collect, detect, resolve, merge, verify",
	Long: `Runs every phase in order and reports the merged result.

The merged tree lands under .orchestrate/runs/<run-id>/merged/ together with
the artifacts of each phase. Escalated conflicts never block the rest of the
merge; they are reported and the command exits 1 so a human can settle them.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVar(&inputFile, "input", "", "collected outputs JSON (overrides orchestrate.yml)")
	rootCmd.AddCommand(mergeCmd)
}

// escalatedError reports a merge that completed but left conflicts for a
// human decision.
type escalatedError struct {
	IDs []string
}

func (e *escalatedError) Error() string {
	return fmt.Sprintf("%d conflicts escalated for human review: %s",
		len(e.IDs), strings.Join(e.IDs, ", "))
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pl, cfg, cleanup, err := newPipeline(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Capability: %s\n", cfg.Capability)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range pl.Progress() {
			fmt.Println(orchestrator.FormatProgress(ev))
		}
	}()

	result, runErr := pl.RunAll(ctx)
	pl.Close()
	<-done

	if result != nil {
		printMergeSummary(result)
	}
	if runErr != nil {
		return runErr
	}
	if result != nil && len(result.UnresolvedConflicts) > 0 {
		ids := make([]string, len(result.UnresolvedConflicts))
		for i, c := range result.UnresolvedConflicts {
			ids[i] = c.ID
		}
		return &escalatedError{IDs: ids}
	}
	return nil
}

func printMergeSummary(res *merge.Result) {
	fmt.Println()
	fmt.Printf("Merged %d file(s) in %s\n",
		len(res.MergedFiles), res.Duration.Round(time.Millisecond))
	if len(res.Order) > 0 {
		fmt.Printf("  order: %s\n", strings.Join(res.Order, ", "))
	}
	for _, agent := range res.SkippedAgents {
		fmt.Printf("  rolled back: %s\n", agent)
	}
	for _, c := range res.UnresolvedConflicts {
		fmt.Printf("  unresolved: %s [%s] %s\n", c.ID, c.Severity, c.Detail)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	fmt.Printf("  verification: %s\n", res.VerificationStatus)
}
