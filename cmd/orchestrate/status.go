package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/orchestrate/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status [<run-id>]",
	Short: "Show where runs stand, phase by phase",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := absRoot()
	if err != nil {
		return err
	}
	runsRoot := proj.RunsRoot(root)

	if len(args) == 1 {
		return printSingleStatus(runsRoot, args[0])
	}
	return printAllStatuses(runsRoot)
}

func printSingleStatus(runsRoot, runID string) error {
	rs := status.GetRunStatus(runsRoot, runID)
	fmt.Printf("Run: %s\n\n", rs.RunID)
	printPhaseTable(rs)
	return nil
}

func printAllStatuses(runsRoot string) error {
	runs := status.ListRuns(runsRoot)
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		fmt.Println("Run 'orchestrate merge <run-id>' to start one.")
		return nil
	}

	for i, rs := range runs {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("Run: %s\n", rs.RunID)
		printPhaseTable(rs)
	}
	return nil
}

func printPhaseTable(rs status.RunStatus) {
	for _, pi := range rs.Phases {
		marker := "  "
		label := "pending"
		if pi.Complete {
			label = "complete"
		}
		if int(pi.Phase) == rs.NextPhase {
			marker = "->"
			label = "next"
		}

		fmt.Printf("  %s Phase %d: %-8s [%s]\n", marker, pi.Phase, pi.Name, label)
	}

	fmt.Printf("  %s\n", rs.Verdict)
}
