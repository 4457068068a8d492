package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/orchestrate/internal/export"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's artifacts as JSON, markdown, or a Mermaid chart",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json, markdown, or mermaid")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	runID := args[0]
	root, err := absRoot()
	if err != nil {
		return err
	}
	runsRoot := proj.RunsRoot(root)

	switch exportFormat {
	case "json":
		data, err := export.ExportRun(runsRoot, runID)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = os.Stdout.Write(append(out, '\n'))
		return err

	case "markdown":
		data, err := export.ExportRun(runsRoot, runID)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Print(export.FormatRunReport(data))
		return nil

	case "mermaid":
		chart, err := mermaidForRun(cmd.Context(), orchestrator.NewRunDir(runsRoot, runID))
		if err != nil {
			return err
		}
		fmt.Print(chart)
		return nil

	default:
		return fmt.Errorf("unknown format %q (json, markdown, mermaid)", exportFormat)
	}
}
