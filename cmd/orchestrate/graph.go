package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/export"
	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/output"
)

var mermaidOut bool

var graphCmd = &cobra.Command{
	Use:   "graph <run-id>",
	Short: "Analyze the dependency graph of a collected run",
	Long: `Builds the agent dependency graph from the run's collected outputs and
prints the merge order, the parallelism structure, and the independent
branches. With --mermaid it emits a flowchart instead, including conflict
links when detection has run.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&mermaidOut, "mermaid", false, "emit a Mermaid flowchart instead of the analysis")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root, err := absRoot()
	if err != nil {
		return err
	}
	dir := orchestrator.NewRunDir(proj.RunsRoot(root), args[0])

	if mermaidOut {
		chart, err := mermaidForRun(ctx, dir)
		if err != nil {
			return err
		}
		fmt.Print(chart)
		return nil
	}

	batch, err := dir.LoadBatch()
	if err != nil {
		return fmt.Errorf("loading %s (run the collect phase first): %w", orchestrator.ArtifactOutputs, err)
	}
	store, cleanup, err := ingestBatch(ctx, dir, batch)
	if err != nil {
		return err
	}
	defer cleanup()

	return printGraphAnalysis(ctx, store, batch)
}

// ingestBatch builds the agent graph for a collected batch. Symbol and
// import extraction runs when the code-intel stack loads; otherwise the
// graph carries declared dependencies only.
func ingestBatch(ctx context.Context, dir orchestrator.RunDir, batch *output.Batch) (graph.Store, func(), error) {
	store, closeStore, err := newAnalysisStore(dir)
	if err != nil {
		return nil, nil, err
	}

	iopts := []graph.IngestOption{graph.WithLogger(logger)}
	cleanup := closeStore
	if level, _, err := orchestrator.NewDefaultDetector(nil, nil, logger).Detect(ctx); err == nil && level.HasCodeIntel() {
		parser := graph.NewTreeSitterParser()
		cleanup = func() {
			closeStore()
			parser.Close()
		}
		iopts = append(iopts, graph.WithParser(parser))
	}

	if err := graph.NewIngestor(store, iopts...).Ingest(ctx, batch, nil); err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

// mermaidForRun renders the run's merge graph as a Mermaid flowchart. The
// conflicts artifact is optional; without it the chart has no conflict links.
func mermaidForRun(ctx context.Context, dir orchestrator.RunDir) (string, error) {
	batch, err := dir.LoadBatch()
	if err != nil {
		return "", fmt.Errorf("loading %s (run the collect phase first): %w", orchestrator.ArtifactOutputs, err)
	}
	store, cleanup, err := ingestBatch(ctx, dir, batch)
	if err != nil {
		return "", err
	}
	defer cleanup()

	var conflicts []conflict.Conflict
	if art, err := dir.LoadConflicts(); err == nil {
		conflicts = art.Conflicts
	}
	return export.GenerateMermaid(ctx, store, conflicts)
}

func printGraphAnalysis(ctx context.Context, store graph.Store, batch *output.Batch) error {
	agents := make([]string, len(batch.Outputs))
	for i, out := range batch.Outputs {
		agents[i] = out.AgentID
	}

	all, err := store.GetAllEdges(ctx)
	if err != nil {
		return err
	}
	var deps []graph.Edge
	for _, e := range all {
		if e.Kind == graph.EdgeKindDependsOn {
			deps = append(deps, e)
		}
	}

	order, err := graph.TopoSort(agents, deps)
	if err != nil {
		return err
	}
	fmt.Printf("Merge order: %s\n", strings.Join(order, " -> "))

	levels, err := graph.ParallelLevels(agents, deps)
	if err != nil {
		return err
	}
	fmt.Println("\nParallel levels:")
	for i, level := range levels {
		fmt.Printf("  %d. %s\n", i+1, strings.Join(level, ", "))
	}

	critical, err := graph.CriticalPath(agents, deps)
	if err != nil {
		return err
	}
	fmt.Printf("\nCritical path: %s\n", strings.Join(critical, " -> "))
	fmt.Printf("Estimated speedup: %.1fx\n", graph.EstimateSpeedup(levels))

	branches, err := graph.ComputeBranches(ctx, store)
	if err != nil {
		return err
	}
	fmt.Println("\nBranches:")
	for _, b := range branches {
		fmt.Printf("  %s: %s (cohesion %.2f)\n", b.Name, strings.Join(b.Agents, ", "), b.Cohesion)
		if len(b.SharedFiles) > 0 {
			fmt.Printf("    shared: %s\n", strings.Join(b.SharedFiles, ", "))
		}
	}
	return nil
}
