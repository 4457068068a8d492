package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram of the merge graph.
// Agents are grouped by branch, DEPENDS_ON edges become arrows labeled with
// how the dependency was established, and conflicts become dashed links
// between the agents involved.
func GenerateMermaid(ctx context.Context, store graph.Store, conflicts []conflict.Conflict) (string, error) {
	branches, err := graph.ComputeBranches(ctx, store)
	if err != nil {
		return "", fmt.Errorf("compute branches: %w", err)
	}

	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return "", fmt.Errorf("get edges: %w", err)
	}

	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(name string) string {
		if id, ok := nodeIDs[name]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[name] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, b := range branches {
		if len(b.Agents) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID(b.Name+"_branch"), b.Name))
		for _, agent := range b.Agents {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(agent), agent))
		}
		sb.WriteString("  end\n")
	}

	for _, e := range edges {
		if e.Kind != graph.EdgeKindDependsOn {
			continue
		}
		srcID := getID(e.SourceID)
		tgtID := getID(e.TargetID)
		if e.Label != "" {
			sb.WriteString(fmt.Sprintf("  %s -->|%s| %s\n", srcID, e.Label, tgtID))
		} else {
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", srcID, tgtID))
		}
	}

	// One dashed link per agent pair and kind, however many conflicts share it.
	seen := make(map[string]bool)
	for _, c := range conflicts {
		for i := 0; i < len(c.Agents); i++ {
			for j := i + 1; j < len(c.Agents); j++ {
				a, b := c.Agents[i], c.Agents[j]
				if a > b {
					a, b = b, a
				}
				key := a + "|" + b + "|" + string(c.Kind)
				if seen[key] {
					continue
				}
				seen[key] = true
				sb.WriteString(fmt.Sprintf("  %s -. %s .- %s\n", getID(a), c.Kind, getID(b)))
			}
		}
	}

	return sb.String(), nil
}
