package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a dependency cycle between agents. A cyclic DEPENDS_ON
// graph has no valid merge order, so callers must treat this as fatal.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// TopoSort orders agents so that every agent merges after the agents it
// depends on. Ties are broken lexicographically by agent ID, which makes the
// order stable across runs regardless of input order.
func TopoSort(agents []string, edges []Edge) ([]string, error) {
	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[a] = true
	}

	indegree := make(map[string]int, len(agents))
	dependents := make(map[string][]string, len(agents))
	for _, a := range agents {
		indegree[a] = 0
	}
	for _, e := range edges {
		if e.Kind != EdgeKindDependsOn || !known[e.SourceID] || !known[e.TargetID] {
			continue
		}
		if e.SourceID == e.TargetID {
			return nil, &CycleError{Path: []string{e.SourceID, e.TargetID}}
		}
		indegree[e.SourceID]++
		dependents[e.TargetID] = append(dependents[e.TargetID], e.SourceID)
	}

	var ready []string
	for _, a := range agents {
		if indegree[a] == 0 {
			ready = append(ready, a)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(agents))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(order) < len(agents) {
		return nil, &CycleError{Path: findCycle(agents, edges)}
	}
	return order, nil
}

// insertSorted inserts s into a sorted slice, keeping it sorted.
func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

// findCycle locates one cycle in the DEPENDS_ON graph using a colored DFS.
// The returned path starts and ends at the same agent.
func findCycle(agents []string, edges []Edge) []string {
	adj := make(map[string][]string, len(agents))
	for _, e := range edges {
		if e.Kind != EdgeKindDependsOn {
			continue
		}
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
	}
	for _, nbs := range adj {
		sort.Strings(nbs)
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(agents))
	var stack []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		color[node] = gray
		stack = append(stack, node)
		for _, nb := range adj[node] {
			switch color[nb] {
			case gray:
				// Found the back edge: slice the stack from nb onward.
				for i, s := range stack {
					if s == nb {
						cycle = append(append([]string{}, stack[i:]...), nb)
						return true
					}
				}
			case white:
				if visit(nb) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
		return false
	}

	sorted := append([]string{}, agents...)
	sort.Strings(sorted)
	for _, a := range sorted {
		if color[a] == white && visit(a) {
			return cycle
		}
	}
	return nil
}

// ParallelLevels groups agents into waves where every agent in a wave depends
// only on agents in earlier waves. Wave 0 holds agents with no dependencies.
// Agents within a wave are sorted by ID.
func ParallelLevels(agents []string, edges []Edge) ([][]string, error) {
	order, err := TopoSort(agents, edges)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string, len(agents))
	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[a] = true
	}
	for _, e := range edges {
		if e.Kind != EdgeKindDependsOn || !known[e.SourceID] || !known[e.TargetID] {
			continue
		}
		deps[e.SourceID] = append(deps[e.SourceID], e.TargetID)
	}

	level := make(map[string]int, len(agents))
	maxLevel := 0
	for _, a := range order {
		lv := 0
		for _, d := range deps[a] {
			if level[d]+1 > lv {
				lv = level[d] + 1
			}
		}
		level[a] = lv
		if lv > maxLevel {
			maxLevel = lv
		}
	}

	waves := make([][]string, maxLevel+1)
	for _, a := range order {
		waves[level[a]] = append(waves[level[a]], a)
	}
	for _, w := range waves {
		sort.Strings(w)
	}
	return waves, nil
}

// CriticalPath returns the longest dependency chain in merge order: the first
// element has no dependencies and each later element depends on its
// predecessor. A failure anywhere on this chain blocks the rest of it.
func CriticalPath(agents []string, edges []Edge) ([]string, error) {
	order, err := TopoSort(agents, edges)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string, len(agents))
	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[a] = true
	}
	for _, e := range edges {
		if e.Kind != EdgeKindDependsOn || !known[e.SourceID] || !known[e.TargetID] {
			continue
		}
		deps[e.SourceID] = append(deps[e.SourceID], e.TargetID)
	}
	for _, d := range deps {
		sort.Strings(d)
	}

	// Longest chain ending at each agent, computed in topological order so
	// dependencies are always resolved first.
	longest := make(map[string]int, len(agents))
	prev := make(map[string]string, len(agents))
	for _, a := range order {
		longest[a] = 1
		for _, d := range deps[a] {
			if longest[d]+1 > longest[a] {
				longest[a] = longest[d] + 1
				prev[a] = d
			}
		}
	}

	best := ""
	for _, a := range order {
		if best == "" || longest[a] > longest[best] || (longest[a] == longest[best] && a < best) {
			best = a
		}
	}
	if best == "" {
		return nil, nil
	}

	var path []string
	for cur := best; cur != ""; {
		path = append(path, cur)
		next, ok := prev[cur]
		if !ok {
			break
		}
		cur = next
	}
	// Reverse so the chain reads in merge order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// EstimateSpeedup reports the ratio of sequential merge steps to parallel
// waves: how much faster the batch completes when independent agents run
// concurrently.
func EstimateSpeedup(levels [][]string) float64 {
	if len(levels) == 0 {
		return 1
	}
	total := 0
	for _, lv := range levels {
		total += len(lv)
	}
	if total == 0 {
		return 1
	}
	return float64(total) / float64(len(levels))
}
