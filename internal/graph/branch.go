package graph

import (
	"context"
	"sort"
)

// Branch is a set of agents whose outputs must merge together: they are
// linked by DEPENDS_ON edges or touch the same files. Distinct branches have
// no links between them, so they can merge in any order relative to each
// other.
type Branch struct {
	Name        string   `json:"name"`
	Agents      []string `json:"agents"`
	SharedFiles []string `json:"shared_files,omitempty"`
	Cohesion    float64  `json:"cohesion"`
}

// ComputeBranches finds connected components in the agent graph.
//
// Algorithm:
//  1. Build an undirected adjacency list from DEPENDS_ON edges plus implicit
//     links between agents that modify the same file.
//  2. Find connected components via BFS.
//  3. Name each branch after its lexicographically-first member.
func ComputeBranches(ctx context.Context, store Store) ([]Branch, error) {
	agents, err := store.GetAllAgents(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := store.GetAllEdges(ctx)
	if err != nil {
		return nil, err
	}

	adj := make(map[string]map[string]bool, len(agents))
	for _, a := range agents {
		adj[a.ID] = make(map[string]bool)
	}

	// Direct links: declared or implicit dependencies between agents.
	for _, e := range edges {
		if e.Kind != EdgeKindDependsOn {
			continue
		}
		if adj[e.SourceID] == nil || adj[e.TargetID] == nil {
			continue
		}
		adj[e.SourceID][e.TargetID] = true
		adj[e.TargetID][e.SourceID] = true
	}

	// Implicit links: two agents touching the same file merge together.
	touchers := make(map[string][]string)
	for _, e := range edges {
		if e.Kind == EdgeKindModifies && adj[e.SourceID] != nil {
			touchers[e.TargetID] = append(touchers[e.TargetID], e.SourceID)
		}
	}
	sharedByAgent := make(map[string]map[string]bool)
	for file, who := range touchers {
		if len(who) < 2 {
			continue
		}
		for i := range who {
			for j := i + 1; j < len(who); j++ {
				if who[i] == who[j] {
					continue
				}
				adj[who[i]][who[j]] = true
				adj[who[j]][who[i]] = true
			}
			if sharedByAgent[who[i]] == nil {
				sharedByAgent[who[i]] = make(map[string]bool)
			}
			sharedByAgent[who[i]][file] = true
		}
	}

	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)

	visited := make(map[string]bool, len(ids))
	var branches []Branch
	for _, id := range ids {
		if visited[id] {
			continue
		}
		members := bfsComponent(id, adj, visited)
		sort.Strings(members)

		shared := make(map[string]bool)
		for _, m := range members {
			for f := range sharedByAgent[m] {
				shared[f] = true
			}
		}

		branches = append(branches, Branch{
			Name:        "branch-" + members[0],
			Agents:      members,
			SharedFiles: setToSlice(shared),
			Cohesion:    computeCohesion(members, adj),
		})
	}

	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// bfsComponent performs BFS from start on the adjacency list and returns
// all reachable nodes. It marks visited nodes as it goes.
func bfsComponent(start string, adj map[string]map[string]bool, visited map[string]bool) []string {
	var component []string
	queue := []string{start}
	visited[start] = true

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)
		for _, neighbor := range setToSlice(adj[node]) {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	return component
}

// computeCohesion calculates how tightly a branch is coupled: the fraction of
// member pairs that are directly linked. A two-agent branch with one link
// scores 1.0; a long loose chain scores near zero.
func computeCohesion(members []string, adj map[string]map[string]bool) float64 {
	n := len(members)
	if n < 2 {
		return 1
	}
	links := 0
	for i, m := range members {
		for j := i + 1; j < n; j++ {
			if adj[m][members[j]] {
				links++
			}
		}
	}
	pairs := n * (n - 1) / 2
	return float64(links) / float64(pairs)
}

// setToSlice converts a string set to a sorted slice.
func setToSlice(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
