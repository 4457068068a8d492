package graph

import (
	"context"
	"sort"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	agents   map[string]AgentNode
	files    map[string]FileNode
	packages map[string]PackageNode
	symbols  map[string]SymbolNode // key: "filePath:name"
	edges    []Edge
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		agents:   make(map[string]AgentNode),
		files:    make(map[string]FileNode),
		packages: make(map[string]PackageNode),
		symbols:  make(map[string]SymbolNode),
	}
}

// symbolID produces a deterministic identifier for a symbol: "filePath:name".
func symbolID(filePath, name string) string {
	return filePath + ":" + name
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddAgent stores an agent node keyed by its ID.
func (m *MemStore) AddAgent(_ context.Context, node AgentNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[node.ID] = node
	return nil
}

// AddFile stores a file node keyed by its path.
func (m *MemStore) AddFile(_ context.Context, node FileNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[node.Path] = node
	return nil
}

// AddPackage stores a package node keyed by its name.
func (m *MemStore) AddPackage(_ context.Context, node PackageNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packages[node.Name] = node
	return nil
}

// AddSymbol stores a symbol node keyed by "filePath:name".
func (m *MemStore) AddSymbol(_ context.Context, node SymbolNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[symbolID(node.FilePath, node.Name)] = node
	return nil
}

// AddEdge appends an edge to the internal slice.
func (m *MemStore) AddEdge(_ context.Context, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edge)
	return nil
}

// GetAgent returns the agent node for the given ID, or nil if not found.
func (m *MemStore) GetAgent(_ context.Context, id string) (*AgentNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// GetFile returns the file node for the given path, or nil if not found.
func (m *MemStore) GetFile(_ context.Context, path string) (*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[path]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// GetAllAgents returns all agent nodes sorted by ID.
func (m *MemStore) GetAllAgents(_ context.Context) ([]AgentNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AgentNode, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetAllEdges returns a copy of all edges in the store.
func (m *MemStore) GetAllEdges(_ context.Context) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Edge, len(m.edges))
	copy(out, m.edges)
	return out, nil
}

// GetSymbolsForFile returns the symbols of one file ordered by start line.
func (m *MemStore) GetSymbolsForFile(_ context.Context, path string) ([]SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SymbolNode
	for _, sym := range m.symbols {
		if sym.FilePath == path {
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartLine != out[j].StartLine {
			return out[i].StartLine < out[j].StartLine
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// GetDependencies performs a BFS over DEPENDS_ON edges from agentID in the
// given direction, up to maxDepth hops. It returns one DependencyChain per
// reachable agent.
func (m *MemStore) GetDependencies(_ context.Context, agentID string, direction Direction, maxDepth int) ([]DependencyChain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxDepth <= 0 {
		return nil, nil
	}

	// BFS state: each entry tracks the path from agentID to the current node.
	type bfsEntry struct {
		id   string
		path []string
	}

	visited := map[string]bool{agentID: true}
	queue := []bfsEntry{{id: agentID, path: []string{agentID}}}
	var chains []DependencyChain

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			for _, nb := range m.dependsNeighbors(entry.id, direction) {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				newPath := make([]string, len(entry.path), len(entry.path)+1)
				copy(newPath, entry.path)
				newPath = append(newPath, nb)
				chains = append(chains, DependencyChain{
					Nodes: newPath,
					Depth: len(newPath) - 1,
				})
				nextQueue = append(nextQueue, bfsEntry{id: nb, path: newPath})
			}
		}
		queue = nextQueue
	}

	return chains, nil
}

// dependsNeighbors returns agent IDs one DEPENDS_ON hop away, sorted.
// An edge source depends on its target, so upstream follows source→target
// and downstream follows target→source.
func (m *MemStore) dependsNeighbors(id string, direction Direction) []string {
	var result []string
	for _, e := range m.edges {
		if e.Kind != EdgeKindDependsOn {
			continue
		}
		switch direction {
		case DirectionUpstream:
			if e.SourceID == id {
				result = append(result, e.TargetID)
			}
		case DirectionDownstream:
			if e.TargetID == id {
				result = append(result, e.SourceID)
			}
		}
	}
	sort.Strings(result)
	return result
}

// AssessImpact computes which agents are blocked if agentID's merge step
// fails, by walking DEPENDS_ON edges downstream.
func (m *MemStore) AssessImpact(ctx context.Context, agentID string) (*ImpactResult, error) {
	m.mu.RLock()
	total := len(m.agents)
	m.mu.RUnlock()

	direct, err := m.GetDependencies(ctx, agentID, DirectionDownstream, 1)
	if err != nil {
		return nil, err
	}
	// total+1 hops covers the longest possible chain.
	all, err := m.GetDependencies(ctx, agentID, DirectionDownstream, total+1)
	if err != nil {
		return nil, err
	}

	directIDs := chainTips(direct)
	allIDs := chainTips(all)

	risk := 0.0
	if total > 1 {
		risk = float64(len(allIDs)) / float64(total-1)
		if risk > 1 {
			risk = 1
		}
	}

	return &ImpactResult{
		DirectlyBlocked:     directIDs,
		TransitivelyBlocked: allIDs,
		RiskScore:           risk,
	}, nil
}

// Stats returns counts of all node and edge types in the graph.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &GraphStats{
		AgentCount:   len(m.agents),
		FileCount:    len(m.files),
		PackageCount: len(m.packages),
		SymbolCount:  len(m.symbols),
		EdgeCount:    len(m.edges),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// chainTips returns the sorted set of final nodes across chains.
func chainTips(chains []DependencyChain) []string {
	seen := make(map[string]bool, len(chains))
	for _, c := range chains {
		seen[c.Nodes[len(c.Nodes)-1]] = true
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
