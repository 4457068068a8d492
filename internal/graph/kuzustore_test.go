//go:build cgo

package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a fresh in-memory KuzuStore with an initialized schema.
// It registers a cleanup function to close the store when the test finishes.
func newTestStore(t *testing.T) *KuzuStore {
	t.Helper()
	s, err := NewKuzuStore()
	require.NoError(t, err, "NewKuzuStore should not fail")
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx), "InitSchema should not fail")
	return s
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestKuzuStore_InitSchema(t *testing.T) {
	s, err := NewKuzuStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()

	// First call creates the tables.
	require.NoError(t, s.InitSchema(ctx))

	// Second call should be idempotent (IF NOT EXISTS).
	require.NoError(t, s.InitSchema(ctx))
}

func TestKuzuStore_AgentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := AgentNode{ID: "agent-api", Role: "backend", Priority: 3}
	require.NoError(t, s.AddAgent(ctx, agent))

	got, err := s.GetAgent(ctx, "agent-api")
	require.NoError(t, err)
	require.NotNil(t, got, "GetAgent should return a non-nil result")

	assert.Equal(t, agent.ID, got.ID)
	assert.Equal(t, agent.Role, got.Role)
	assert.Equal(t, agent.Priority, got.Priority)
}

func TestKuzuStore_GetAgent_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetAgent(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got, "GetAgent should return nil for a missing agent")
}

func TestKuzuStore_GetAllAgents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "zeta"}))
	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "alpha"}))
	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "mu"}))

	agents, err := s.GetAllAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 3)

	assert.Equal(t, "alpha", agents[0].ID, "agents come back ordered by ID")
	assert.Equal(t, "mu", agents[1].ID)
	assert.Equal(t, "zeta", agents[2].ID)
}

func TestKuzuStore_FileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	file := FileNode{
		Path:     "internal/api/users.go",
		Language: LangGo,
		LOC:      420,
	}

	require.NoError(t, s.AddFile(ctx, file))

	got, err := s.GetFile(ctx, file.Path)
	require.NoError(t, err)
	require.NotNil(t, got, "GetFile should return a non-nil result")

	assert.Equal(t, file.Path, got.Path)
	assert.Equal(t, file.Language, got.Language)
	assert.Equal(t, file.LOC, got.LOC)
}

func TestKuzuStore_GetFile_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetFile(ctx, "nonexistent.go")
	require.NoError(t, err)
	assert.Nil(t, got, "GetFile should return nil for a missing file")
}

func TestKuzuStore_MultipleLanguages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	files := []FileNode{
		{Path: "main.go", Language: LangGo, LOC: 50},
		{Path: "app.ts", Language: LangTypeScript, LOC: 120},
		{Path: "lib.py", Language: LangPython, LOC: 80},
		{Path: "core.rs", Language: LangRust, LOC: 200},
	}
	for _, f := range files {
		require.NoError(t, s.AddFile(ctx, f))
	}

	for _, f := range files {
		got, err := s.GetFile(ctx, f.Path)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, f.Language, got.Language, "Language mismatch for %s", f.Path)
	}
}

func TestKuzuStore_GetSymbolsForFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Inserted out of order; query returns them by start line.
	symbols := []SymbolNode{
		{Name: "Update", Kind: SymbolKindMethod, Exported: true, FilePath: "svc.go", StartLine: 30, EndLine: 45},
		{Name: "Service", Kind: SymbolKindType, Exported: true, FilePath: "svc.go", StartLine: 5, EndLine: 9},
		{Name: "New", Kind: SymbolKindFunction, Exported: true, FilePath: "svc.go", StartLine: 11, EndLine: 20},
		{Name: "other", Kind: SymbolKindFunction, Exported: false, FilePath: "other.go", StartLine: 1, EndLine: 3},
	}
	for _, sym := range symbols {
		require.NoError(t, s.AddSymbol(ctx, sym))
	}

	got, err := s.GetSymbolsForFile(ctx, "svc.go")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Service", got[0].Name)
	assert.Equal(t, "New", got[1].Name)
	assert.Equal(t, "Update", got[2].Name)

	assert.Equal(t, SymbolKindType, got[0].Kind)
	assert.True(t, got[0].Exported)
	assert.Equal(t, 5, got[0].StartLine)
	assert.Equal(t, 9, got[0].EndLine)
}

func TestKuzuStore_AllEdgeKinds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Endpoint nodes for every relationship table.
	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "a"}))
	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "b"}))
	require.NoError(t, s.AddFile(ctx, FileNode{Path: "x.go", Language: LangGo, LOC: 10}))
	require.NoError(t, s.AddFile(ctx, FileNode{Path: "y.go", Language: LangGo, LOC: 20}))
	require.NoError(t, s.AddPackage(ctx, PackageNode{Name: "github.com/google/uuid"}))
	require.NoError(t, s.AddSymbol(ctx, SymbolNode{
		Name: "X", Kind: SymbolKindFunction, Exported: true, FilePath: "x.go", StartLine: 1, EndLine: 5,
	}))

	edges := []Edge{
		{SourceID: "a", TargetID: "b", Kind: EdgeKindDependsOn, Label: DepDeclared},
		{SourceID: "a", TargetID: "x.go", Kind: EdgeKindModifies, Label: "modify"},
		{SourceID: "b", TargetID: "github.com/google/uuid", Kind: EdgeKindDeclares, Label: "1.6.0"},
		{SourceID: "x.go", TargetID: "x.go:X", Kind: EdgeKindDefines},
		{SourceID: "x.go", TargetID: "y.go", Kind: EdgeKindImports},
	}
	for _, e := range edges {
		require.NoError(t, s.AddEdge(ctx, e))
	}

	all, err := s.GetAllEdges(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)

	byKind := make(map[EdgeKind]Edge, len(all))
	for _, e := range all {
		byKind[e.Kind] = e
	}

	assert.Equal(t, DepDeclared, byKind[EdgeKindDependsOn].Label, "labels survive the round trip")
	assert.Equal(t, "modify", byKind[EdgeKindModifies].Label)
	assert.Equal(t, "1.6.0", byKind[EdgeKindDeclares].Label)
	assert.Equal(t, "x.go:X", byKind[EdgeKindDefines].TargetID)
	assert.Equal(t, "y.go", byKind[EdgeKindImports].TargetID)
}

func TestKuzuStore_AddEdge_UnknownKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddEdge(ctx, Edge{SourceID: "a", TargetID: "b", Kind: EdgeKind("BOGUS")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported edge kind")
}

func TestKuzuStore_Dependencies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// a depends on b, b depends on c.
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddAgent(ctx, AgentNode{ID: id}))
	}
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "a", TargetID: "b", Kind: EdgeKindDependsOn}))
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "b", TargetID: "c", Kind: EdgeKindDependsOn}))

	t.Run("upstream depth 1", func(t *testing.T) {
		chains, err := s.GetDependencies(ctx, "a", DirectionUpstream, 1)
		require.NoError(t, err)
		require.Len(t, chains, 1)
		assert.Equal(t, []string{"a", "b"}, chains[0].Nodes)
		assert.Equal(t, 1, chains[0].Depth)
	})

	t.Run("upstream unbounded", func(t *testing.T) {
		chains, err := s.GetDependencies(ctx, "a", DirectionUpstream, 10)
		require.NoError(t, err)
		require.Len(t, chains, 2)
		assert.Equal(t, []string{"a", "b"}, chains[0].Nodes)
		assert.Equal(t, []string{"a", "b", "c"}, chains[1].Nodes)
		assert.Equal(t, 2, chains[1].Depth)
	})

	t.Run("downstream from the root dependency", func(t *testing.T) {
		chains, err := s.GetDependencies(ctx, "c", DirectionDownstream, 10)
		require.NoError(t, err)
		require.Len(t, chains, 2)
		assert.Equal(t, []string{"c", "b"}, chains[0].Nodes)
		assert.Equal(t, []string{"c", "b", "a"}, chains[1].Nodes)
	})

	t.Run("leaf has no downstream", func(t *testing.T) {
		chains, err := s.GetDependencies(ctx, "a", DirectionDownstream, 10)
		require.NoError(t, err)
		assert.Empty(t, chains)
	})

	t.Run("zero depth", func(t *testing.T) {
		chains, err := s.GetDependencies(ctx, "a", DirectionUpstream, 0)
		require.NoError(t, err)
		assert.Empty(t, chains)
	})
}

func TestKuzuStore_Dependencies_Diamond(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// b and c depend on a; d depends on both b and c.
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.AddAgent(ctx, AgentNode{ID: id}))
	}
	pairs := [][2]string{{"b", "a"}, {"c", "a"}, {"d", "b"}, {"d", "c"}}
	for _, p := range pairs {
		require.NoError(t, s.AddEdge(ctx, Edge{SourceID: p[0], TargetID: p[1], Kind: EdgeKindDependsOn}))
	}

	chains, err := s.GetDependencies(ctx, "a", DirectionDownstream, 10)
	require.NoError(t, err)

	// d is reached once even though two paths exist.
	require.Len(t, chains, 3)
	assert.Equal(t, []string{"a", "b"}, chains[0].Nodes)
	assert.Equal(t, []string{"a", "c"}, chains[1].Nodes)
	assert.Equal(t, []string{"a", "b", "d"}, chains[2].Nodes)
	assert.Equal(t, 2, chains[2].Depth)
}

func TestKuzuStore_AssessImpact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// b depends on a, c depends on b; d is independent.
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.AddAgent(ctx, AgentNode{ID: id}))
	}
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "b", TargetID: "a", Kind: EdgeKindDependsOn}))
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "c", TargetID: "b", Kind: EdgeKindDependsOn}))

	result, err := s.AssessImpact(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{"b"}, result.DirectlyBlocked)
	assert.Equal(t, []string{"b", "c"}, result.TransitivelyBlocked)
	assert.InDelta(t, 2.0/3.0, result.RiskScore, 0.01)
}

func TestKuzuStore_AssessImpact_NoImpact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "solo"}))

	result, err := s.AssessImpact(ctx, "solo")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Empty(t, result.DirectlyBlocked)
	assert.Empty(t, result.TransitivelyBlocked)
	assert.InDelta(t, 0.0, result.RiskScore, 0.001)
}

func TestKuzuStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Start with an empty graph.
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.AgentCount)
	assert.Equal(t, 0, stats.FileCount)
	assert.Equal(t, 0, stats.PackageCount)
	assert.Equal(t, 0, stats.SymbolCount)
	assert.Equal(t, 0, stats.EdgeCount)

	// Populate the graph.
	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "a"}))
	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "b"}))
	require.NoError(t, s.AddFile(ctx, FileNode{Path: "x.go", Language: LangGo, LOC: 100}))
	require.NoError(t, s.AddPackage(ctx, PackageNode{Name: "gopkg.in/yaml.v3"}))
	require.NoError(t, s.AddSymbol(ctx, SymbolNode{
		Name: "Foo", Kind: SymbolKindFunction, Exported: true,
		FilePath: "x.go", StartLine: 1, EndLine: 10,
	}))

	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "a", TargetID: "b", Kind: EdgeKindDependsOn}))
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "a", TargetID: "x.go", Kind: EdgeKindModifies, Label: "modify"}))
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "x.go", TargetID: "x.go:Foo", Kind: EdgeKindDefines}))

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.AgentCount)
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 1, stats.PackageCount)
	assert.Equal(t, 1, stats.SymbolCount)
	assert.Equal(t, 3, stats.EdgeCount)
}

func TestKuzuFileStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "graph.kuzu")
	ctx := context.Background()

	s, err := NewKuzuFileStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.AddAgent(ctx, AgentNode{ID: "persisted", Role: "backend", Priority: 1}))
	require.NoError(t, s.Close())

	// Reopen and read back.
	s2, err := NewKuzuFileStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })
	require.NoError(t, s2.InitSchema(ctx))

	got, err := s2.GetAgent(ctx, "persisted")
	require.NoError(t, err)
	require.NotNil(t, got, "agent should survive reopening the database")
	assert.Equal(t, "backend", got.Role)
}

func TestKuzuStore_Close(t *testing.T) {
	s, err := NewKuzuStore()
	require.NoError(t, err)

	// Close should succeed without error.
	require.NoError(t, s.Close())
}
