package graph

import (
	"context"
	"io"
)

// Store is the interface for the merge dependency graph backend.
// Implementations: KuzuStore (persistent, cgo builds), MemStore (default).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddAgent(ctx context.Context, node AgentNode) error
	AddFile(ctx context.Context, node FileNode) error
	AddPackage(ctx context.Context, node PackageNode) error
	AddSymbol(ctx context.Context, node SymbolNode) error
	AddEdge(ctx context.Context, edge Edge) error

	// Read operations.
	GetAgent(ctx context.Context, id string) (*AgentNode, error)
	GetFile(ctx context.Context, path string) (*FileNode, error)
	GetAllAgents(ctx context.Context) ([]AgentNode, error)
	GetAllEdges(ctx context.Context) ([]Edge, error)
	GetSymbolsForFile(ctx context.Context, path string) ([]SymbolNode, error)

	// Traversal over DEPENDS_ON edges between agents.
	GetDependencies(ctx context.Context, agentID string, direction Direction, maxDepth int) ([]DependencyChain, error)
	AssessImpact(ctx context.Context, agentID string) (*ImpactResult, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}

// Direction controls dependency traversal direction.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"   // what does this agent build on?
	DirectionDownstream Direction = "downstream" // which agents build on this one?
)
