package graph

import "path/filepath"

// --- Enums ---

// NodeKind classifies nodes in the merge dependency graph.
type NodeKind string

const (
	NodeKindAgent   NodeKind = "agent"
	NodeKindFile    NodeKind = "file"
	NodeKindPackage NodeKind = "package"
	NodeKindSymbol  NodeKind = "symbol"
)

// SymbolKind classifies symbols extracted from submitted file contents.
type SymbolKind string

const (
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindType      SymbolKind = "type"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindMethod    SymbolKind = "method"
)

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	// EdgeKindDependsOn orders agents: the source's changes build on the
	// target's and must merge after them.
	EdgeKindDependsOn EdgeKind = "DEPENDS_ON"
	// EdgeKindModifies links an agent to a file it changed.
	EdgeKindModifies EdgeKind = "MODIFIES"
	// EdgeKindDeclares links an agent to a package it requires.
	EdgeKindDeclares EdgeKind = "DECLARES"
	// EdgeKindDefines links a file to a symbol found in its content.
	EdgeKindDefines EdgeKind = "DEFINES"
	// EdgeKindImports links two submitted files.
	EdgeKindImports EdgeKind = "IMPORTS"
)

// Edge labels distinguishing how a DEPENDS_ON edge was established.
const (
	DepDeclared = "declared" // agent listed it in requires
	DepImplicit = "implicit" // derived from a cross-agent file import
)

// Language identifies a programming language for parsing.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangUnknown    Language = ""
)

// LanguageForPath maps a file extension to its language.
func LanguageForPath(path string) Language {
	switch filepath.Ext(path) {
	case ".go":
		return LangGo
	case ".ts", ".tsx":
		return LangTypeScript
	case ".py":
		return LangPython
	case ".rs":
		return LangRust
	default:
		return LangUnknown
	}
}

// --- Models ---

// AgentNode represents one agent whose output participates in the merge.
type AgentNode struct {
	ID       string `json:"id"`
	Role     string `json:"role,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// FileNode represents a file touched by at least one agent.
type FileNode struct {
	Path     string   `json:"path"`
	Language Language `json:"language,omitempty"`
	LOC      int      `json:"loc,omitempty"`
}

// PackageNode represents an external dependency some agent requires.
// Versions live on the DECLARES edges, since agents may disagree.
type PackageNode struct {
	Name string `json:"name"`
}

// SymbolNode represents a named symbol parsed from a submitted file content.
type SymbolNode struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Exported  bool       `json:"exported"`
	FilePath  string     `json:"file_path"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
}

// Edge represents a relationship between two nodes. Label carries the
// declared version on DECLARES edges and the provenance on DEPENDS_ON edges.
type Edge struct {
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Kind     EdgeKind `json:"kind"`
	Label    string   `json:"label,omitempty"`
}

// GraphStats summarizes a merge dependency graph.
type GraphStats struct {
	AgentCount   int `json:"agent_count"`
	FileCount    int `json:"file_count"`
	PackageCount int `json:"package_count"`
	SymbolCount  int `json:"symbol_count"`
	EdgeCount    int `json:"edge_count"`
}

// DependencyChain is an ordered path of agent IDs, starting at the queried
// agent.
type DependencyChain struct {
	Nodes []string `json:"nodes"`
	Depth int      `json:"depth"`
}

// ImpactResult describes which agents are blocked if one agent's merge step
// fails: its direct dependents, the full downstream closure, and the share
// of the batch that closure represents.
type ImpactResult struct {
	DirectlyBlocked     []string `json:"directly_blocked"`
	TransitivelyBlocked []string `json:"transitively_blocked"`
	RiskScore           float64  `json:"risk_score"`
}
