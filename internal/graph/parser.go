package graph

import "context"

// ParseResult holds the extracted symbols and edges from a single file.
type ParseResult struct {
	File    FileNode     `json:"file"`
	Symbols []SymbolNode `json:"symbols"`
	Edges   []Edge       `json:"edges"` // IMPORTS edges (file -> import path)
}

// Parser extracts structural information from agent-submitted file contents.
// Implementations: TreeSitterParser (production), stub parsers in tests.
type Parser interface {
	// Parse extracts symbols and imports from a single source file.
	// source is the file content as submitted. lang selects the grammar.
	Parse(ctx context.Context, path string, source []byte, lang Language) (*ParseResult, error)

	// SupportedLanguages returns the languages this parser can handle.
	SupportedLanguages() []Language

	// Close releases parser resources (Tree-sitter C memory).
	Close() error
}
