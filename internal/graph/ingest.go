package graph

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// Ingestor populates a Store from a collected batch of agent outputs. Nodes
// and edges come from the batch itself (agents, files, packages, declared
// dependencies); when a Parser is attached, submitted file contents are
// parsed to add symbols, import edges, and implicit agent dependencies.
type Ingestor struct {
	store  Store
	parser Parser
	log    *zap.Logger
}

// IngestOption configures an Ingestor.
type IngestOption func(*Ingestor)

// WithParser attaches a source parser for symbol and import extraction.
func WithParser(p Parser) IngestOption {
	return func(in *Ingestor) { in.parser = p }
}

// WithLogger sets the logger used during ingestion.
func WithLogger(log *zap.Logger) IngestOption {
	return func(in *Ingestor) { in.log = log }
}

// NewIngestor creates an Ingestor writing to the given store.
func NewIngestor(store Store, opts ...IngestOption) *Ingestor {
	in := &Ingestor{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest builds the agent graph for a batch. base maps repo-relative paths to
// their pre-merge contents; together with the submitted files it forms the
// file set that import resolution runs against.
func (in *Ingestor) Ingest(ctx context.Context, batch *output.Batch, base map[string]string) error {
	if batch == nil {
		return fmt.Errorf("ingest: nil batch")
	}
	if err := in.store.InitSchema(ctx); err != nil {
		return fmt.Errorf("ingest: init schema: %w", err)
	}

	if err := in.addAgents(ctx, batch); err != nil {
		return err
	}

	union, owners := in.fileUnion(batch, base)
	if err := in.addFiles(ctx, batch, union); err != nil {
		return err
	}
	if err := in.addPackages(ctx, batch); err != nil {
		return err
	}

	declared, err := in.addDeclaredDependencies(ctx, batch)
	if err != nil {
		return err
	}

	if in.parser == nil {
		return nil
	}
	return in.parseOutputs(ctx, batch, union, owners, declared)
}

// addAgents inserts one Agent node per output.
func (in *Ingestor) addAgents(ctx context.Context, batch *output.Batch) error {
	for _, out := range batch.Outputs {
		node := AgentNode{ID: out.AgentID, Priority: out.Priority}
		if err := in.store.AddAgent(ctx, node); err != nil {
			return fmt.Errorf("ingest: add agent %s: %w", out.AgentID, err)
		}
	}
	return nil
}

// fileUnion merges base contents with submitted contents. When several agents
// submit the same path, the first agent in batch order wins; owners records
// every agent that modifies each path.
func (in *Ingestor) fileUnion(batch *output.Batch, base map[string]string) (map[string]string, map[string][]string) {
	union := make(map[string]string, len(base))
	for path, content := range base {
		union[path] = content
	}

	owners := make(map[string][]string)
	taken := make(map[string]bool)
	for _, out := range batch.Outputs {
		for _, fc := range out.Files {
			owners[fc.Path] = append(owners[fc.Path], out.AgentID)
			if fc.Op == output.OpDelete || fc.Content == "" {
				continue
			}
			if !taken[fc.Path] {
				union[fc.Path] = fc.Content
				taken[fc.Path] = true
			}
		}
	}
	return union, owners
}

// addFiles inserts File nodes for the full file union and MODIFIES edges for
// every declared change.
func (in *Ingestor) addFiles(ctx context.Context, batch *output.Batch, union map[string]string) error {
	paths := make([]string, 0, len(union))
	for path := range union {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		node := FileNode{
			Path:     path,
			Language: LanguageForPath(path),
			LOC:      countLOC([]byte(union[path])),
		}
		if err := in.store.AddFile(ctx, node); err != nil {
			return fmt.Errorf("ingest: add file %s: %w", path, err)
		}
	}

	for _, out := range batch.Outputs {
		for _, fc := range out.Files {
			edge := Edge{
				SourceID: out.AgentID,
				TargetID: fc.Path,
				Kind:     EdgeKindModifies,
				Label:    string(fc.Op),
			}
			if err := in.store.AddEdge(ctx, edge); err != nil {
				return fmt.Errorf("ingest: modifies edge %s -> %s: %w", out.AgentID, fc.Path, err)
			}
		}
	}
	return nil
}

// addPackages inserts Package nodes and DECLARES edges; the requested version
// rides on the edge label so divergent declarations stay visible.
func (in *Ingestor) addPackages(ctx context.Context, batch *output.Batch) error {
	seen := make(map[string]bool)
	for _, out := range batch.Outputs {
		pkgs := make([]string, 0, len(out.Dependencies))
		for pkg := range out.Dependencies {
			pkgs = append(pkgs, pkg)
		}
		sort.Strings(pkgs)

		for _, pkg := range pkgs {
			if !seen[pkg] {
				seen[pkg] = true
				if err := in.store.AddPackage(ctx, PackageNode{Name: pkg}); err != nil {
					return fmt.Errorf("ingest: add package %s: %w", pkg, err)
				}
			}
			edge := Edge{
				SourceID: out.AgentID,
				TargetID: pkg,
				Kind:     EdgeKindDeclares,
				Label:    out.Dependencies[pkg],
			}
			if err := in.store.AddEdge(ctx, edge); err != nil {
				return fmt.Errorf("ingest: declares edge %s -> %s: %w", out.AgentID, pkg, err)
			}
		}
	}
	return nil
}

// addDeclaredDependencies inserts DEPENDS_ON edges stated via requires lists.
// The returned set records "source->target" pairs already present.
func (in *Ingestor) addDeclaredDependencies(ctx context.Context, batch *output.Batch) (map[string]bool, error) {
	declared := make(map[string]bool)
	for _, out := range batch.Outputs {
		for _, req := range out.Requires {
			key := out.AgentID + "->" + req
			if declared[key] {
				continue
			}
			declared[key] = true
			edge := Edge{
				SourceID: out.AgentID,
				TargetID: req,
				Kind:     EdgeKindDependsOn,
				Label:    DepDeclared,
			}
			if err := in.store.AddEdge(ctx, edge); err != nil {
				return nil, fmt.Errorf("ingest: depends edge %s -> %s: %w", out.AgentID, req, err)
			}
		}
	}
	return declared, nil
}

// parseOutputs runs the parser over submitted file contents, adding symbols,
// DEFINES and IMPORTS edges, and implicit DEPENDS_ON edges where one agent's
// code imports a file another agent modified.
func (in *Ingestor) parseOutputs(ctx context.Context, batch *output.Batch, union map[string]string, owners map[string][]string, declared map[string]bool) error {
	supported := make(map[Language]bool)
	for _, lang := range in.parser.SupportedLanguages() {
		supported[lang] = true
	}
	resolver := NewResolver(union)

	parsedFile := make(map[string]bool)
	importSeen := make(map[string]bool)

	for _, out := range batch.Outputs {
		for _, fc := range out.Files {
			if fc.Op == output.OpDelete || fc.Content == "" {
				continue
			}
			lang := LanguageForPath(fc.Path)
			if !supported[lang] {
				continue
			}

			res, err := in.parser.Parse(ctx, fc.Path, []byte(fc.Content), lang)
			if err != nil {
				in.log.Warn("parse failed, skipping file",
					zap.String("agent", out.AgentID),
					zap.String("path", fc.Path),
					zap.Error(err))
				continue
			}

			// Symbols are stored once per path even when several agents touch
			// it; the first submitted version wins, same as the file union.
			if !parsedFile[fc.Path] {
				parsedFile[fc.Path] = true
				symSeen := make(map[string]bool)
				for _, sym := range res.Symbols {
					// Same-named symbols in one file (e.g. methods on two
					// receivers) collapse to a single node.
					id := symbolID(sym.FilePath, sym.Name)
					if symSeen[id] {
						continue
					}
					symSeen[id] = true
					if err := in.store.AddSymbol(ctx, sym); err != nil {
						return fmt.Errorf("ingest: add symbol %s: %w", sym.Name, err)
					}
					edge := Edge{
						SourceID: fc.Path,
						TargetID: id,
						Kind:     EdgeKindDefines,
					}
					if err := in.store.AddEdge(ctx, edge); err != nil {
						return fmt.Errorf("ingest: defines edge for %s: %w", sym.Name, err)
					}
				}
			}

			for _, edge := range resolver.ResolveAll(res.Edges, lang) {
				if edge.Kind != EdgeKindImports {
					continue
				}
				key := edge.SourceID + "->" + edge.TargetID
				if !importSeen[key] {
					importSeen[key] = true
					if err := in.store.AddEdge(ctx, edge); err != nil {
						return fmt.Errorf("ingest: imports edge %s: %w", key, err)
					}
				}

				// Importing a file someone else modified implies a merge
				// ordering between the two agents.
				for _, owner := range owners[edge.TargetID] {
					if owner == out.AgentID {
						continue
					}
					depKey := out.AgentID + "->" + owner
					if declared[depKey] {
						continue
					}
					declared[depKey] = true
					dep := Edge{
						SourceID: out.AgentID,
						TargetID: owner,
						Kind:     EdgeKindDependsOn,
						Label:    DepImplicit,
					}
					if err := in.store.AddEdge(ctx, dep); err != nil {
						return fmt.Errorf("ingest: implicit depends edge %s: %w", depKey, err)
					}
					in.log.Debug("implicit dependency",
						zap.String("from", out.AgentID),
						zap.String("to", owner),
						zap.String("via", edge.TargetID))
				}
			}
		}
	}
	return nil
}

// DeclaredDependencies returns the DEPENDS_ON edges stated directly in the
// batch via requires lists, without consulting a store or parser.
func DeclaredDependencies(batch *output.Batch) []Edge {
	var edges []Edge
	seen := make(map[string]bool)
	for _, out := range batch.Outputs {
		for _, req := range out.Requires {
			key := out.AgentID + "->" + req
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, Edge{
				SourceID: out.AgentID,
				TargetID: req,
				Kind:     EdgeKindDependsOn,
				Label:    DepDeclared,
			})
		}
	}
	return edges
}
