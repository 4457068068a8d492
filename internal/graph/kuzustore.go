//go:build cgo

package graph

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(":memory:", cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the directory itself for new databases.
// This lets a merge graph persist under .orchestrate/ across runs.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	// Ensure parent directory exists (KuzuDB creates the leaf directory).
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(dbPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open file database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Agent(
		id STRING,
		role STRING,
		priority INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS File(
		path STRING,
		language STRING,
		loc INT64,
		PRIMARY KEY(path)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Package(
		name STRING,
		PRIMARY KEY(name)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Symbol(
		id STRING,
		name STRING,
		kind STRING,
		exported BOOLEAN,
		file_path STRING,
		start_line INT64,
		end_line INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS DEPENDS_ON(FROM Agent TO Agent, label STRING)`,
	`CREATE REL TABLE IF NOT EXISTS MODIFIES(FROM Agent TO File, label STRING)`,
	`CREATE REL TABLE IF NOT EXISTS DECLARES(FROM Agent TO Package, label STRING)`,
	`CREATE REL TABLE IF NOT EXISTS DEFINES(FROM File TO Symbol, label STRING)`,
	`CREATE REL TABLE IF NOT EXISTS IMPORTS(FROM File TO File, label STRING)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddAgent inserts an Agent node.
func (s *KuzuStore) AddAgent(_ context.Context, node AgentNode) error {
	return s.exec(
		"CREATE (a:Agent {id: $id, role: $role, priority: $prio})",
		map[string]any{
			"id":   node.ID,
			"role": node.Role,
			"prio": int64(node.Priority),
		},
	)
}

// AddFile inserts a File node.
func (s *KuzuStore) AddFile(_ context.Context, node FileNode) error {
	return s.exec(
		"CREATE (f:File {path: $path, language: $lang, loc: $loc})",
		map[string]any{
			"path": node.Path,
			"lang": string(node.Language),
			"loc":  int64(node.LOC),
		},
	)
}

// AddPackage inserts a Package node.
func (s *KuzuStore) AddPackage(_ context.Context, node PackageNode) error {
	return s.exec(
		"CREATE (p:Package {name: $name})",
		map[string]any{"name": node.Name},
	)
}

// AddSymbol inserts a Symbol node.
func (s *KuzuStore) AddSymbol(_ context.Context, node SymbolNode) error {
	return s.exec(
		`CREATE (s:Symbol {
			id: $id,
			name: $name,
			kind: $kind,
			exported: $exported,
			file_path: $fp,
			start_line: $sl,
			end_line: $el
		})`,
		map[string]any{
			"id":       symbolID(node.FilePath, node.Name),
			"name":     node.Name,
			"kind":     string(node.Kind),
			"exported": node.Exported,
			"fp":       node.FilePath,
			"sl":       int64(node.StartLine),
			"el":       int64(node.EndLine),
		},
	)
}

// AddEdge inserts a relationship edge between two nodes.
// The Cypher statement is chosen based on the EdgeKind.
func (s *KuzuStore) AddEdge(_ context.Context, edge Edge) error {
	cypher, err := edgeCypher(edge.Kind)
	if err != nil {
		return err
	}
	return s.exec(cypher, map[string]any{
		"src":   edge.SourceID,
		"dst":   edge.TargetID,
		"label": edge.Label,
	})
}

// edgeCypher returns the MATCH-CREATE Cypher for the given edge kind.
func edgeCypher(kind EdgeKind) (string, error) {
	switch kind {
	case EdgeKindDependsOn:
		return `MATCH (a:Agent {id: $src}), (b:Agent {id: $dst})
				CREATE (a)-[:DEPENDS_ON {label: $label}]->(b)`, nil
	case EdgeKindModifies:
		return `MATCH (a:Agent {id: $src}), (b:File {path: $dst})
				CREATE (a)-[:MODIFIES {label: $label}]->(b)`, nil
	case EdgeKindDeclares:
		return `MATCH (a:Agent {id: $src}), (b:Package {name: $dst})
				CREATE (a)-[:DECLARES {label: $label}]->(b)`, nil
	case EdgeKindDefines:
		return `MATCH (a:File {path: $src}), (b:Symbol {id: $dst})
				CREATE (a)-[:DEFINES {label: $label}]->(b)`, nil
	case EdgeKindImports:
		return `MATCH (a:File {path: $src}), (b:File {path: $dst})
				CREATE (a)-[:IMPORTS {label: $label}]->(b)`, nil
	default:
		return "", fmt.Errorf("kuzu: unsupported edge kind: %s", kind)
	}
}

// ---------- Read operations ----------

// GetAgent retrieves a single Agent node by ID, or returns nil if not found.
func (s *KuzuStore) GetAgent(_ context.Context, id string) (*AgentNode, error) {
	rows, err := s.query(
		"MATCH (a:Agent {id: $id}) RETURN a.id, a.role, a.priority",
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &AgentNode{
		ID:       toString(r[0]),
		Role:     toString(r[1]),
		Priority: toInt(r[2]),
	}, nil
}

// GetFile retrieves a single File node by path, or returns nil if not found.
func (s *KuzuStore) GetFile(_ context.Context, path string) (*FileNode, error) {
	rows, err := s.query(
		"MATCH (f:File {path: $path}) RETURN f.path, f.language, f.loc",
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &FileNode{
		Path:     toString(r[0]),
		Language: Language(toString(r[1])),
		LOC:      toInt(r[2]),
	}, nil
}

// GetAllAgents returns all Agent nodes ordered by ID.
func (s *KuzuStore) GetAllAgents(_ context.Context) ([]AgentNode, error) {
	rows, err := s.query(
		"MATCH (a:Agent) RETURN a.id, a.role, a.priority ORDER BY a.id",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make([]AgentNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, AgentNode{
			ID:       toString(r[0]),
			Role:     toString(r[1]),
			Priority: toInt(r[2]),
		})
	}
	return out, nil
}

// GetSymbolsForFile returns the symbols of one file ordered by start line.
func (s *KuzuStore) GetSymbolsForFile(_ context.Context, path string) ([]SymbolNode, error) {
	rows, err := s.query(
		`MATCH (s:Symbol {file_path: $path})
		 RETURN s.name, s.kind, s.exported, s.file_path, s.start_line, s.end_line
		 ORDER BY s.start_line, s.name`,
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	out := make([]SymbolNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToSymbol(r))
	}
	return out, nil
}

// ---------- Graph traversal ----------

// GetDependencies performs a BFS over DEPENDS_ON edges starting from the
// given agent. It returns one DependencyChain per reachable agent.
func (s *KuzuStore) GetDependencies(_ context.Context, agentID string, dir Direction, maxDepth int) ([]DependencyChain, error) {
	if maxDepth <= 0 {
		return nil, nil
	}

	// BFS state.
	type bfsEntry struct {
		path  []string
		depth int
	}
	visited := map[string]bool{agentID: true}
	queue := []bfsEntry{{path: []string{agentID}, depth: 0}}
	var chains []DependencyChain

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		tip := cur.path[len(cur.path)-1]
		neighbors, err := s.agentNeighbors(tip, dir)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			newPath := make([]string, len(cur.path)+1)
			copy(newPath, cur.path)
			newPath[len(cur.path)] = nb
			chains = append(chains, DependencyChain{
				Nodes: newPath,
				Depth: cur.depth + 1,
			})
			queue = append(queue, bfsEntry{path: newPath, depth: cur.depth + 1})
		}
	}
	return chains, nil
}

// agentNeighbors returns immediate agent neighbors along DEPENDS_ON edges,
// sorted. An edge source depends on its target, so upstream follows
// source→target and downstream follows target→source.
func (s *KuzuStore) agentNeighbors(id string, dir Direction) ([]string, error) {
	var cypher string
	switch dir {
	case DirectionUpstream:
		cypher = "MATCH (a:Agent {id: $id})-[:DEPENDS_ON]->(b:Agent) RETURN b.id"
	case DirectionDownstream:
		cypher = "MATCH (a:Agent)-[:DEPENDS_ON]->(b:Agent {id: $id}) RETURN a.id"
	default:
		return nil, fmt.Errorf("kuzu: unknown direction: %s", dir)
	}
	rows, err := s.query(cypher, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r[0]))
	}
	sort.Strings(out)
	return out, nil
}

// AssessImpact computes which agents are blocked if agentID's merge step
// fails, by walking DEPENDS_ON edges downstream.
func (s *KuzuStore) AssessImpact(ctx context.Context, agentID string) (*ImpactResult, error) {
	total, err := s.countTable("Agent")
	if err != nil {
		return nil, err
	}

	direct, err := s.GetDependencies(ctx, agentID, DirectionDownstream, 1)
	if err != nil {
		return nil, err
	}
	all, err := s.GetDependencies(ctx, agentID, DirectionDownstream, total+1)
	if err != nil {
		return nil, err
	}

	directIDs := chainTips(direct)
	allIDs := chainTips(all)

	risk := 0.0
	if total > 1 {
		risk = math.Min(1.0, float64(len(allIDs))/float64(total-1))
	}

	return &ImpactResult{
		DirectlyBlocked:     directIDs,
		TransitivelyBlocked: allIDs,
		RiskScore:           risk,
	}, nil
}

// ---------- Edge enumeration ----------

// GetAllEdges returns all edges across all relationship tables.
func (s *KuzuStore) GetAllEdges(_ context.Context) ([]Edge, error) {
	type relQuery struct {
		cypher string
		kind   EdgeKind
	}

	queries := []relQuery{
		{"MATCH (a:Agent)-[r:DEPENDS_ON]->(b:Agent) RETURN a.id, b.id, r.label", EdgeKindDependsOn},
		{"MATCH (a:Agent)-[r:MODIFIES]->(b:File) RETURN a.id, b.path, r.label", EdgeKindModifies},
		{"MATCH (a:Agent)-[r:DECLARES]->(b:Package) RETURN a.id, b.name, r.label", EdgeKindDeclares},
		{"MATCH (a:File)-[r:DEFINES]->(b:Symbol) RETURN a.path, b.id, r.label", EdgeKindDefines},
		{"MATCH (a:File)-[r:IMPORTS]->(b:File) RETURN a.path, b.path, r.label", EdgeKindImports},
	}

	var edges []Edge
	for _, q := range queries {
		rows, err := s.query(q.cypher, nil)
		if err != nil {
			// Table may not exist yet; skip.
			continue
		}
		for _, r := range rows {
			edges = append(edges, Edge{
				SourceID: toString(r[0]),
				TargetID: toString(r[1]),
				Kind:     q.kind,
				Label:    toString(r[2]),
			})
		}
	}
	return edges, nil
}

// ---------- Stats ----------

// Stats returns counts of all node and edge tables.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	agents, err := s.countTable("Agent")
	if err != nil {
		return nil, err
	}
	files, err := s.countTable("File")
	if err != nil {
		return nil, err
	}
	packages, err := s.countTable("Package")
	if err != nil {
		return nil, err
	}
	symbols, err := s.countTable("Symbol")
	if err != nil {
		return nil, err
	}
	edges, err := s.countEdges()
	if err != nil {
		return nil, err
	}
	return &GraphStats{
		AgentCount:   agents,
		FileCount:    files,
		PackageCount: packages,
		SymbolCount:  symbols,
		EdgeCount:    edges,
	}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table.
func (s *KuzuStore) countTable(table string) (int, error) {
	// Table name is a fixed internal constant, not user input.
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table)
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// countEdges returns the total number of edges across all relationship tables.
func (s *KuzuStore) countEdges() (int, error) {
	tables := []string{"DEPENDS_ON", "MODIFIES", "DECLARES", "DEFINES", "IMPORTS"}
	total := 0
	for _, t := range tables {
		cypher := fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", t)
		rows, err := s.query(cypher, nil)
		if err != nil {
			// Table may not exist yet; treat as zero.
			continue
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			total += toInt(rows[0][0])
		}
	}
	return total, nil
}

// rowToSymbol converts a 6-column result row into a SymbolNode.
// Column order: name, kind, exported, file_path, start_line, end_line.
func rowToSymbol(r []any) *SymbolNode {
	return &SymbolNode{
		Name:      toString(r[0]),
		Kind:      SymbolKind(toString(r[1])),
		Exported:  toBool(r[2]),
		FilePath:  toString(r[3]),
		StartLine: toInt(r[4]),
		EndLine:   toInt(r[5]),
	}
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).
// These helpers safely coerce any -> concrete type.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
