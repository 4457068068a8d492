package conflict

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// SymbolResolver maps a file's declared content to the symbols a change
// touches. When the detector has one, overlapping line ranges that turn out
// to touch disjoint symbols are downgraded from high to medium severity.
type SymbolResolver interface {
	ModifiedSymbols(ctx context.Context, path, content string, ranges []output.LineRange) ([]string, error)
}

// Detector scans a validated batch for the four conflict kinds. It never
// mutates outputs; the same batch always yields the same report.
type Detector struct {
	resolver SymbolResolver
	log      *zap.Logger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithSymbolResolver enables symbol-granularity refinement of file overlaps.
func WithSymbolResolver(r SymbolResolver) DetectorOption {
	return func(d *Detector) { d.resolver = r }
}

// WithLogger sets the detector's logger.
func WithLogger(log *zap.Logger) DetectorOption {
	return func(d *Detector) { d.log = log }
}

// NewDetector creates a Detector.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect runs all four detectors over the batch and returns conflicts in
// report order. An internal failure aborts with a *DetectionError; no
// partial report is ever returned.
func (d *Detector) Detect(ctx context.Context, batch *output.Batch) ([]Conflict, error) {
	if batch == nil {
		return nil, &DetectionError{Stage: "setup", Err: fmt.Errorf("nil batch")}
	}

	var conflicts []Conflict

	fileConflicts, err := d.detectFiles(ctx, batch)
	if err != nil {
		return nil, &DetectionError{Stage: "file analysis", Err: err}
	}
	conflicts = append(conflicts, fileConflicts...)
	conflicts = append(conflicts, d.detectDependencies(batch)...)
	conflicts = append(conflicts, d.detectSchema(batch)...)
	conflicts = append(conflicts, d.detectBehaviors(batch)...)

	SortConflicts(conflicts)

	d.log.Debug("detection complete",
		zap.Int("agents", len(batch.Outputs)),
		zap.Int("conflicts", len(conflicts)))
	return conflicts, nil
}

// fileTouch pairs an agent with its change to one path.
type fileTouch struct {
	agentID string
	change  *output.FileChange
}

func (d *Detector) detectFiles(ctx context.Context, batch *output.Batch) ([]Conflict, error) {
	byPath := make(map[string][]fileTouch)
	for i := range batch.Outputs {
		out := &batch.Outputs[i]
		for j := range out.Files {
			fc := &out.Files[j]
			byPath[fc.Path] = append(byPath[fc.Path], fileTouch{agentID: out.AgentID, change: fc})
		}
	}

	paths := make([]string, 0, len(byPath))
	for p, touches := range byPath {
		if len(touches) > 1 {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var conflicts []Conflict
	for _, path := range paths {
		touches := byPath[path]
		sort.Slice(touches, func(i, j int) bool { return touches[i].agentID < touches[j].agentID })

		c, err := d.classifyFileConflict(ctx, path, touches)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, nil
}

func (d *Detector) classifyFileConflict(ctx context.Context, path string, touches []fileTouch) (Conflict, error) {
	agents := make([]string, len(touches))
	values := make(map[string]string, len(touches))
	ranges := make(map[string][]output.LineRange, len(touches))
	deletes, undeclared := false, false
	for i, t := range touches {
		agents[i] = t.agentID
		values[t.agentID] = describeChange(t.change)
		ranges[t.agentID] = t.change.Ranges
		if t.change.Op == output.OpDelete {
			deletes = true
		}
		if t.change.Op != output.OpDelete && len(t.change.Ranges) == 0 {
			undeclared = true
		}
	}

	c := Conflict{
		ID:      conflictID(KindFile, path),
		Kind:    KindFile,
		Agents:  agents,
		Subject: path,
		Values:  values,
		Ranges:  ranges,
	}

	switch {
	case deletes:
		c.Severity = SeverityHigh
		c.Detail = fmt.Sprintf("%s: delete races a concurrent change", path)
	case undeclared:
		c.Severity = SeverityHigh
		c.Detail = fmt.Sprintf("%s: changes without declared line ranges cannot be proven disjoint", path)
	case rangesDisjoint(touches):
		c.Severity = SeverityMedium
		c.Detail = fmt.Sprintf("%s: %d agents changed disjoint line ranges", path, len(touches))
	default:
		c.Severity = SeverityHigh
		c.Detail = fmt.Sprintf("%s: declared line ranges overlap", path)

		demoted, err := d.refineOverlap(ctx, path, touches)
		if err != nil {
			return Conflict{}, err
		}
		if demoted {
			c.Severity = SeverityMedium
			c.Detail = fmt.Sprintf("%s: line ranges overlap but the changes touch disjoint symbols", path)
		}
	}

	return c, nil
}

// refineOverlap asks the symbol resolver whether overlapping changes in fact
// touch disjoint symbols. It only answers when every involved change carries
// full content.
func (d *Detector) refineOverlap(ctx context.Context, path string, touches []fileTouch) (bool, error) {
	if d.resolver == nil {
		return false, nil
	}
	for _, t := range touches {
		if t.change.Content == "" {
			return false, nil
		}
	}

	seen := make(map[string]bool)
	for _, t := range touches {
		symbols, err := d.resolver.ModifiedSymbols(ctx, path, t.change.Content, t.change.Ranges)
		if err != nil {
			return false, fmt.Errorf("resolve symbols for %s (%s): %w", path, t.agentID, err)
		}
		if len(symbols) == 0 {
			// Change outside any known symbol; stay conservative.
			return false, nil
		}
		for _, sym := range symbols {
			if seen[sym] {
				return false, nil
			}
		}
		for _, sym := range symbols {
			seen[sym] = true
		}
	}
	return true, nil
}

func rangesDisjoint(touches []fileTouch) bool {
	for i := 0; i < len(touches); i++ {
		for j := i + 1; j < len(touches); j++ {
			for _, a := range touches[i].change.Ranges {
				for _, b := range touches[j].change.Ranges {
					if a.Overlaps(b) {
						return false
					}
				}
			}
		}
	}
	return true
}

func describeChange(fc *output.FileChange) string {
	if len(fc.Ranges) == 0 {
		return string(fc.Op)
	}
	spans := make([]string, len(fc.Ranges))
	for i, r := range fc.Ranges {
		spans[i] = fmt.Sprintf("%d-%d", r.Start, r.End)
	}
	return fmt.Sprintf("%s %s", fc.Op, strings.Join(spans, ","))
}

func (d *Detector) detectDependencies(batch *output.Batch) []Conflict {
	// package → version → declaring agents
	byPackage := make(map[string]map[string][]string)
	for i := range batch.Outputs {
		out := &batch.Outputs[i]
		for pkg, version := range out.Dependencies {
			if byPackage[pkg] == nil {
				byPackage[pkg] = make(map[string][]string)
			}
			byPackage[pkg][version] = append(byPackage[pkg][version], out.AgentID)
		}
	}

	pkgs := make([]string, 0, len(byPackage))
	for pkg, versions := range byPackage {
		if len(versions) > 1 {
			pkgs = append(pkgs, pkg)
		}
	}
	sort.Strings(pkgs)

	var conflicts []Conflict
	for _, pkg := range pkgs {
		versions := byPackage[pkg]

		var agents []string
		values := make(map[string]string)
		distinct := make([]string, 0, len(versions))
		for version, declaredBy := range versions {
			distinct = append(distinct, version)
			for _, agent := range declaredBy {
				agents = append(agents, agent)
				values[agent] = version
			}
		}
		sort.Strings(agents)
		sort.Strings(distinct)

		severity := SeverityHigh
		for i := 0; i < len(distinct); i++ {
			for j := i + 1; j < len(distinct); j++ {
				if MajorsDiffer(distinct[i], distinct[j]) {
					severity = SeverityCritical
				}
			}
		}

		conflicts = append(conflicts, Conflict{
			ID:       conflictID(KindDependency, pkg),
			Kind:     KindDependency,
			Agents:   agents,
			Severity: severity,
			Subject:  pkg,
			Detail:   fmt.Sprintf("%s required at %s", pkg, strings.Join(distinct, " vs ")),
			Values:   values,
		})
	}
	return conflicts
}

// schemaDecl is one agent's spelling+type for a canonical field.
type schemaDecl struct {
	agentID  string
	declared string
	typ      string
}

func (d *Detector) detectSchema(batch *output.Batch) []Conflict {
	byField := make(map[string][]schemaDecl)
	for i := range batch.Outputs {
		out := &batch.Outputs[i]
		for declared, typ := range out.Schema {
			canon := output.CanonicalField(declared)
			byField[canon] = append(byField[canon], schemaDecl{
				agentID:  out.AgentID,
				declared: declared,
				typ:      typ,
			})
		}
	}

	fields := make([]string, 0, len(byField))
	for f, decls := range byField {
		if len(decls) > 1 {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	var conflicts []Conflict
	for _, field := range fields {
		decls := byField[field]
		sort.Slice(decls, func(i, j int) bool { return decls[i].agentID < decls[j].agentID })

		typesDiffer, namesDiffer := false, false
		for i := 1; i < len(decls); i++ {
			if output.CanonicalType(decls[i].typ) != output.CanonicalType(decls[0].typ) {
				typesDiffer = true
			}
			if decls[i].declared != decls[0].declared {
				namesDiffer = true
			}
		}
		if !typesDiffer && !namesDiffer {
			continue
		}

		agents := make([]string, len(decls))
		values := make(map[string]string, len(decls))
		for i, decl := range decls {
			agents[i] = decl.agentID
			values[decl.agentID] = fmt.Sprintf("%s:%s", decl.declared, decl.typ)
		}

		c := Conflict{
			ID:      conflictID(KindSchema, field),
			Kind:    KindSchema,
			Agents:  agents,
			Subject: field,
			Values:  values,
		}
		if typesDiffer {
			c.Severity = SeverityCritical
			c.Detail = fmt.Sprintf("field %s declared with incompatible types", field)
		} else {
			c.Severity = SeverityHigh
			c.Detail = fmt.Sprintf("field %s declared under different names", field)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts
}

func (d *Detector) detectBehaviors(batch *output.Batch) []Conflict {
	byTag := make(map[string]map[string]string) // tag → agent → value
	for i := range batch.Outputs {
		out := &batch.Outputs[i]
		for tag, value := range out.Behaviors {
			if byTag[tag] == nil {
				byTag[tag] = make(map[string]string)
			}
			byTag[tag][out.AgentID] = value
		}
	}

	tags := make([]string, 0, len(byTag))
	for tag, values := range byTag {
		distinct := make(map[string]bool)
		for _, v := range values {
			distinct[v] = true
		}
		if len(distinct) > 1 {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)

	var conflicts []Conflict
	for _, tag := range tags {
		values := byTag[tag]
		agents := make([]string, 0, len(values))
		distinct := make(map[string]bool)
		for agent, v := range values {
			agents = append(agents, agent)
			distinct[v] = true
		}
		sort.Strings(agents)

		choices := make([]string, 0, len(distinct))
		for v := range distinct {
			choices = append(choices, v)
		}
		sort.Strings(choices)

		conflicts = append(conflicts, Conflict{
			ID:       conflictID(KindSemantic, tag),
			Kind:     KindSemantic,
			Agents:   agents,
			Severity: SeverityHigh,
			Subject:  tag,
			Detail:   fmt.Sprintf("agents disagree on %s: %s", tag, strings.Join(choices, " vs ")),
			Values:   values,
		})
	}
	return conflicts
}
