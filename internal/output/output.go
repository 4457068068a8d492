// Package output defines the agent output model and the collector that
// validates a batch of outputs before conflict detection runs.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FileOp describes what an agent did to a file.
type FileOp string

const (
	OpCreate FileOp = "create"
	OpModify FileOp = "modify"
	OpDelete FileOp = "delete"
)

// LineRange is a 1-based inclusive span of lines an agent declares it touched.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two ranges share at least one line.
func (r LineRange) Overlaps(other LineRange) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// FileChange is one file an agent created, modified, or deleted. Ranges are
// the declared modified spans; Content, when present, is the full post-change
// file content.
type FileChange struct {
	Path    string      `json:"path"`
	Op      FileOp      `json:"op,omitempty"`
	Ranges  []LineRange `json:"ranges,omitempty"`
	Content string      `json:"content,omitempty"`
}

// UnmarshalJSON accepts either a bare path string or the full object form.
// Upstream capture tooling emits plain path lists when it has no range data.
func (fc *FileChange) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err == nil {
		fc.Path = path
		fc.Op = OpModify
		return nil
	}

	type alias FileChange
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*fc = FileChange(a)
	if fc.Op == "" {
		fc.Op = OpModify
	}
	return nil
}

// AgentOutput is the complete result one agent submitted after a parallel
// execution: the files it changed, the data schema and dependency versions it
// declares, behavior tags describing contract-level choices, and the agents
// whose work it builds on.
type AgentOutput struct {
	AgentID      string            `json:"agent_id"`
	Files        []FileChange      `json:"modified_files"`
	Schema       map[string]string `json:"declared_schema,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Behaviors    map[string]string `json:"behaviors,omitempty"`
	Requires     []string          `json:"requires,omitempty"`
	Priority     int               `json:"priority,omitempty"`
	CtxpackRef   string            `json:"ctxpack_ref,omitempty"`
	SubmittedAt  time.Time         `json:"submitted_at,omitzero"`
}

// Paths returns the sorted set of file paths this output touches.
func (o *AgentOutput) Paths() []string {
	paths := make([]string, 0, len(o.Files))
	for _, fc := range o.Files {
		paths = append(paths, fc.Path)
	}
	sort.Strings(paths)
	return paths
}

// Change returns the FileChange for path, or nil.
func (o *AgentOutput) Change(path string) *FileChange {
	for i := range o.Files {
		if o.Files[i].Path == path {
			return &o.Files[i]
		}
	}
	return nil
}

// Clone returns a deep copy. Stores that hand outputs across goroutine
// boundaries copy on the way in and out.
func (o *AgentOutput) Clone() *AgentOutput {
	c := *o
	if o.Files != nil {
		c.Files = make([]FileChange, len(o.Files))
		for i, fc := range o.Files {
			c.Files[i] = fc
			c.Files[i].Ranges = append([]LineRange(nil), fc.Ranges...)
		}
	}
	c.Schema = cloneStringMap(o.Schema)
	c.Dependencies = cloneStringMap(o.Dependencies)
	c.Behaviors = cloneStringMap(o.Behaviors)
	c.Requires = append([]string(nil), o.Requires...)
	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// IncompleteOutputError reports a malformed or missing agent output. The run
// fails fast on the first one: detection never sees a partial batch.
type IncompleteOutputError struct {
	AgentID string
	Reason  string
}

func (e *IncompleteOutputError) Error() string {
	if e.AgentID == "" {
		return fmt.Sprintf("incomplete output: %s", e.Reason)
	}
	return fmt.Sprintf("incomplete output from %q: %s", e.AgentID, e.Reason)
}

// Normalize puts an output into canonical form: files sorted by path, ranges
// sorted by start line, dependency and behavior keys trimmed, dependency names
// lower-cased. Validation and detection assume normalized inputs.
func Normalize(o *AgentOutput) {
	o.AgentID = strings.TrimSpace(o.AgentID)

	sort.SliceStable(o.Files, func(i, j int) bool {
		return o.Files[i].Path < o.Files[j].Path
	})
	for i := range o.Files {
		fc := &o.Files[i]
		fc.Path = strings.TrimSpace(fc.Path)
		if fc.Op == "" {
			fc.Op = OpModify
		}
		sort.SliceStable(fc.Ranges, func(a, b int) bool {
			if fc.Ranges[a].Start != fc.Ranges[b].Start {
				return fc.Ranges[a].Start < fc.Ranges[b].Start
			}
			return fc.Ranges[a].End < fc.Ranges[b].End
		})
	}

	if len(o.Dependencies) > 0 {
		deps := make(map[string]string, len(o.Dependencies))
		for name, version := range o.Dependencies {
			deps[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(version)
		}
		o.Dependencies = deps
	}

	sort.Strings(o.Requires)
}

// Validate checks a single normalized output. It returns an
// *IncompleteOutputError describing the first problem found.
func Validate(o *AgentOutput) error {
	if o.AgentID == "" {
		return &IncompleteOutputError{Reason: "missing agent_id"}
	}
	if len(o.Files) == 0 && len(o.Schema) == 0 && len(o.Dependencies) == 0 && len(o.Behaviors) == 0 {
		return &IncompleteOutputError{AgentID: o.AgentID, Reason: "output declares no files, schema, dependencies, or behaviors"}
	}

	seen := make(map[string]bool, len(o.Files))
	for _, fc := range o.Files {
		if fc.Path == "" {
			return &IncompleteOutputError{AgentID: o.AgentID, Reason: "file change with empty path"}
		}
		if seen[fc.Path] {
			return &IncompleteOutputError{AgentID: o.AgentID, Reason: fmt.Sprintf("duplicate file entry %q", fc.Path)}
		}
		seen[fc.Path] = true

		switch fc.Op {
		case OpCreate, OpModify, OpDelete:
		default:
			return &IncompleteOutputError{AgentID: o.AgentID, Reason: fmt.Sprintf("unknown op %q for %q", fc.Op, fc.Path)}
		}

		for _, r := range fc.Ranges {
			if r.Start < 1 || r.End < r.Start {
				return &IncompleteOutputError{AgentID: o.AgentID, Reason: fmt.Sprintf("invalid range %d-%d for %q", r.Start, r.End, fc.Path)}
			}
		}
	}

	for name, version := range o.Dependencies {
		if name == "" {
			return &IncompleteOutputError{AgentID: o.AgentID, Reason: "dependency with empty name"}
		}
		if strings.TrimSpace(version) == "" {
			return &IncompleteOutputError{AgentID: o.AgentID, Reason: fmt.Sprintf("dependency %q has empty version", name)}
		}
	}

	for _, req := range o.Requires {
		if req == o.AgentID {
			return &IncompleteOutputError{AgentID: o.AgentID, Reason: "output requires itself"}
		}
	}

	return nil
}

// Batch is a validated, normalized set of agent outputs from one parallel run.
type Batch struct {
	RunID   string        `json:"run_id,omitempty"`
	Outputs []AgentOutput `json:"outputs"`
}

// ByAgent returns the output for agentID, or nil.
func (b *Batch) ByAgent(agentID string) *AgentOutput {
	for i := range b.Outputs {
		if b.Outputs[i].AgentID == agentID {
			return &b.Outputs[i]
		}
	}
	return nil
}

// AgentIDs returns the sorted agent IDs in the batch.
func (b *Batch) AgentIDs() []string {
	ids := make([]string, 0, len(b.Outputs))
	for i := range b.Outputs {
		ids = append(ids, b.Outputs[i].AgentID)
	}
	sort.Strings(ids)
	return ids
}

// ValidateBatch normalizes and validates every output, then checks
// batch-level consistency: unique agent IDs and requires references that
// point at agents present in the batch.
func ValidateBatch(b *Batch) error {
	ids := make(map[string]bool, len(b.Outputs))
	for i := range b.Outputs {
		Normalize(&b.Outputs[i])
		if err := Validate(&b.Outputs[i]); err != nil {
			return err
		}
		id := b.Outputs[i].AgentID
		if ids[id] {
			return &IncompleteOutputError{AgentID: id, Reason: "duplicate agent_id in batch"}
		}
		ids[id] = true
	}

	for i := range b.Outputs {
		for _, req := range b.Outputs[i].Requires {
			if !ids[req] {
				return &IncompleteOutputError{
					AgentID: b.Outputs[i].AgentID,
					Reason:  fmt.Sprintf("requires unknown agent %q", req),
				}
			}
		}
	}

	return nil
}
