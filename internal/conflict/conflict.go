// Package conflict detects contradictions between parallel agent outputs:
// file overlap, dependency version clashes, schema divergence, and behavioral
// mismatches. Detection is read-only and its report order is deterministic.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// Kind classifies a conflict.
type Kind string

const (
	KindFile       Kind = "file"
	KindSemantic   Kind = "semantic"
	KindDependency Kind = "dependency"
	KindSchema     Kind = "schema"
)

// kindRank orders kinds in reports: file, dependency, schema, semantic.
var kindRank = map[Kind]int{
	KindFile:       0,
	KindDependency: 1,
	KindSchema:     2,
	KindSemantic:   3,
}

// Severity grades how dangerous an unaddressed conflict is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for report grouping, worst first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Conflict is one detected contradiction between two or more agent outputs.
// Subject identifies what the agents disagree about: a file path, a package
// name, a canonical schema field, or a behavior tag. Values carries each
// agent's side of the disagreement; Ranges is populated for file conflicts.
type Conflict struct {
	ID       string                        `json:"id"`
	Kind     Kind                          `json:"kind"`
	Agents   []string                      `json:"involved_agents"`
	Severity Severity                      `json:"severity"`
	Subject  string                        `json:"subject"`
	Detail   string                        `json:"detail"`
	Values   map[string]string             `json:"values,omitempty"`
	Ranges   map[string][]output.LineRange `json:"ranges,omitempty"`
}

// conflictID builds the stable identifier for a conflict. IDs are
// deterministic so that re-detection over the same batch, in any input
// order, references the same conflicts.
func conflictID(kind Kind, subject string) string {
	return fmt.Sprintf("%s:%s", kind, subject)
}

// SortConflicts puts conflicts into report order: kind precedence
// file > dependency > schema > semantic, then subject, then agents.
func SortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return strings.Join(a.Agents, ",") < strings.Join(b.Agents, ",")
	})
}

// ByID indexes conflicts by ID.
func ByID(conflicts []Conflict) map[string]Conflict {
	m := make(map[string]Conflict, len(conflicts))
	for _, c := range conflicts {
		m[c.ID] = c
	}
	return m
}

// DetectionError wraps an internal detector failure. Detection is all or
// nothing: a partial conflict report is never produced.
type DetectionError struct {
	Stage string
	Err   error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("conflict detection failed during %s: %v", e.Stage, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }
