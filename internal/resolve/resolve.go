// Package resolve maps detected conflicts to resolution strategies. Selection
// is pure and deterministic; escalation is a terminal outcome that the merge
// executor surfaces as unresolved, not a prompt for interactive input.
package resolve

import (
	"fmt"
	"sort"

	"github.com/dusk-indust/orchestrate/internal/conflict"
)

// Strategy names how a conflict will be settled.
type Strategy string

const (
	// StrategyAutoMerge combines disjoint changes to the same file.
	StrategyAutoMerge Strategy = "auto_merge"
	// StrategyLatestVersion pins a disputed dependency to its highest version.
	StrategyLatestVersion Strategy = "latest_version"
	// StrategyKeepOurs keeps the first involved agent's change.
	StrategyKeepOurs Strategy = "keep_ours"
	// StrategyKeepTheirs keeps the other agent's change.
	StrategyKeepTheirs Strategy = "keep_theirs"
	// StrategyCombine unions schema declarations under a rename mapping.
	StrategyCombine Strategy = "combine"
	// StrategyEscalate marks the conflict unresolved; the merge proceeds
	// around it and reports it in the result.
	StrategyEscalate Strategy = "escalate"
)

// ValidStrategy reports whether s is a known strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategyAutoMerge, StrategyLatestVersion, StrategyKeepOurs,
		StrategyKeepTheirs, StrategyCombine, StrategyEscalate:
		return true
	}
	return false
}

// Resolution binds one conflict to its strategy. ChosenAgent is set for
// keep_ours/keep_theirs; Value carries the winning version for
// latest_version; Renames carries the spelling mapping for combine.
type Resolution struct {
	ConflictID  string            `json:"conflict_id"`
	Strategy    Strategy          `json:"strategy"`
	Action      string            `json:"action"`
	ChosenAgent string            `json:"chosen_agent,omitempty"`
	Value       string            `json:"value,omitempty"`
	Renames     map[string]string `json:"renames,omitempty"`
}

// ByConflict indexes resolutions by conflict ID.
func ByConflict(resolutions []Resolution) map[string]Resolution {
	m := make(map[string]Resolution, len(resolutions))
	for _, r := range resolutions {
		m[r.ConflictID] = r
	}
	return m
}

// Uncovered returns the IDs of conflicts that have no resolution, sorted.
// The merge executor refuses to start while this is non-empty.
func Uncovered(conflicts []conflict.Conflict, resolutions []Resolution) []string {
	covered := ByConflict(resolutions)
	var missing []string
	for _, c := range conflicts {
		if _, ok := covered[c.ID]; !ok {
			missing = append(missing, c.ID)
		}
	}
	sort.Strings(missing)
	return missing
}

// Validate checks a resolution list against the conflicts it claims to cover.
func Validate(conflicts []conflict.Conflict, resolutions []Resolution) error {
	known := conflict.ByID(conflicts)
	for _, r := range resolutions {
		if !ValidStrategy(r.Strategy) {
			return fmt.Errorf("resolution for %s uses unknown strategy %q", r.ConflictID, r.Strategy)
		}
		if _, ok := known[r.ConflictID]; !ok {
			return fmt.Errorf("resolution references unknown conflict %q", r.ConflictID)
		}
	}
	if missing := Uncovered(conflicts, resolutions); len(missing) > 0 {
		return fmt.Errorf("conflicts without resolutions: %v", missing)
	}
	return nil
}
