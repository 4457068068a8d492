package orchestrator

import (
	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/resolve"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// CapabilityLevel describes the detected runtime capabilities.
// Determines which execution paths the pipeline uses.
type CapabilityLevel int

const (
	// CapBasic is the fallback: file-based collection, declared line ranges
	// only, regex surface counting.
	CapBasic CapabilityLevel = iota

	// CapIntake has live worker endpoints but no code intelligence.
	CapIntake

	// CapCodeIntel has tree-sitter parsing for overlap refinement, graph
	// edges, and surface counting, but no reachable workers.
	CapCodeIntel

	// CapFull has worker intake and code intelligence.
	CapFull
)

func (c CapabilityLevel) String() string {
	switch c {
	case CapBasic:
		return "basic"
	case CapIntake:
		return "intake"
	case CapCodeIntel:
		return "code-intel"
	case CapFull:
		return "full"
	default:
		return "unknown"
	}
}

// HasIntake reports whether live worker collection is available.
func (c CapabilityLevel) HasIntake() bool {
	return c == CapIntake || c == CapFull
}

// HasCodeIntel reports whether tree-sitter-backed analysis is available.
func (c CapabilityLevel) HasCodeIntel() bool {
	return c == CapCodeIntel || c == CapFull
}

// Config holds runtime configuration for one merge run.
type Config struct {
	// RunID names the run (kebab-case or UUID).
	RunID string

	// ProjectRoot is the absolute path to the base project the agents
	// started from. The base snapshot is read from here.
	ProjectRoot string

	// RunsRoot is the directory run artifacts live under, normally
	// .orchestrate/runs. The run's own directory is RunsRoot/RunID.
	RunsRoot string

	// InputFile is the path to a collected-outputs JSON file. Used by the
	// collect phase when worker intake is unavailable or unconfigured.
	InputFile string

	// Workers lists the agent endpoints to pull submissions from.
	// Empty when Capability has no intake.
	Workers []output.Worker

	// Priorities ranks agents for keep_ours/keep_theirs settlement.
	Priorities map[string]int

	// Overrides forces resolution strategies per conflict kind.
	Overrides map[conflict.Kind]resolve.Strategy

	// Gate selects which verification checks run and where the battery is.
	Gate verify.Config

	// Capability is the detected runtime capability level.
	Capability CapabilityLevel

	// DryRun merges in memory, skips verification, and materializes nothing.
	DryRun bool

	// Verbose enables debug-level progress output.
	Verbose bool
}
