package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/resolve"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// Artifact filenames under a run directory. Each phase owns exactly one JSON
// artifact; the markdown files are companion reports.
const (
	ArtifactOutputs      = "outputs.json"
	ArtifactConflicts    = "conflicts.json"
	ArtifactResolutions  = "resolutions.json"
	ArtifactMergeResult  = "merge-result.json"
	ArtifactVerification = "verification.json"

	ReportConflicts    = "conflict-report.md"
	ReportVerification = "verification.md"

	// MergedDirName is the subdirectory the merged snapshot materializes to.
	MergedDirName = "merged"
)

// ArtifactForPhase maps a phase to the JSON artifact it writes.
func ArtifactForPhase(phase Phase) string {
	switch phase {
	case PhaseCollect:
		return ArtifactOutputs
	case PhaseDetect:
		return ArtifactConflicts
	case PhaseResolve:
		return ArtifactResolutions
	case PhaseMerge:
		return ArtifactMergeResult
	case PhaseVerify:
		return ArtifactVerification
	default:
		return ""
	}
}

// ConflictsArtifact is the detect phase's JSON artifact.
type ConflictsArtifact struct {
	RunID     string              `json:"run_id"`
	Summary   conflict.Summary    `json:"summary"`
	Conflicts []conflict.Conflict `json:"conflicts"`
}

// ResolutionsArtifact is the resolve phase's JSON artifact.
type ResolutionsArtifact struct {
	RunID       string               `json:"run_id"`
	Resolutions []resolve.Resolution `json:"resolutions"`
}

// RunDir locates one run's artifacts on disk.
type RunDir struct {
	RunID string
	Path  string
}

// NewRunDir builds the run directory location under runsRoot. Nothing is
// created until Ensure or a save.
func NewRunDir(runsRoot, runID string) RunDir {
	return RunDir{RunID: runID, Path: filepath.Join(runsRoot, runID)}
}

// Ensure creates the run directory.
func (d RunDir) Ensure() error {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return fmt.Errorf("create run dir %s: %w", d.Path, err)
	}
	return nil
}

// ArtifactPath returns the absolute path of a named artifact.
func (d RunDir) ArtifactPath(name string) string {
	return filepath.Join(d.Path, name)
}

// HasArtifact reports whether the named artifact exists.
func (d RunDir) HasArtifact(name string) bool {
	info, err := os.Stat(d.ArtifactPath(name))
	return err == nil && !info.IsDir()
}

// MergedDir returns the directory the merged snapshot materializes to.
func (d RunDir) MergedDir() string {
	return filepath.Join(d.Path, MergedDirName)
}

func (d RunDir) save(name string, v any) error {
	if err := d.Ensure(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(d.ArtifactPath(name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func load[T any](d RunDir, name string) (*T, error) {
	data, err := os.ReadFile(d.ArtifactPath(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &v, nil
}

// WriteText writes a companion text artifact such as a markdown report.
func (d RunDir) WriteText(name, content string) error {
	if err := d.Ensure(); err != nil {
		return err
	}
	if err := os.WriteFile(d.ArtifactPath(name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// SaveBatch writes the collect artifact.
func (d RunDir) SaveBatch(b *output.Batch) error {
	return d.save(ArtifactOutputs, b)
}

// LoadBatch reads the collect artifact.
func (d RunDir) LoadBatch() (*output.Batch, error) {
	return load[output.Batch](d, ArtifactOutputs)
}

// SaveConflicts writes the detect artifact.
func (d RunDir) SaveConflicts(a ConflictsArtifact) error {
	return d.save(ArtifactConflicts, a)
}

// LoadConflicts reads the detect artifact.
func (d RunDir) LoadConflicts() (*ConflictsArtifact, error) {
	return load[ConflictsArtifact](d, ArtifactConflicts)
}

// SaveResolutions writes the resolve artifact.
func (d RunDir) SaveResolutions(a ResolutionsArtifact) error {
	return d.save(ArtifactResolutions, a)
}

// LoadResolutions reads the resolve artifact.
func (d RunDir) LoadResolutions() (*ResolutionsArtifact, error) {
	return load[ResolutionsArtifact](d, ArtifactResolutions)
}

// SaveMergeResult writes the merge artifact.
func (d RunDir) SaveMergeResult(r *merge.Result) error {
	return d.save(ArtifactMergeResult, r)
}

// LoadMergeResult reads the merge artifact.
func (d RunDir) LoadMergeResult() (*merge.Result, error) {
	return load[merge.Result](d, ArtifactMergeResult)
}

// SaveVerification writes the verify artifact.
func (d RunDir) SaveVerification(r *verify.GateResult) error {
	return d.save(ArtifactVerification, r)
}

// LoadVerification reads the verify artifact.
func (d RunDir) LoadVerification() (*verify.GateResult, error) {
	return load[verify.GateResult](d, ArtifactVerification)
}
