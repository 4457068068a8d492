// Package status reports where runs stand by scanning their artifacts on
// disk. It never executes anything; a run's directory is the source of
// truth.
package status

import (
	"os"
	"sort"

	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// PhaseInfo describes the completion state of a single phase.
type PhaseInfo struct {
	Phase    orchestrator.Phase
	Name     string
	Complete bool
	Artifact string // absolute path when complete, empty otherwise
}

// RunStatus holds the scanned state of one run directory.
type RunStatus struct {
	RunID     string
	Phases    []PhaseInfo
	NextPhase int // -1 when every phase has its artifact
	Verdict   string
}

// ScanCompletedPhases reports which phases have their artifact in the run
// directory.
func ScanCompletedPhases(dir orchestrator.RunDir) []orchestrator.Phase {
	var completed []orchestrator.Phase
	for phase := orchestrator.PhaseCollect; phase <= orchestrator.PhaseVerify; phase++ {
		if dir.HasArtifact(orchestrator.ArtifactForPhase(phase)) {
			completed = append(completed, phase)
		}
	}
	return completed
}

// NextPhase returns the phase after the furthest completed one, or -1 when
// the run is done. The furthest artifact is what counts: later phases load
// earlier artifacts, so an artifact past a gap proves the gap was filled at
// the time.
func NextPhase(completed []orchestrator.Phase) int {
	if len(completed) == 0 {
		return 0
	}
	max := completed[0]
	for _, p := range completed[1:] {
		if p > max {
			max = p
		}
	}
	next := int(max) + 1
	if next > int(orchestrator.PhaseVerify) {
		return -1
	}
	return next
}

// GetRunStatus scans a single run directory.
func GetRunStatus(runsRoot, runID string) RunStatus {
	dir := orchestrator.NewRunDir(runsRoot, runID)

	completed := make(map[orchestrator.Phase]bool)
	done := ScanCompletedPhases(dir)
	for _, p := range done {
		completed[p] = true
	}

	var phases []PhaseInfo
	for phase := orchestrator.PhaseCollect; phase <= orchestrator.PhaseVerify; phase++ {
		info := PhaseInfo{
			Phase:    phase,
			Name:     phase.String(),
			Complete: completed[phase],
		}
		if info.Complete {
			info.Artifact = dir.ArtifactPath(orchestrator.ArtifactForPhase(phase))
		}
		phases = append(phases, info)
	}

	return RunStatus{
		RunID:     runID,
		Phases:    phases,
		NextPhase: NextPhase(done),
		Verdict:   verdict(dir),
	}
}

// verdict condenses a run's artifacts into one line for listings.
func verdict(dir orchestrator.RunDir) string {
	if res, err := dir.LoadVerification(); err == nil {
		if res.Status == verify.StatusFail {
			return "verification failed"
		}
		if mr, err := dir.LoadMergeResult(); err == nil && len(mr.UnresolvedConflicts) > 0 {
			return "verified, unresolved conflicts remain"
		}
		return "merged and verified"
	}
	if mr, err := dir.LoadMergeResult(); err == nil {
		switch {
		case mr.VerificationStatus == merge.VerificationFail:
			return "merged with rolled-back agents"
		case len(mr.UnresolvedConflicts) > 0:
			return "merged, unresolved conflicts"
		default:
			return "merged, not verified"
		}
	}
	return "in progress"
}

// ListRuns scans the runs root and returns every run's status, sorted by
// run ID. A missing root means nothing has run yet.
func ListRuns(runsRoot string) []RunStatus {
	entries, err := os.ReadDir(runsRoot)
	if err != nil {
		return nil
	}

	var runs []RunStatus
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runs = append(runs, GetRunStatus(runsRoot, entry.Name()))
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID < runs[j].RunID })
	return runs
}
