// Package merge applies a batch of resolved agent outputs to a versioned
// snapshot in dependency order. The executor is single-threaded: agents land
// one at a time, each step is verified, and a failed step rolls back to the
// snapshot taken before it.
package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dusk-indust/orchestrate/internal/output"
)

// Snapshot is an explicit versioned file map. Merging never touches the
// working tree; materializing a snapshot to a directory is a separate,
// explicit step. Version counts applied merge steps and Applied records
// which agents produced them.
type Snapshot struct {
	Version int               `json:"version"`
	Files   map[string]string `json:"files"`
	Applied []string          `json:"applied,omitempty"`
}

// NewSnapshot builds a version-zero snapshot over the given files.
func NewSnapshot(files map[string]string) Snapshot {
	s := Snapshot{Files: make(map[string]string, len(files))}
	for path, content := range files {
		s.Files[path] = content
	}
	return s
}

// Clone returns an independent copy. Mutating the clone never affects the
// original, which is what makes per-step rollback a plain assignment.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Version: s.Version,
		Files:   make(map[string]string, len(s.Files)),
	}
	for path, content := range s.Files {
		c.Files[path] = content
	}
	c.Applied = append([]string(nil), s.Applied...)
	return c
}

// Apply folds one file change into the snapshot. Deletes remove the path;
// creates set content. A modify without content is a declared touch only:
// the path is ensured present but stored content is left alone, since the
// capture tooling saw the change without recording the result.
func (s *Snapshot) Apply(fc output.FileChange) {
	if s.Files == nil {
		s.Files = make(map[string]string)
	}
	switch fc.Op {
	case output.OpDelete:
		delete(s.Files, fc.Path)
	case output.OpCreate:
		s.Files[fc.Path] = fc.Content
	default:
		if fc.Content == "" {
			if _, ok := s.Files[fc.Path]; !ok {
				s.Files[fc.Path] = ""
			}
			return
		}
		s.Files[fc.Path] = fc.Content
	}
}

// HasApplied reports whether agentID already contributed a merge step.
func (s Snapshot) HasApplied(agentID string) bool {
	for _, id := range s.Applied {
		if id == agentID {
			return true
		}
	}
	return false
}

// Paths returns the snapshot's file paths, sorted.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Diff returns the paths where s differs from base: added, changed, or
// removed. Sorted.
func (s Snapshot) Diff(base Snapshot) []string {
	changed := make(map[string]bool)
	for path, content := range s.Files {
		if baseContent, ok := base.Files[path]; !ok || baseContent != content {
			changed[path] = true
		}
	}
	for path := range base.Files {
		if _, ok := s.Files[path]; !ok {
			changed[path] = true
		}
	}

	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// LoadBase reads the current content of every path the batch touches,
// relative to root. Paths that do not exist yet are simply absent from the
// snapshot: they are the files the batch creates.
func LoadBase(root string, batch *output.Batch) (Snapshot, error) {
	snap := NewSnapshot(nil)
	if batch == nil {
		return snap, nil
	}

	seen := make(map[string]bool)
	for i := range batch.Outputs {
		for _, fc := range batch.Outputs[i].Files {
			if seen[fc.Path] {
				continue
			}
			seen[fc.Path] = true

			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(fc.Path)))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return Snapshot{}, fmt.Errorf("load base %s: %w", fc.Path, err)
			}
			snap.Files[fc.Path] = string(data)
		}
	}
	return snap, nil
}

// Materialize writes the snapshot's files under dir, creating parent
// directories as needed. Existing files at those paths are overwritten;
// nothing else in dir is touched.
func (s Snapshot) Materialize(dir string) error {
	for _, path := range s.Paths() {
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("materialize %s: %w", path, err)
		}
		if err := os.WriteFile(target, []byte(s.Files[path]), 0o644); err != nil {
			return fmt.Errorf("materialize %s: %w", path, err)
		}
	}
	return nil
}
