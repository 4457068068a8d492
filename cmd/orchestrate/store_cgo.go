//go:build cgo

package main

import (
	"os"
	"path/filepath"

	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
)

// newAnalysisStore opens the graph backend for the graph command. On cgo
// builds the index persists under the run directory so it can be queried
// after the command exits. Ingestion assumes an empty store, so any
// previous index is rebuilt.
func newAnalysisStore(dir orchestrator.RunDir) (graph.Store, func(), error) {
	dbPath := filepath.Join(dir.Path, "graph")
	if err := os.RemoveAll(dbPath); err != nil {
		return nil, nil, err
	}
	store, err := graph.NewKuzuFileStore(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}
