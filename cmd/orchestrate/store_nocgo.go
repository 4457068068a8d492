//go:build !cgo

package main

import (
	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
)

// newAnalysisStore opens the graph backend for the graph command. Without
// cgo the graph lives in memory for the duration of the command.
func newAnalysisStore(_ orchestrator.RunDir) (graph.Store, func(), error) {
	store := graph.NewMemStore()
	return store, func() { store.Close() }, nil
}
