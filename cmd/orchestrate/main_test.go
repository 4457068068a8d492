package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/orchestrator"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "escalated conflicts",
			err:  &escalatedError{IDs: []string{"conflict-1"}},
			want: 1,
		},
		{
			name: "gate failure",
			err:  &orchestrator.GateFailedError{Result: &verify.GateResult{}},
			want: 2,
		},
		{
			name: "critical path failure, wrapped",
			err:  fmt.Errorf("merge: %w", &merge.CriticalPathError{AgentID: "agent-models", Err: errors.New("gate")}),
			want: 2,
		},
		{
			name: "incomplete output",
			err:  &output.IncompleteOutputError{AgentID: "agent-views", Reason: "missing agent_id"},
			want: 3,
		},
		{
			name: "detection failure",
			err:  &conflict.DetectionError{Stage: "schema", Err: errors.New("bad decl")},
			want: 3,
		},
		{
			name: "uncovered conflict",
			err:  &merge.UncoveredConflictError{ConflictIDs: []string{"conflict-9"}},
			want: 3,
		},
		{
			name: "plain error",
			err:  errors.New("no such file"),
			want: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestEscalatedError_Message(t *testing.T) {
	err := &escalatedError{IDs: []string{"conflict-3", "conflict-7"}}
	assert.Equal(t, "2 conflicts escalated for human review: conflict-3, conflict-7", err.Error())
}
