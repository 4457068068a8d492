package graph

import (
	"errors"
	"reflect"
	"testing"
)

func depEdges(pairs ...[2]string) []Edge {
	edges := make([]Edge, 0, len(pairs))
	for _, p := range pairs {
		edges = append(edges, Edge{SourceID: p[0], TargetID: p[1], Kind: EdgeKindDependsOn})
	}
	return edges
}

func TestTopoSort(t *testing.T) {
	tests := []struct {
		name   string
		agents []string
		edges  []Edge
		want   []string
	}{
		{
			name:   "chain",
			agents: []string{"a", "b", "c"},
			edges:  depEdges([2]string{"a", "b"}, [2]string{"b", "c"}),
			want:   []string{"c", "b", "a"},
		},
		{
			name:   "no edges sorts lexicographically",
			agents: []string{"zeta", "alpha", "beta"},
			edges:  nil,
			want:   []string{"alpha", "beta", "zeta"},
		},
		{
			name:   "diamond",
			agents: []string{"a", "b", "c", "d"},
			edges: depEdges(
				[2]string{"b", "a"},
				[2]string{"c", "a"},
				[2]string{"d", "b"},
				[2]string{"d", "c"},
			),
			want: []string{"a", "b", "c", "d"},
		},
		{
			name:   "released agent slots in lexicographic position",
			agents: []string{"a", "b", "c", "d"},
			edges:  depEdges([2]string{"c", "a"}),
			want:   []string{"a", "b", "c", "d"},
		},
		{
			name:   "edge to unknown agent is ignored",
			agents: []string{"a"},
			edges:  depEdges([2]string{"a", "ghost"}),
			want:   []string{"a"},
		},
		{
			name:   "non-dependency edges are ignored",
			agents: []string{"a", "b"},
			edges: []Edge{
				{SourceID: "a", TargetID: "b", Kind: EdgeKindModifies},
			},
			want: []string{"a", "b"},
		},
		{
			name:   "empty input",
			agents: nil,
			edges:  nil,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TopoSort(tt.agents, tt.edges)
			if err != nil {
				t.Fatalf("TopoSort() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopoSort() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopoSort_Cycle(t *testing.T) {
	agents := []string{"a", "b", "c"}
	edges := depEdges([2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"c", "a"})

	_, err := TopoSort(agents, edges)
	if err == nil {
		t.Fatal("TopoSort() expected error for cyclic graph, got nil")
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("TopoSort() error = %T, want *CycleError", err)
	}
	want := []string{"a", "b", "a"}
	if !reflect.DeepEqual(cycleErr.Path, want) {
		t.Errorf("CycleError.Path = %v, want %v", cycleErr.Path, want)
	}
	if got := err.Error(); got != "dependency cycle: a -> b -> a" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTopoSort_SelfCycle(t *testing.T) {
	_, err := TopoSort([]string{"a"}, depEdges([2]string{"a", "a"}))
	if err == nil {
		t.Fatal("TopoSort() expected error for self-dependency, got nil")
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("TopoSort() error = %T, want *CycleError", err)
	}
	if want := []string{"a", "a"}; !reflect.DeepEqual(cycleErr.Path, want) {
		t.Errorf("CycleError.Path = %v, want %v", cycleErr.Path, want)
	}
}

func TestParallelLevels(t *testing.T) {
	agents := []string{"a", "b", "c", "d"}
	edges := depEdges(
		[2]string{"b", "a"},
		[2]string{"c", "a"},
		[2]string{"d", "b"},
		[2]string{"d", "c"},
	)

	levels, err := ParallelLevels(agents, edges)
	if err != nil {
		t.Fatalf("ParallelLevels() error = %v", err)
	}

	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("ParallelLevels() = %v, want %v", levels, want)
	}
}

func TestParallelLevels_Independent(t *testing.T) {
	levels, err := ParallelLevels([]string{"x", "y", "z"}, nil)
	if err != nil {
		t.Fatalf("ParallelLevels() error = %v", err)
	}
	want := [][]string{{"x", "y", "z"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("ParallelLevels() = %v, want %v", levels, want)
	}
}

func TestParallelLevels_Cycle(t *testing.T) {
	_, err := ParallelLevels([]string{"a", "b"}, depEdges([2]string{"a", "b"}, [2]string{"b", "a"}))
	if err == nil {
		t.Fatal("ParallelLevels() expected error for cyclic graph, got nil")
	}
}

func TestCriticalPath(t *testing.T) {
	tests := []struct {
		name   string
		agents []string
		edges  []Edge
		want   []string
	}{
		{
			name:   "diamond picks one longest chain",
			agents: []string{"a", "b", "c", "d"},
			edges: depEdges(
				[2]string{"b", "a"},
				[2]string{"c", "a"},
				[2]string{"d", "b"},
				[2]string{"d", "c"},
			),
			want: []string{"a", "b", "d"},
		},
		{
			name:   "no dependencies yields a single agent",
			agents: []string{"x", "y"},
			edges:  nil,
			want:   []string{"x"},
		},
		{
			name:   "long chain wins over short branch",
			agents: []string{"a", "b", "c", "z"},
			edges: depEdges(
				[2]string{"b", "a"},
				[2]string{"c", "b"},
				[2]string{"z", "a"},
			),
			want: []string{"a", "b", "c"},
		},
		{
			name:   "empty input",
			agents: nil,
			edges:  nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CriticalPath(tt.agents, tt.edges)
			if err != nil {
				t.Fatalf("CriticalPath() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CriticalPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimateSpeedup(t *testing.T) {
	tests := []struct {
		name   string
		levels [][]string
		want   float64
	}{
		{"empty", nil, 1},
		{"fully sequential", [][]string{{"a"}, {"b"}, {"c"}}, 1},
		{"fully parallel", [][]string{{"a", "b", "c"}}, 3},
		{"mixed", [][]string{{"a"}, {"b", "c"}, {"d"}}, 4.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateSpeedup(tt.levels); got != tt.want {
				t.Errorf("EstimateSpeedup() = %v, want %v", got, tt.want)
			}
		})
	}
}
