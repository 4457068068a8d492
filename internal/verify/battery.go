package verify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultTaskTimeout = 5 * time.Minute

// Battery is a YAML-defined list of regression commands the final gate runs
// against the materialized merge.
type Battery struct {
	Version int           `yaml:"version"`
	Tasks   []BatteryTask `yaml:"tasks"`
}

// BatteryTask is one shell command with an optional timeout.
type BatteryTask struct {
	ID         string `yaml:"id"`
	Command    string `yaml:"command"`
	TimeoutSec int    `yaml:"timeout_sec,omitempty"`
}

// TaskResult records one task's run.
type TaskResult struct {
	TaskID   string        `json:"task_id"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// LoadBattery reads and parses a battery file.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse battery %s: %w", path, err)
	}
	return &b, nil
}

// Run executes the tasks in order, stopping at the first failure. A broken
// battery task means the merge is already suspect; later tasks would only
// pile noise on the verdict.
func (b *Battery) Run(ctx context.Context, workdir string) []TaskResult {
	results := make([]TaskResult, 0, len(b.Tasks))
	for _, task := range b.Tasks {
		res := runTask(ctx, task, workdir)
		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results
}

func runTask(ctx context.Context, task BatteryTask, workdir string) TaskResult {
	start := time.Now()
	command := strings.TrimSpace(task.Command)
	if command == "" {
		return TaskResult{
			TaskID:   task.ID,
			Error:    "task has no command",
			Duration: time.Since(start),
		}
	}

	timeout := defaultTaskTimeout
	if task.TimeoutSec > 0 {
		timeout = time.Duration(task.TimeoutSec) * time.Second
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, "bash", "-lc", command)
	if workdir != "" {
		cmd.Dir = workdir
	}
	out, err := cmd.CombinedOutput()

	res := TaskResult{
		TaskID:   task.ID,
		Output:   string(out),
		Duration: time.Since(start),
	}
	switch {
	case tctx.Err() == context.DeadlineExceeded:
		res.Error = fmt.Sprintf("timed out after %s", timeout)
	case err != nil:
		res.Error = err.Error()
	default:
		res.Success = true
	}
	return res
}
