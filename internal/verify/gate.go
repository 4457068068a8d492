// Package verify is the verification gate: ordered checks over a pair of
// snapshots that accept or reject a merge. The gate only reports; it never
// edits a snapshot.
package verify

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/output"
)

// Status is the gate verdict.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Violation is one concrete finding: which check fired, what it fired on,
// and the evidence.
type Violation struct {
	Check   string `json:"check"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// CheckRun records one check's outcome for the summary table.
type CheckRun struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Findings int           `json:"findings"`
	Duration time.Duration `json:"duration_ns"`
	Skipped  bool          `json:"skipped,omitempty"`
}

// GateResult is the verdict plus everything needed to explain it.
type GateResult struct {
	Status     Status       `json:"status"`
	Violations []Violation  `json:"violations,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
	Checks     []CheckRun   `json:"checks"`
	Battery    []TaskResult `json:"battery,omitempty"`
}

// Config selects which checks run. The battery runs only in Final and only
// when BatteryPath points at a file; Command replaces the file with a
// single shell command when set.
type Config struct {
	Security    bool
	Surface     bool
	BatteryPath string
	Command     string
	WorkDir     string
}

// DefaultConfig enables every pure check.
func DefaultConfig() Config {
	return Config{Security: true, Surface: true}
}

// Gate runs the configured checks in a fixed order: vulnerability classes,
// auth guards, public surface, then (in Final) the regression battery.
type Gate struct {
	cfg     Config
	batch   *output.Batch
	counter SurfaceCounter
	log     *zap.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithBatch supplies the submitted outputs. The surface check uses them to
// bound each merged file by what the agents actually wrote; without a batch
// any growth over the base is flagged.
func WithBatch(batch *output.Batch) GateOption {
	return func(g *Gate) { g.batch = batch }
}

// WithSurfaceCounter replaces the regex symbol counter, normally with the
// code-intel parser when it is available.
func WithSurfaceCounter(c SurfaceCounter) GateOption {
	return func(g *Gate) { g.counter = c }
}

// WithLogger sets the gate's logger.
func WithLogger(log *zap.Logger) GateOption {
	return func(g *Gate) { g.log = log }
}

// NewGate creates a Gate.
func NewGate(cfg Config, opts ...GateOption) *Gate {
	g := &Gate{
		cfg:     cfg,
		counter: RegexCounter{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ merge.StepVerifier = (*Gate)(nil)

// Check runs the pure checks over (before, after).
func (g *Gate) Check(ctx context.Context, before, after merge.Snapshot) *GateResult {
	res := &GateResult{Status: StatusPass}
	if g.cfg.Security {
		g.runCheck(res, "vulnerability-classes", func() ([]Violation, []string) {
			return vulnerabilityRegressions(before, after), nil
		})
		g.runCheck(res, "auth-guards", func() ([]Violation, []string) {
			return guardRegressions(before, after), nil
		})
	}
	if g.cfg.Surface {
		g.runCheck(res, "public-surface", func() ([]Violation, []string) {
			return surfaceRegressions(ctx, g.counter, before, after, g.batch)
		})
	}

	g.log.Debug("gate check",
		zap.String("status", string(res.Status)),
		zap.Int("violations", len(res.Violations)))
	return res
}

// Final runs the pure checks and then the regression battery. A missing
// battery file downgrades to a warning; a malformed one is an input error.
func (g *Gate) Final(ctx context.Context, before, after merge.Snapshot) (*GateResult, error) {
	res := g.Check(ctx, before, after)

	skip := func(reason string) {
		res.Warnings = append(res.Warnings, reason)
		res.Checks = append(res.Checks, CheckRun{Name: "battery", Status: StatusPass, Skipped: true})
	}

	var battery *Battery
	switch {
	case g.cfg.Command != "":
		battery = &Battery{Version: 1, Tasks: []BatteryTask{{ID: "command", Command: g.cfg.Command}}}
	case g.cfg.BatteryPath == "":
		skip("no regression battery configured; battery skipped")
		return res, nil
	default:
		var err error
		battery, err = LoadBattery(g.cfg.BatteryPath)
		if err != nil {
			if os.IsNotExist(err) {
				skip(fmt.Sprintf("battery %s not found; battery skipped", g.cfg.BatteryPath))
				return res, nil
			}
			return nil, err
		}
	}

	start := time.Now()
	res.Battery = battery.Run(ctx, g.cfg.WorkDir)
	run := CheckRun{Name: "battery", Status: StatusPass, Duration: time.Since(start)}
	for _, tr := range res.Battery {
		if tr.Success {
			continue
		}
		run.Status = StatusFail
		run.Findings++
		res.Status = StatusFail
		res.Violations = append(res.Violations, Violation{
			Check:   "battery",
			Subject: tr.TaskID,
			Detail:  strings.TrimSpace(tr.Error),
		})
	}
	res.Checks = append(res.Checks, run)
	return res, nil
}

// VerifyStep adapts the gate to the merge executor: a failing check rejects
// the step and the executor rolls it back.
func (g *Gate) VerifyStep(ctx context.Context, before, after merge.Snapshot, agentID string) error {
	res := g.Check(ctx, before, after)
	if res.Status == StatusFail {
		first := res.Violations[0]
		return fmt.Errorf("%s check: %s: %s (%d findings)",
			first.Check, first.Subject, first.Detail, len(res.Violations))
	}
	return nil
}

func (g *Gate) runCheck(res *GateResult, name string, fn func() ([]Violation, []string)) {
	start := time.Now()
	violations, warnings := fn()
	res.Violations = append(res.Violations, violations...)
	res.Warnings = append(res.Warnings, warnings...)

	run := CheckRun{
		Name:     name,
		Status:   StatusPass,
		Findings: len(violations),
		Duration: time.Since(start),
	}
	if len(violations) > 0 {
		run.Status = StatusFail
		res.Status = StatusFail
	}
	res.Checks = append(res.Checks, run)
}

// FormatSummary renders a markdown verdict table for reports.
func FormatSummary(res *GateResult) string {
	var sb strings.Builder
	if res.Status == StatusPass {
		sb.WriteString("## Verification Gate: PASSED\n\n")
	} else {
		sb.WriteString("## Verification Gate: FAILED\n\n")
	}

	sb.WriteString("| Check | Status | Findings | Duration |\n")
	sb.WriteString("|-------|--------|----------|----------|\n")
	for _, c := range res.Checks {
		status := string(c.Status)
		if c.Skipped {
			status = "skipped"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n",
			c.Name, status, c.Findings, c.Duration.Round(time.Millisecond)))
	}

	if len(res.Violations) > 0 {
		sb.WriteString("\n### Violations\n\n")
		for _, v := range res.Violations {
			sb.WriteString(fmt.Sprintf("- **%s** `%s`: %s\n", v.Check, v.Subject, v.Detail))
		}
	}
	if len(res.Warnings) > 0 {
		sb.WriteString("\n### Warnings\n\n")
		for _, w := range res.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
	}
	return sb.String()
}
