// Package config loads project-level settings from orchestrate.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/output"
	"github.com/dusk-indust/orchestrate/internal/resolve"
	"github.com/dusk-indust/orchestrate/internal/verify"
)

// DefaultRunsDir is where run artifacts land, relative to the project root.
const DefaultRunsDir = ".orchestrate/runs"

// Project holds the settings read from orchestrate.yml.
type Project struct {
	// RunsDir overrides where run directories are created.
	RunsDir string `yaml:"runs_dir,omitempty"`
	// InputFile is the default outputs JSON for file-based collection.
	InputFile string `yaml:"input_file,omitempty"`
	// Workers lists agent endpoints for live collection.
	Workers []output.Worker `yaml:"workers,omitempty"`
	// Priorities pins per-agent priorities, overriding what agents declare.
	Priorities map[string]int `yaml:"priorities,omitempty"`
	// Overrides forces a strategy per conflict kind, such as
	// "file: escalate".
	Overrides map[string]string `yaml:"overrides,omitempty"`
	// Verification configures the gate.
	Verification Verification `yaml:"verification,omitempty"`
	// Verbose enables debug logging without the flag.
	Verbose bool `yaml:"verbose,omitempty"`
}

// Verification is the gate block. Absent toggles default to on, so a config
// has to say "security: false" to drop a check.
type Verification struct {
	Security *bool  `yaml:"security,omitempty"`
	Surface  *bool  `yaml:"surface,omitempty"`
	Battery  string `yaml:"battery,omitempty"`
	Command  string `yaml:"command,omitempty"`
}

// Load reads orchestrate.yml or orchestrate.yaml from dir. A missing file
// yields a zero-value config, not an error; unknown keys are ignored.
func Load(dir string) (*Project, error) {
	for _, name := range []string{"orchestrate.yml", "orchestrate.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg Project
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		return &cfg, nil
	}
	return &Project{}, nil
}

// RunsRoot resolves the runs directory against the project root.
func (p *Project) RunsRoot(root string) string {
	dir := p.RunsDir
	if dir == "" {
		dir = DefaultRunsDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// GateConfig translates the verification block into gate settings,
// resolving the battery path against the project root.
func (p *Project) GateConfig(root string) verify.Config {
	cfg := verify.DefaultConfig()
	if p.Verification.Security != nil {
		cfg.Security = *p.Verification.Security
	}
	if p.Verification.Surface != nil {
		cfg.Surface = *p.Verification.Surface
	}
	if b := p.Verification.Battery; b != "" {
		if !filepath.IsAbs(b) {
			b = filepath.Join(root, b)
		}
		cfg.BatteryPath = b
	}
	cfg.Command = p.Verification.Command
	return cfg
}

// StrategyOverrides parses the overrides block into typed pins, rejecting
// unknown kinds and strategies up front rather than mid-run.
func (p *Project) StrategyOverrides() (map[conflict.Kind]resolve.Strategy, error) {
	if len(p.Overrides) == 0 {
		return nil, nil
	}
	out := make(map[conflict.Kind]resolve.Strategy, len(p.Overrides))
	for k, v := range p.Overrides {
		kind := conflict.Kind(k)
		switch kind {
		case conflict.KindFile, conflict.KindSemantic, conflict.KindDependency, conflict.KindSchema:
		default:
			return nil, fmt.Errorf("config: unknown conflict kind %q in overrides", k)
		}
		strategy := resolve.Strategy(v)
		if !resolve.ValidStrategy(strategy) {
			return nil, fmt.Errorf("config: unknown strategy %q for kind %s", v, k)
		}
		out[kind] = strategy
	}
	return out, nil
}
