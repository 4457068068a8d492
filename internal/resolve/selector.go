package resolve

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/output"
)

// Config tunes strategy selection. Zero value gives the default rules.
type Config struct {
	// Priorities ranks agents; a strictly higher priority settles file
	// overlaps in that agent's favor instead of escalating. Agents missing
	// here fall back to the Priority field of their own output.
	Priorities map[string]int

	// Overrides forces a strategy for a conflict kind. Only overrides that
	// cannot drop information are honored: file conflicts may be forced to
	// keep_ours, keep_theirs, or escalate; dependency conflicts to escalate.
	// Schema and semantic rules are fixed.
	Overrides map[conflict.Kind]Strategy
}

// Selector chooses one resolution per conflict.
type Selector struct {
	cfg Config
	log *zap.Logger
}

// NewSelector creates a Selector. log may be nil.
func NewSelector(cfg Config, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{cfg: cfg, log: log}
}

// Select maps every conflict to exactly one resolution. The same conflicts,
// batch, and config always produce the same resolutions.
func (s *Selector) Select(conflicts []conflict.Conflict, batch *output.Batch) []Resolution {
	resolutions := make([]Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		resolutions = append(resolutions, s.resolveOne(c, batch))
	}
	return resolutions
}

func (s *Selector) resolveOne(c conflict.Conflict, batch *output.Batch) Resolution {
	switch c.Kind {
	case conflict.KindFile:
		return s.resolveFile(c, batch)
	case conflict.KindDependency:
		return s.resolveDependency(c)
	case conflict.KindSchema:
		return s.resolveSchema(c)
	case conflict.KindSemantic:
		return s.escalate(c, "behavioral contradiction needs an upstream decision")
	default:
		return s.escalate(c, fmt.Sprintf("unknown conflict kind %q", c.Kind))
	}
}

func (s *Selector) resolveFile(c conflict.Conflict, batch *output.Batch) Resolution {
	if forced, ok := s.cfg.Overrides[conflict.KindFile]; ok {
		switch forced {
		case StrategyEscalate:
			return s.escalate(c, "file conflicts forced to escalate by config")
		case StrategyKeepOurs, StrategyKeepTheirs:
			if r, ok := s.keepByPriority(c, batch); ok {
				return r
			}
			// No strict priority winner; fall through to the default rules.
		}
	}

	// Disjoint ranges were graded medium by the detector; those merge
	// automatically. Anything graded higher overlaps for real.
	if c.Severity == conflict.SeverityMedium || c.Severity == conflict.SeverityLow {
		return Resolution{
			ConflictID: c.ID,
			Strategy:   StrategyAutoMerge,
			Action:     fmt.Sprintf("merge disjoint changes to %s from %s", c.Subject, strings.Join(c.Agents, ", ")),
		}
	}

	if r, ok := s.keepByPriority(c, batch); ok {
		return r
	}
	return s.escalate(c, fmt.Sprintf("overlapping changes to %s cannot be merged safely", c.Subject))
}

// priorityOf resolves an agent's effective priority: config first, then the
// priority the agent declared in its own output.
func (s *Selector) priorityOf(agentID string, batch *output.Batch) int {
	if p, ok := s.cfg.Priorities[agentID]; ok {
		return p
	}
	if batch != nil {
		if out := batch.ByAgent(agentID); out != nil {
			return out.Priority
		}
	}
	return 0
}

// keepByPriority settles an overlap when exactly one involved agent has the
// strictly highest effective priority. "Ours" is the first agent in report
// order, so the strategy name says which side won.
func (s *Selector) keepByPriority(c conflict.Conflict, batch *output.Batch) (Resolution, bool) {
	if len(c.Agents) == 0 {
		return Resolution{}, false
	}

	best, bestP, tied, any := "", 0, false, false
	for _, agent := range c.Agents {
		p := s.priorityOf(agent, batch)
		if p != 0 {
			any = true
		}
		switch {
		case best == "" || p > bestP:
			best, bestP, tied = agent, p, false
		case p == bestP:
			tied = true
		}
	}
	if !any || tied {
		return Resolution{}, false
	}

	strategy := StrategyKeepTheirs
	if best == c.Agents[0] {
		strategy = StrategyKeepOurs
	}
	s.log.Debug("priority settles overlap",
		zap.String("conflict", c.ID),
		zap.String("winner", best))
	return Resolution{
		ConflictID:  c.ID,
		Strategy:    strategy,
		ChosenAgent: best,
		Action:      fmt.Sprintf("keep %s change to %s (highest priority)", best, c.Subject),
	}, true
}

func (s *Selector) resolveDependency(c conflict.Conflict) Resolution {
	if s.cfg.Overrides[conflict.KindDependency] == StrategyEscalate {
		return s.escalate(c, "dependency conflicts forced to escalate by config")
	}

	versions := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	winner := conflict.MaxVersion(versions)

	return Resolution{
		ConflictID: c.ID,
		Strategy:   StrategyLatestVersion,
		Value:      winner,
		Action:     fmt.Sprintf("pin %s to %s", c.Subject, winner),
	}
}

// resolveSchema unions the disputed declarations: every declared spelling
// maps onto the canonical field name and all declared types survive in the
// combined schema. Nothing is dropped.
func (s *Selector) resolveSchema(c conflict.Conflict) Resolution {
	renames := make(map[string]string)
	for _, declared := range c.Values {
		name := declared
		if idx := strings.LastIndex(declared, ":"); idx != -1 {
			name = declared[:idx]
		}
		if name != c.Subject {
			renames[name] = c.Subject
		}
	}

	return Resolution{
		ConflictID: c.ID,
		Strategy:   StrategyCombine,
		Renames:    renames,
		Action:     fmt.Sprintf("combine declarations of %s under a rename mapping", c.Subject),
	}
}

func (s *Selector) escalate(c conflict.Conflict, reason string) Resolution {
	return Resolution{
		ConflictID: c.ID,
		Strategy:   StrategyEscalate,
		Action:     reason,
	}
}
