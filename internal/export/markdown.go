package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/orchestrate/internal/verify"
)

// FormatRunReport renders a RunExport as a markdown report. Sections for
// artifacts the run has not produced are omitted rather than shown empty.
func FormatRunReport(export *RunExport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Merge Run: %s\n\n", export.RunID))
	sb.WriteString(fmt.Sprintf("- exported: %s\n", export.ExportedAt))
	sb.WriteString(fmt.Sprintf("- verdict: %s\n", export.Verdict))

	sb.WriteString("\n## Phases\n\n")
	sb.WriteString("| # | Phase | Status |\n")
	sb.WriteString("|---|-------|--------|\n")
	for _, p := range export.Phases {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s |\n", p.Phase, p.Name, p.Status))
	}

	if len(export.Agents) > 0 {
		sb.WriteString(fmt.Sprintf("\n## Agents (%d)\n\n", len(export.Agents)))
		for _, a := range export.Agents {
			sb.WriteString(fmt.Sprintf("- **%s**", a.AgentID))
			if a.Priority != 0 {
				sb.WriteString(fmt.Sprintf(" (priority %d)", a.Priority))
			}
			sb.WriteString(fmt.Sprintf(": %d file(s)", len(a.FileActions)))
			if len(a.Requires) > 0 {
				sb.WriteString(fmt.Sprintf(", requires %s", strings.Join(a.Requires, ", ")))
			}
			sb.WriteString("\n")
			for _, fa := range a.FileActions {
				sb.WriteString(fmt.Sprintf("  - %s\n", fa))
			}
		}
	}

	if len(export.Conflicts) > 0 {
		sb.WriteString(fmt.Sprintf("\n## Conflicts (%d)\n\n", len(export.Conflicts)))
		for _, c := range export.Conflicts {
			sb.WriteString(fmt.Sprintf("- [%s] %s %s: %s\n", c.Severity, c.Kind, c.Subject, c.Detail))
		}
	}

	if len(export.Resolutions) > 0 {
		sb.WriteString("\n## Resolutions\n\n")
		sb.WriteString("| Conflict | Strategy | Action |\n")
		sb.WriteString("|----------|----------|--------|\n")
		for _, r := range export.Resolutions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", r.ConflictID, r.Strategy, r.Action))
		}
	}

	if export.Merge != nil {
		m := export.Merge
		sb.WriteString("\n## Merge\n\n")
		sb.WriteString(fmt.Sprintf("- merged %d file(s), snapshot v%d\n", len(m.MergedFiles), m.SnapshotVersion))
		if len(m.Order) > 0 {
			sb.WriteString(fmt.Sprintf("- order: %s\n", strings.Join(m.Order, ", ")))
		}
		if len(m.SkippedAgents) > 0 {
			sb.WriteString(fmt.Sprintf("- rolled back: %s\n", strings.Join(m.SkippedAgents, ", ")))
		}
		if m.Unresolved > 0 {
			sb.WriteString(fmt.Sprintf("- unresolved conflicts: %d\n", m.Unresolved))
		}
		for _, pin := range pinLines(m.Dependencies) {
			sb.WriteString(fmt.Sprintf("- pinned: %s\n", pin))
		}
		for _, w := range m.Warnings {
			sb.WriteString(fmt.Sprintf("- warning: %s\n", w))
		}
	}

	if export.Verification != nil {
		sb.WriteString("\n")
		sb.WriteString(verify.FormatSummary(export.Verification))
	}

	return sb.String()
}

// pinLines renders pinned dependency versions in stable order.
func pinLines(deps map[string]string) []string {
	if len(deps) == 0 {
		return nil
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf("%s %s", name, deps[name])
	}
	return lines
}
