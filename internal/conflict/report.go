package conflict

import (
	"fmt"
	"sort"
	"strings"
)

// Summary counts conflicts by kind and severity.
type Summary struct {
	Total      int              `json:"total"`
	ByKind     map[Kind]int     `json:"by_kind"`
	BySeverity map[Severity]int `json:"by_severity"`
}

// Summarize tallies a conflict list.
func Summarize(conflicts []Conflict) Summary {
	s := Summary{
		Total:      len(conflicts),
		ByKind:     make(map[Kind]int),
		BySeverity: make(map[Severity]int),
	}
	for _, c := range conflicts {
		s.ByKind[c.Kind]++
		s.BySeverity[c.Severity]++
	}
	return s
}

// Report renders a markdown conflict report grouped by severity, worst
// first. Within a severity group conflicts keep report order.
func Report(conflicts []Conflict) string {
	var sb strings.Builder
	sb.WriteString("# Conflict Report\n\n")

	if len(conflicts) == 0 {
		sb.WriteString("No conflicts detected.\n")
		return sb.String()
	}

	summary := Summarize(conflicts)
	sb.WriteString(fmt.Sprintf("%d conflict(s): %s\n", summary.Total, severityCounts(summary)))

	grouped := make(map[Severity][]Conflict)
	for _, c := range conflicts {
		grouped[c.Severity] = append(grouped[c.Severity], c)
	}

	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		group := grouped[sev]
		if len(group) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n## %s\n", sev))
		for _, c := range group {
			sb.WriteString(fmt.Sprintf("\n### %s %s\n\n", c.Kind, c.Subject))
			sb.WriteString(c.Detail + "\n")
			sb.WriteString(fmt.Sprintf("- agents: %s\n", strings.Join(c.Agents, ", ")))

			agents := make([]string, 0, len(c.Values))
			for agent := range c.Values {
				agents = append(agents, agent)
			}
			sort.Strings(agents)
			for _, agent := range agents {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", agent, c.Values[agent]))
			}
		}
	}

	return sb.String()
}

func severityCounts(s Summary) string {
	var parts []string
	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		if n := s.BySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	return strings.Join(parts, ", ")
}
