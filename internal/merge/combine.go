package merge

import (
	"path"
	"regexp"
	"sort"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/resolve"
)

// combineDependencies unions the dependency declarations of every agent that
// landed. Conflicted packages carry the resolved version; an escalated
// dependency conflict leaves the package out entirely, since no version was
// decided.
func combineDependencies(req ExecuteRequest, pl *plan, excluded map[string]bool) map[string]string {
	deps := make(map[string]string)
	for _, agentID := range req.Batch.AgentIDs() {
		if excluded[agentID] {
			continue
		}
		out := req.Batch.ByAgent(agentID)
		for pkg, version := range out.Dependencies {
			deps[pkg] = version
		}
	}

	for _, c := range req.Conflicts {
		if c.Kind != conflict.KindDependency {
			continue
		}
		if _, declared := deps[c.Subject]; !declared {
			continue
		}
		res := pl.res[c.ID]
		switch res.Strategy {
		case resolve.StrategyLatestVersion:
			if res.Value != "" {
				deps[c.Subject] = res.Value
			}
		case resolve.StrategyKeepOurs, resolve.StrategyKeepTheirs:
			if v, ok := c.Values[res.ChosenAgent]; ok {
				deps[c.Subject] = v
			}
		case resolve.StrategyEscalate:
			delete(deps, c.Subject)
		}
	}

	if len(deps) == 0 {
		return nil
	}
	return deps
}

// conflictedPins returns package -> version for every dependency conflict
// that resolved to a concrete version. Only these get rewritten in
// manifests; uncontested declarations are whatever the agents wrote.
func conflictedPins(req ExecuteRequest, pl *plan) map[string]string {
	pins := make(map[string]string)
	for _, c := range req.Conflicts {
		if c.Kind != conflict.KindDependency {
			continue
		}
		res := pl.res[c.ID]
		switch res.Strategy {
		case resolve.StrategyLatestVersion:
			if res.Value != "" {
				pins[c.Subject] = res.Value
			}
		case resolve.StrategyKeepOurs, resolve.StrategyKeepTheirs:
			if v, ok := c.Values[res.ChosenAgent]; ok {
				pins[c.Subject] = v
			}
		}
	}
	return pins
}

// isManifest matches requirements-style dependency manifests.
func isManifest(p string) bool {
	return path.Base(p) == "requirements.txt"
}

// pinManifests rewrites requirements-style manifest lines in the snapshot so
// conflicted packages carry their resolved version. Returns the paths it
// changed, sorted.
func pinManifests(snap *Snapshot, pins map[string]string) []string {
	if len(pins) == 0 {
		return nil
	}

	pkgs := make([]string, 0, len(pins))
	for pkg := range pins {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	var rewritten []string
	for _, p := range snap.Paths() {
		if !isManifest(p) {
			continue
		}
		content := snap.Files[p]
		updated := content
		for _, pkg := range pkgs {
			re := regexp.MustCompile(`(?im)^([ \t]*)` + regexp.QuoteMeta(pkg) + `[ \t]*(?:==|>=|<=|~=|!=|>|<)[ \t]*[^\s#;]+`)
			updated = re.ReplaceAllString(updated, "${1}"+pkg+"=="+pins[pkg])
		}
		if updated != content {
			snap.Files[p] = updated
			rewritten = append(rewritten, p)
		}
	}
	return rewritten
}

// combineSchema unions the schema declarations of the agents that landed.
// Fields named by a combine resolution collapse onto their canonical
// spelling per the rename mapping; every declared type survives.
func combineSchema(req ExecuteRequest, pl *plan, excluded map[string]bool) map[string][]string {
	renames := make(map[string]string)
	for _, c := range req.Conflicts {
		res := pl.res[c.ID]
		if res.Strategy != resolve.StrategyCombine {
			continue
		}
		for declared, canonical := range res.Renames {
			renames[declared] = canonical
		}
	}

	types := make(map[string]map[string]bool)
	for _, agentID := range req.Batch.AgentIDs() {
		if excluded[agentID] {
			continue
		}
		out := req.Batch.ByAgent(agentID)
		for declared, typ := range out.Schema {
			name := declared
			if canonical, ok := renames[declared]; ok {
				name = canonical
			}
			if types[name] == nil {
				types[name] = make(map[string]bool)
			}
			types[name][typ] = true
		}
	}

	if len(types) == 0 {
		return nil
	}
	schema := make(map[string][]string, len(types))
	for name, set := range types {
		list := make([]string, 0, len(set))
		for t := range set {
			list = append(list, t)
		}
		sort.Strings(list)
		schema[name] = list
	}
	return schema
}
