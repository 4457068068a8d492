package verify

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/dusk-indust/orchestrate/internal/merge"
)

// vulnClass is one class of dangerous construct. The check compares hit
// counts per class, so an agent touching a file that already calls eval is
// fine; introducing the first eval is not.
type vulnClass struct {
	name     string
	patterns []*regexp.Regexp
}

var vulnClasses = []vulnClass{
	{
		name: "code-injection",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\beval\s*\(`),
			regexp.MustCompile(`\bexec\s*\(`),
			regexp.MustCompile(`new\s+Function\s*\(`),
		},
	},
	{
		name: "insecure-deserialization",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`pickle\.loads?\s*\(`),
			regexp.MustCompile(`yaml\.load\s*\(`),
			regexp.MustCompile(`marshal\.loads?\s*\(`),
		},
	},
	{
		name: "command-execution",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`os\.system\s*\(`),
			regexp.MustCompile(`shell\s*=\s*True`),
			regexp.MustCompile(`\bpopen\s*\(`),
		},
	},
	{
		name: "weak-crypto",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`hashlib\.(?:md5|sha1)\s*\(`),
			regexp.MustCompile(`createHash\s*\(\s*['"](?:md5|sha1)['"]`),
			regexp.MustCompile(`"crypto/(?:md5|sha1)"`),
		},
	},
	{
		name: "xss-sink",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\.innerHTML\s*=`),
			regexp.MustCompile(`document\.write\s*\(`),
			regexp.MustCompile(`dangerouslySetInnerHTML`),
			regexp.MustCompile(`mark_safe\s*\(`),
		},
	},
}

// guardPatterns match authorization and authentication checks across the
// supported languages. The guard check counts them per file and rejects any
// decrease.
var guardPatterns = []*regexp.Regexp{
	regexp.MustCompile(`@login_required`),
	regexp.MustCompile(`@permission_required`),
	regexp.MustCompile(`@requires?_auth\w*`),
	regexp.MustCompile(`\bRequireAuth\w*\b`),
	regexp.MustCompile(`\b(?:is|ensure)Authenticated\b`),
	regexp.MustCompile(`\bcheck_permission\w*\b`),
}

func classHits(content string) map[string]int {
	hits := make(map[string]int, len(vulnClasses))
	for _, vc := range vulnClasses {
		n := 0
		for _, p := range vc.patterns {
			n += len(p.FindAllStringIndex(content, -1))
		}
		hits[vc.name] = n
	}
	return hits
}

func guardHits(content string) int {
	n := 0
	for _, p := range guardPatterns {
		n += len(p.FindAllStringIndex(content, -1))
	}
	return n
}

// vulnerabilityRegressions flags every file whose hit count in any class
// grew between the snapshots.
func vulnerabilityRegressions(before, after merge.Snapshot) []Violation {
	var violations []Violation
	for _, path := range after.Paths() {
		baseHits := map[string]int{}
		if base, ok := before.Files[path]; ok {
			baseHits = classHits(base)
		}
		newHits := classHits(after.Files[path])
		for _, vc := range vulnClasses {
			if newHits[vc.name] > baseHits[vc.name] {
				violations = append(violations, Violation{
					Check:   "vulnerability-classes",
					Subject: path,
					Detail: fmt.Sprintf("%s hits went from %d to %d",
						vc.name, baseHits[vc.name], newHits[vc.name]),
				})
			}
		}
	}
	return violations
}

// guardRegressions flags files that lost auth guards, including files the
// merge removed entirely.
func guardRegressions(before, after merge.Snapshot) []Violation {
	var violations []Violation
	paths := make([]string, 0, len(before.Files))
	for path := range before.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		baseCount := guardHits(before.Files[path])
		if baseCount == 0 {
			continue
		}
		content, ok := after.Files[path]
		if !ok {
			violations = append(violations, Violation{
				Check:   "auth-guards",
				Subject: path,
				Detail:  fmt.Sprintf("file removed along with %d auth guards", baseCount),
			})
			continue
		}
		if count := guardHits(content); count < baseCount {
			violations = append(violations, Violation{
				Check:   "auth-guards",
				Subject: path,
				Detail:  fmt.Sprintf("auth guards went from %d to %d", baseCount, count),
			})
		}
	}
	return violations
}
