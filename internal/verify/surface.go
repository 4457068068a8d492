package verify

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/merge"
	"github.com/dusk-indust/orchestrate/internal/output"
)

// SurfaceCounter counts exported declarations in one file.
type SurfaceCounter interface {
	CountExported(ctx context.Context, path, content string) (int, error)
}

// RegexCounter counts exports with per-language patterns. It is the default
// counter and needs no parser runtime.
type RegexCounter struct{}

var exportPatterns = map[graph.Language][]*regexp.Regexp{
	graph.LangGo: {
		regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?[A-Z]\w*`),
		regexp.MustCompile(`(?m)^type\s+[A-Z]\w*`),
		regexp.MustCompile(`(?m)^(?:var|const)\s+[A-Z]\w*`),
	},
	graph.LangPython: {
		regexp.MustCompile(`(?m)^def\s+[A-Za-z]\w*`),
		regexp.MustCompile(`(?m)^class\s+[A-Za-z]\w*`),
	},
	graph.LangTypeScript: {
		regexp.MustCompile(`(?m)^export\s+(?:default\s+)?(?:async\s+)?(?:function|class|const|let|var|interface|type|enum)\b`),
	},
	graph.LangRust: {
		regexp.MustCompile(`(?m)^\s*pub\s+(?:fn|struct|enum|trait|const|static|mod|type)\b`),
	},
}

// CountExported counts top-level exported declarations. Unknown languages
// count zero so the surface check stays quiet on files it cannot read.
func (RegexCounter) CountExported(_ context.Context, path, content string) (int, error) {
	patterns, ok := exportPatterns[graph.LanguageForPath(path)]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, p := range patterns {
		n += len(p.FindAllStringIndex(content, -1))
	}
	return n, nil
}

// ParserCounter counts exports with the code-intel parser, which sees
// declarations the regexes miss (nested exports, grouped var blocks).
type ParserCounter struct {
	parser graph.Parser
}

// NewParserCounter wraps a parser as a SurfaceCounter.
func NewParserCounter(p graph.Parser) *ParserCounter {
	return &ParserCounter{parser: p}
}

func (c *ParserCounter) CountExported(ctx context.Context, path, content string) (int, error) {
	lang := graph.LanguageForPath(path)
	if lang == graph.LangUnknown {
		return 0, nil
	}
	supported := false
	for _, l := range c.parser.SupportedLanguages() {
		if l == lang {
			supported = true
			break
		}
	}
	if !supported {
		return 0, nil
	}
	res, err := c.parser.Parse(ctx, path, []byte(content), lang)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sym := range res.Symbols {
		if sym.Exported {
			n++
		}
	}
	return n, nil
}

// surfaceRegressions bounds each merged file's exported count. With a batch
// the bound is the base count plus the growth each submission declared for
// that path; a merge can then never export more than its inputs combined.
// Without a batch any growth over the base is a violation.
func surfaceRegressions(ctx context.Context, counter SurfaceCounter, before, after merge.Snapshot, batch *output.Batch) ([]Violation, []string) {
	var violations []Violation
	var warnings []string

	for _, path := range after.Paths() {
		baseN := 0
		if base, ok := before.Files[path]; ok {
			n, err := counter.CountExported(ctx, path, base)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("public-surface: count %s: %v", path, err))
				continue
			}
			baseN = n
		}
		afterN, err := counter.CountExported(ctx, path, after.Files[path])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("public-surface: count %s: %v", path, err))
			continue
		}

		allowed := baseN
		declared := 0
		if batch != nil {
			for _, out := range batch.Outputs {
				for _, fc := range out.Files {
					if fc.Path != path || fc.Op == output.OpDelete || fc.Content == "" {
						continue
					}
					candN, err := counter.CountExported(ctx, path, fc.Content)
					if err != nil {
						warnings = append(warnings, fmt.Sprintf("public-surface: count %s from %s: %v", path, out.AgentID, err))
						continue
					}
					if growth := candN - baseN; growth > 0 {
						declared += growth
					}
				}
			}
			allowed += declared
		}

		if afterN > allowed {
			violations = append(violations, Violation{
				Check:   "public-surface",
				Subject: path,
				Detail: fmt.Sprintf("exported symbols went from %d to %d, submissions account for %d",
					baseN, afterN, declared),
			})
		}
	}
	return violations, warnings
}
