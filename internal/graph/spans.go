package graph

import (
	"context"
	"sort"

	"github.com/dusk-indust/orchestrate/internal/conflict"
	"github.com/dusk-indust/orchestrate/internal/output"
)

// SpanResolver answers which symbols a set of line ranges lands on, by
// parsing the submitted file content. The conflict detector uses it to tell
// apart two agents editing the same function from two agents editing
// different functions in the same file.
type SpanResolver struct {
	parser Parser
}

// Compile-time check that SpanResolver plugs into the conflict detector.
var _ conflict.SymbolResolver = (*SpanResolver)(nil)

// NewSpanResolver wraps a Parser. The caller keeps ownership of the parser
// and is responsible for closing it.
func NewSpanResolver(parser Parser) *SpanResolver {
	return &SpanResolver{parser: parser}
}

// ModifiedSymbols returns the sorted names of symbols whose spans overlap any
// of the given line ranges. Files in unsupported languages yield nil, which
// the detector treats as "unknown" rather than "no symbols".
func (r *SpanResolver) ModifiedSymbols(ctx context.Context, path, content string, ranges []output.LineRange) ([]string, error) {
	lang := LanguageForPath(path)
	supported := false
	for _, l := range r.parser.SupportedLanguages() {
		if l == lang {
			supported = true
			break
		}
	}
	if !supported {
		return nil, nil
	}

	res, err := r.parser.Parse(ctx, path, []byte(content), lang)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, sym := range res.Symbols {
		span := output.LineRange{Start: sym.StartLine, End: sym.EndLine}
		for _, rg := range ranges {
			if span.Overlaps(rg) {
				if !seen[sym.Name] {
					seen[sym.Name] = true
					names = append(names, sym.Name)
				}
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
