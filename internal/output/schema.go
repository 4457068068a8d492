package output

import (
	"strings"
	"unicode"
)

// CanonicalField folds a declared schema field name to snake_case so that
// camelCase, PascalCase, kebab-case, and snake_case spellings of the same
// logical field compare equal: "userId", "UserID", "user-id", and "user_id"
// all canonicalize to "user_id".
func CanonicalField(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(name) + 4)

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.':
			r = '_'
		case unicode.IsUpper(r):
			// Insert a separator at lower→upper boundaries and at the end of
			// an initialism run ("userID" → "user_id", "HTTPServer" → "http_server").
			if i > 0 && runes[i-1] != '_' && runes[i-1] != '-' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					sb.WriteByte('_')
				}
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}

	out := sb.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// CanonicalType folds a declared field type to a comparable form. Aliases
// that name the same storage type compare equal (int/integer, str/string,
// bool/boolean, float/double/number); everything else is lower-cased as is.
func CanonicalType(typ string) string {
	t := strings.ToLower(strings.TrimSpace(typ))
	switch t {
	case "int", "integer", "int32", "int64", "long":
		return "integer"
	case "str", "string", "text", "varchar":
		return "string"
	case "bool", "boolean":
		return "boolean"
	case "float", "float32", "float64", "double", "number", "decimal":
		return "number"
	case "datetime", "timestamp", "time.time":
		return "timestamp"
	default:
		return t
	}
}

// SchemaFields returns the output's schema as sorted canonical field names
// mapped back to their declared spellings. Multiple declared spellings that
// canonicalize identically keep the lexicographically first spelling.
func SchemaFields(o *AgentOutput) map[string]string {
	fields := make(map[string]string, len(o.Schema))
	for declared := range o.Schema {
		canon := CanonicalField(declared)
		if prev, ok := fields[canon]; !ok || declared < prev {
			fields[canon] = declared
		}
	}
	return fields
}
