package collect

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FileName turns an arbitrary entity name into a filesystem-safe directory
// name: diacritics stripped, path-hostile characters replaced, whitespace
// collapsed to underscores.
func FileName(name string) string {
	clean, _, err := transform.String(deaccent, name)
	if err != nil {
		clean = name
	}
	var b strings.Builder
	for _, r := range clean {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-' || r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '/' || r == '\\' || r == '_':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	if out == "" {
		return "unnamed"
	}
	return out
}
