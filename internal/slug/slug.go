// Package slug converts free-form text into filesystem- and
// identifier-safe tokens.
package slug

import (
	"strings"
	"unicode"
)

// Slugify lower-cases text, drops every rune that is not a letter, digit,
// underscore or hyphen, and collapses each run of whitespace into a single
// underscore. The result is deterministic for a given input; distinct
// inputs may collide (callers that need uniqueness must add their own
// disambiguator).
func Slugify(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSep := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSep = true
		}
	}
	return b.String()
}
