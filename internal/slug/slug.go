// Package slug derives normalized location ids from human-readable place
// names returned by the reverse geocoder. Two spellings of the same place
// that differ only in case, accents or punctuation map to the same id.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Make lowercases the name, strips diacritics, collapses whitespace runs to
// a single "-" and drops every other character outside [a-z0-9].
func Make(name string) string {
	name = strings.ToLower(name)

	// chained transformers carry internal buffers, so build one per call
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripAccents, name); err == nil {
		name = stripped
	}

	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-':
			// '-' counts as a separator so that Make is idempotent
			// over its own output.
			pendingSep = true
		}
	}

	return b.String()
}
