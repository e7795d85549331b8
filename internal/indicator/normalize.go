// Package indicator resolves free-text country names to ISO3 codes and
// fetches, paginates, and caches external indicator series from the World
// Bank Data360 API, producing join-ready enrichment tables.
package indicator

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a country label or message for alias lookup and
// phrase containment: diacritics stripped, case folded, runs of
// non-alphanumerics collapsed to single spaces. Idempotent.
func Normalize(s string) string {
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		} else {
			space = true
		}
	}
	return b.String()
}

// containsPhrase reports whether the normalized message contains the
// normalized phrase on word boundaries.
func containsPhrase(normalizedMessage, phrase string) bool {
	if phrase == "" {
		return false
	}
	padded := " " + normalizedMessage + " "
	return strings.Contains(padded, " "+phrase+" ")
}
