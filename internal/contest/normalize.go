package contest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeName folds a display name into a canonical lowercase form without
// diacritics, for case-insensitive lookups. The transformer chain is built
// per call because it is not safe for concurrent use.
func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	chain := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(unicode.ToLower),
		norm.NFKC,
	)

	result, _, err := transform.String(chain, s)
	if err != nil || result == "" {
		return strings.ToLower(s)
	}

	return result
}
