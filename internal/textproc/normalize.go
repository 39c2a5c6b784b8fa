// Package textproc turns free text into comparable search terms: normalization,
// stopword filtering, suffix stemming and synonym expansion.
package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text, strips diacritical marks, replaces every rune
// that is not a letter, digit, whitespace or hyphen with a space, collapses
// whitespace runs and trims the ends. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	// transform chains keep state, so one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, lower)
	if err != nil {
		stripped = lower
	}
	stripped = strings.ToLower(stripped)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			return r
		}
		return ' '
	}, stripped)
	return strings.Join(strings.Fields(cleaned), " ")
}
