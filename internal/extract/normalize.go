package extract

import "strings"

// DefaultMaxChars caps the text kept per source.
const DefaultMaxChars = 5000

// Normalize collapses every whitespace run to a single space, trims the
// ends and truncates to maxChars runes. maxChars <= 0 means DefaultMaxChars.
func Normalize(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	s := strings.Join(strings.Fields(text), " ")
	if len(s) <= maxChars {
		// Byte length bounds rune count, so no truncation is needed.
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
