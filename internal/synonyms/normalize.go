// Package synonyms expands a raw query into an ordered set of normalized equivalent terms.
package synonyms

import (
	"strings"
	"unicode"
)

// Normalize lowercases s and removes every whitespace rune.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
