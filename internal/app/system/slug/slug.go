// Package slug derives URL path segments from post titles.
package slug

import (
	"strings"
	"unicode"
)

// Make lowercases title, drops every rune that is not a letter, digit,
// underscore, whitespace or hyphen, and joins the remaining words with
// single hyphens. Leading and trailing separators are removed.
//
// Titles that differ only in case or punctuation produce the same slug.
func Make(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pendingSep := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '-', unicode.IsSpace(r):
			pendingSep = true
		}
	}
	return b.String()
}
