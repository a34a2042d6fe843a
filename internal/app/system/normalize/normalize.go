// Package normalize holds the canonical trimming and casing rules for user input.
// Use these helpers instead of scattered strings.ToLower and strings.TrimSpace calls.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email trims and lowercases an address. Stored emails always pass through here.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display value. Use text.Fold() for comparison keys.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Status trims and lowercases a post status.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TagNames trims each name, drops blanks, and keeps the first spelling of
// names that fold to the same key. Input order is preserved.
func TagNames(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		k := text.Fold(n)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}

// SplitTags splits a comma separated form value into tag names.
func SplitTags(s string) []string {
	return TagNames(strings.Split(s, ","))
}
