package grading

import "strings"

// Normalize canonicalizes a free-text response for comparison: surrounding
// whitespace trimmed, U+2212 MINUS SIGN mapped to '-', internal whitespace
// runs collapsed to one space, lowercased.
//
// Option identifiers are never normalized.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "−", "-")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
