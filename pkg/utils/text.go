package utils

import "strings"

// NormalizeAnswer is the comparison form of an answer: trimmed and lowercased.
// Inner whitespace is kept as is, so "new  york" and "new york" differ.
func NormalizeAnswer(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
