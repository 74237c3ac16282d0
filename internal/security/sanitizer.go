package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxAnswerLength caps a stored answer body, in bytes.
const MaxAnswerLength = 1000

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeString removes potentially dangerous characters
func SanitizeString(input string) string {
	// Trim whitespace
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Limit length without splitting a multi-byte character
	if len(input) > MaxAnswerLength {
		cut := MaxAnswerLength
		for cut > 0 && !utf8.RuneStart(input[cut]) {
			cut--
		}
		input = input[:cut]
	}

	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeAnswer is applied to every answer body before it is stored.
func SanitizeAnswer(input string) string {
	return strings.TrimSpace(SanitizeHTML(SanitizeString(input)))
}
