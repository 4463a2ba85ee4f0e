// Package utils provides shared text and logging helpers.
package utils

// Truncate returns s cut to at most maxLen runes, with "..." appended if it was cut.
// If maxLen is 0 or negative, s is returned unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
