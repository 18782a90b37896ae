package utils

import "unicode/utf8"

// Truncate cuts s to at most maxLen bytes without splitting a UTF-8
// sequence and appends "..." when anything was removed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	cut := max(maxLen, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
