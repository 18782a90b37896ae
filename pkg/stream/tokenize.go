package stream

import (
	"unicode"
	"unicode/utf8"
)

// Tokenize splits s into alternating runs of whitespace and non-whitespace.
// Concatenating the result reconstructs s exactly; no token is empty.
func Tokenize(s string) []string {
	var tokens []string

	start := 0
	inSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i > start && space != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}

	return tokens
}

// tokenLen counts the runes across tokens.
func tokenLen(tokens []string) int {
	n := 0
	for _, t := range tokens {
		n += utf8.RuneCountInString(t)
	}
	return n
}
