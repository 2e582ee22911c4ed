// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// Truncate returns s cut to at most maxRunes runes. When s is cut, the result ends with "..."
// and the ellipsis counts toward maxRunes, so the result never exceeds the cap.
// If maxRunes is 0 or negative, returns s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	if maxRunes <= len(ellipsis) {
		return string([]rune(s)[:maxRunes])
	}
	cut := []rune(s)[:maxRunes-len(ellipsis)]
	return strings.TrimRightFunc(string(cut), isSpace) + ellipsis
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// CollapseWhitespace trims s and collapses every run of whitespace into one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
