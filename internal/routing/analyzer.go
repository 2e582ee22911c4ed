package routing

import (
	"strings"
	"unicode"
)

// QueryAnalyzer turns free text into normalized tokens for keyword matching.
type QueryAnalyzer struct{}

// NewQueryAnalyzer creates a new QueryAnalyzer.
func NewQueryAnalyzer() *QueryAnalyzer {
	return &QueryAnalyzer{}
}

// Tokens lowercases query and splits it into tokens. Separators are whitespace and
// sentence punctuation; '/', '-', '.' and '_' survive inside a token so codes like
// "28/2025" or "e-33g" stay whole.
func (qa *QueryAnalyzer) Tokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), isSeparator)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := qa.normalizeToken(f); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// normalizeToken removes leading/trailing punctuation but keeps internal punctuation.
func (qa *QueryAnalyzer) normalizeToken(token string) string {
	return strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case ',', ';', ':', '!', '?', '(', ')', '[', ']', '{', '}', '"', '\'', '`',
		'‘', '’', '“', '”', '¿', '¡':
		return true
	}
	return false
}

// containsSequence reports whether needle occurs as a contiguous run inside haystack.
func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, n := range needle {
			if haystack[i+j] != n {
				continue outer
			}
		}
		return true
	}
	return false
}
