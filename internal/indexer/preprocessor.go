package indexer

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/hyperjump/zantara/pkg/utils"
)

// Preprocess normalizes text for indexing: invalid UTF-8 and a leading byte
// order mark are dropped, control characters become spaces, and whitespace
// runs collapse to one space.
func Preprocess(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)
	return utils.CollapseWhitespace(text)
}

// titleFromText returns the first markdown heading of text, or "".
func titleFromText(text string) string {
	for _, line := range strings.SplitN(text, "\n", 50) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
	}
	return ""
}

// titleFromFilename turns "visa_guide-2025.md" into "visa guide 2025" so the
// keyword analyzer can match its words.
func titleFromFilename(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return utils.CollapseWhitespace(strings.NewReplacer("_", " ", "-", " ").Replace(name))
}
