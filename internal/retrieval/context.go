package retrieval

import (
	"strconv"
	"strings"

	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/pkg/utils"
)

// Snippet collapses whitespace in text and cuts it to at most maxChars runes.
func Snippet(text string, maxChars int) string {
	return utils.Truncate(utils.CollapseWhitespace(text), maxChars)
}

// truncateHits returns copies of hits with Text cut to maxChars.
func truncateHits(hits []*models.SearchHit, maxChars int) []*models.SearchHit {
	out := make([]*models.SearchHit, len(hits))
	for i, h := range hits {
		cp := *h
		cp.Text = Snippet(h.Text, maxChars)
		out[i] = &cp
	}
	return out
}

// BuildContext renders hits as numbered, titled blocks:
//
//	[1] KITAS Guide:
//	<snippet>
//
// Blocks are separated by a blank line. Hit text is used as is; callers truncate first.
func BuildContext(hits []*models.SearchHit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(h.Metadata.Title())
		b.WriteString(":\n")
		b.WriteString(h.Text)
	}
	return b.String()
}
