// Package cli provides output helpers for the zantara command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to a format. Anything but "json" is text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

const previewChars = 200

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrievalResult writes a retrieval result to w in the given format.
func WriteRetrievalResult(w io.Writer, res *models.RetrievalResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	writeRetrievalText(w, res)
	return nil
}

func writeRetrievalText(w io.Writer, res *models.RetrievalResult) {
	if !res.UsedRAG {
		fmt.Fprintf(w, "\nNo context retrieved (%dms)\n", res.QueryTime)
		if res.Routing != nil && res.Routing.Selected != "" {
			fmt.Fprintf(w, "Routed to: %s\n", res.Routing.Selected)
		}
		return
	}
	fmt.Fprintf(w, "\nFound %d documents in %dms from %s", res.DocumentCount, res.QueryTime, strings.Join(res.Collections, ", "))
	if res.UsedFallback {
		fmt.Fprint(w, " (fallback)")
	}
	fmt.Fprint(w, "\n\n")
	for i, h := range res.Docs {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s | Score: %.4f | Tier: %s\n", i+1, h.Collection, h.Score, h.Metadata.Tier)
		fmt.Fprintf(w, "ID: %s\n", h.ID)
		if h.Metadata.BookTitle != "" {
			fmt.Fprintf(w, "Title: %s\n", h.Metadata.BookTitle)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(h.Text, previewChars))
	}
}

// WriteRouteReport writes a routing report to w in the given format.
func WriteRouteReport(w io.Writer, report *models.RouteReport, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, report)
	}
	d := report.Routing
	fmt.Fprintf(w, "Collection: %s\n", d.Selected)
	fmt.Fprintf(w, "Query type: %s\n", report.QueryType)
	fmt.Fprintf(w, "Matches:    %d\n", d.TotalMatches)
	if report.Ambiguous {
		fmt.Fprintf(w, "Ambiguous:  searching %s\n", strings.Join(report.Candidates, ", "))
	}
	for _, cs := range d.Ranked {
		fmt.Fprintf(w, "  %-28s total=%.2f domain=%.2f modifier=%.2f", cs.Collection, cs.Total, cs.Domain, cs.Modifier)
		if kws := d.MatchedKeywords[cs.Collection]; len(kws) > 0 {
			sorted := append([]string(nil), kws...)
			sort.Strings(sorted)
			fmt.Fprintf(w, " [%s]", strings.Join(sorted, ", "))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// PrintRetrievalResult prints a result to stdout in text format.
func PrintRetrievalResult(res *models.RetrievalResult) {
	_ = WriteRetrievalResult(os.Stdout, res, OutputText)
}
