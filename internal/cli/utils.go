// Package cli provides output formatting for the pdfscope command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/pdfscope/internal/backend"
	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/storage"
	"github.com/hyperjump/pdfscope/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const maxTextWidth = 80

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteDocuments writes the library listing.
func WriteDocuments(w io.Writer, docs []models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []models.Document{}
		}
		return writeJSON(w, map[string]any{"items": docs})
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No PDFs found.")
		return nil
	}
	for _, d := range docs {
		if d.Pages > 0 {
			fmt.Fprintf(w, "%3d  %s  (%d pages)\n", d.ID, d.Name, d.Pages)
		} else {
			fmt.Fprintf(w, "%3d  %s\n", d.ID, d.Name)
		}
	}
	return nil
}

// SearchResult is what the search command reports.
type SearchResult struct {
	Document string       `json:"document"`
	Query    string       `json:"query"`
	Terms    []string     `json:"terms"`
	Hits     []models.Hit `json:"hits"`
}

// WriteSearchResult writes ranked hits in the given format.
func WriteSearchResult(w io.Writer, res *SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nFound %d hits for %q in %s\n", len(res.Hits), res.Query, res.Document)
	if len(res.Terms) > 0 {
		fmt.Fprintf(w, "Terms: %v\n", res.Terms)
	}
	fmt.Fprintln(w)
	for i, h := range res.Hits {
		fmt.Fprintf(w, "%3d. page %-4d score %.1f  %s\n", i+1, h.Page, h.Score, utils.Truncate(h.Text, maxTextWidth))
	}
	return nil
}

// WriteAnswer writes a QA answer with its pins and evidence.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n\n", ans.Answer)
	if ans.Confidence != nil {
		fmt.Fprintf(w, "Confidence: %.2f\n", *ans.Confidence)
	}
	if len(ans.Pins) > 0 {
		fmt.Fprintf(w, "Pins: %v\n", ans.Pins)
	}
	if len(ans.Pages) > 0 {
		fmt.Fprintf(w, "Pages: %v\n", ans.Pages)
	}
	if len(ans.Evidence) > 0 {
		fmt.Fprintln(w, "Evidence:")
		for _, ev := range ans.Evidence {
			fmt.Fprintf(w, "  [p%d] %s\n", ev.Page, utils.Truncate(ev.Text, maxTextWidth))
		}
	}
	return nil
}

// Stats combines the remote OCR cache report and the local store summary of a document.
// Either side may be nil when unavailable.
type Stats struct {
	Document string              `json:"document"`
	Remote   *backend.CacheStats `json:"remote,omitempty"`
	Local    *storage.PageStats  `json:"local,omitempty"`
}

// WriteStats writes OCR cache statistics.
func WriteStats(w io.Writer, s *Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "%s\n", s.Document)
	if s.Local != nil {
		fmt.Fprintf(w, "  local:  %d pages, %d with text, %d detections\n", s.Local.Pages, s.Local.NonzeroPages, s.Local.Detections)
	} else {
		fmt.Fprintln(w, "  local:  not cached")
	}
	if s.Remote != nil {
		fmt.Fprintf(w, "  remote: %d pages, %d with text, %d detections\n", s.Remote.PagesIndexed, s.Remote.NonzeroPages, s.Remote.TotalHits)
		if c := s.Remote.Combine; c != nil && c.Error == "" {
			fmt.Fprintf(w, "  merged file: %d pages, %d detections\n", c.PagesInFile, c.TotalHitsInFile)
		}
	} else {
		fmt.Fprintln(w, "  remote: unavailable")
	}
	return nil
}
