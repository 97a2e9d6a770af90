package suggest

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/pdfscope/internal/models"
)

const (
	// MaxVocabulary caps the candidate terms sent to the model.
	MaxVocabulary = 400
	minTermLen    = 2
	maxTermLen    = 32
)

var (
	hanRun  = regexp.MustCompile(`[\x{4e00}-\x{9fff}]{2,6}`)
	codeRun = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_/\-]{1,31}`)
)

// Vocabulary mines candidate terms from OCR text: whole detections, runs of 2 to 6 Han
// characters and code-like Latin tokens. Terms are ordered by length, then value.
func Vocabulary(idx models.PageIndex) []string {
	seen := make(map[string]struct{})
	add := func(s string) {
		if n := utf8.RuneCountInString(s); n >= minTermLen && n <= maxTermLen {
			seen[s] = struct{}{}
		}
	}
	for _, page := range idx {
		for _, d := range page.Hits {
			t := strings.TrimSpace(d.Text)
			if t == "" {
				continue
			}
			add(t)
			for _, m := range hanRun.FindAllString(t, -1) {
				add(m)
			}
			for _, m := range codeRun.FindAllString(t, -1) {
				add(m)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(out[i]), utf8.RuneCountInString(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	if len(out) > MaxVocabulary {
		out = out[:MaxVocabulary]
	}
	return out
}
