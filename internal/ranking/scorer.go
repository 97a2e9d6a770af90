package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/synonyms"
)

// RowBucket returns the coarse row index of a y coordinate, rounding halves up.
func RowBucket(y float64) int {
	return int(math.Floor(y/RowBucketHeight + 0.5))
}

// AnalyzePage computes the title threshold and row densities of a page.
func AnalyzePage(page *models.OCRPage) *PageFeatures {
	f := &PageFeatures{Rows: make(map[int]int, len(page.Hits))}
	if len(page.Hits) == 0 {
		return f
	}
	heights := make([]float64, len(page.Hits))
	for i, d := range page.Hits {
		heights[i] = d.Box.H
		f.Rows[RowBucket(d.Box.Y)]++
	}
	sort.Float64s(heights)
	idx := int(math.Floor(float64(len(heights))*TitlePercentile)) - 1
	if idx < 0 {
		idx = 0
	}
	f.TitleHeight = heights[idx]
	return f
}

// Score returns the heuristic score of a matching detection.
func Score(isTitle, isTableLike bool) float64 {
	score := BaseScore
	if isTitle {
		score += TitleWeight
	}
	if isTableLike {
		score += TableWeight
	}
	return score
}

// ScorePage returns a hit for every detection whose normalized text contains any term.
// Terms are expected to be normalized already.
func ScorePage(terms []string, page *models.OCRPage) []models.Hit {
	if len(terms) == 0 || len(page.Hits) == 0 {
		return nil
	}
	features := AnalyzePage(page)
	var hits []models.Hit
	for i, d := range page.Hits {
		text := synonyms.Normalize(d.Text)
		if text == "" || !containsAny(text, terms) {
			continue
		}
		hits = append(hits, models.Hit{
			Page:   page.Page,
			Index:  i,
			Text:   d.Text,
			Score:  Score(features.IsTitle(d.Box.H), features.IsTableLike(d.Box.Y)),
			Box:    d.Box,
			Source: models.SourceOCR,
			Conf:   d.Conf,
		})
	}
	return hits
}

// ScoreIndex scores every page of the index and returns the ranked hits.
func ScoreIndex(terms []string, idx models.PageIndex) []models.Hit {
	var all []models.Hit
	for i := range idx {
		all = append(all, ScorePage(terms, &idx[i])...)
	}
	return Rank(all)
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}
