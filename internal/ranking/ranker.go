package ranking

import (
	"sort"

	"github.com/hyperjump/pdfscope/internal/models"
)

// Rank returns a copy of hits sorted by score descending, then page ascending, then index ascending.
func Rank(hits []models.Hit) []models.Hit {
	out := make([]models.Hit, len(hits))
	copy(out, hits)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Index < b.Index
	})
	return out
}

// Top returns the first hit of an already ranked list.
func Top(hits []models.Hit) (models.Hit, bool) {
	if len(hits) == 0 {
		return models.Hit{}, false
	}
	return hits[0], true
}
