package ranking

import "github.com/hyperjump/pdfscope/internal/models"

// FromAnswer adapts QA evidence into hits. Order follows the backend's evidence order.
func FromAnswer(ans *models.Answer) []models.Hit {
	if ans == nil || len(ans.Evidence) == 0 {
		return nil
	}
	conf := DefaultConfidence
	if ans.Confidence != nil {
		conf = *ans.Confidence
	}
	hits := make([]models.Hit, len(ans.Evidence))
	for i, ev := range ans.Evidence {
		page := ev.Page
		if page <= 0 {
			page = 1
		}
		var box models.Box
		if ev.Box != nil {
			box = *ev.Box
		}
		hits[i] = models.Hit{
			Page:   page,
			Index:  i,
			Text:   ev.Text,
			Score:  conf + EvidenceBias,
			Box:    box,
			Source: models.SourceQA,
		}
	}
	return hits
}
