package overlay

import "github.com/hyperjump/pdfscope/internal/models"

// Overlay is a drawable rectangle for one hit on the displayed page.
type Overlay struct {
	Key    string        `json:"key"`
	Source models.Source `json:"source"`
	Page   int           `json:"page"`
	Index  int           `json:"index"`
	Text   string        `json:"text"`
	Score  float64       `json:"score"`
	Active bool          `json:"active,omitempty"`
	Rect   Rect          `json:"rect"`
}

// View is the subset of view state the projector needs.
type View struct {
	// Page is the currently displayed page.
	Page int
	// Ready reports whether the page finished rendering.
	Ready bool
	// Rendered is the measured rendered size of the page.
	Rendered models.Size
}

// Eligible reports whether overlays may be drawn for the view.
func (v View) Eligible() bool {
	return v.Ready && v.Rendered.Known()
}

// Input bundles everything Project consumes.
type Input struct {
	View View
	// OCRSizes holds the OCR raster size per page.
	OCRSizes map[int]models.Size
	Search   []models.Hit
	QA       []models.Hit
	// ActiveKey is the key of the selected search hit, if any.
	ActiveKey string
}

// Project returns overlays for the hits on the displayed page, search hits first.
// Nothing is returned while the page is not eligible.
func Project(in Input) []Overlay {
	if !in.View.Eligible() {
		return nil
	}
	ocr := in.OCRSizes[in.View.Page]
	var out []Overlay
	for _, list := range [][]models.Hit{in.Search, in.QA} {
		for i := range list {
			h := &list[i]
			if h.Page != in.View.Page {
				continue
			}
			key := h.Key()
			out = append(out, Overlay{
				Key:    key,
				Source: h.Source,
				Page:   h.Page,
				Index:  h.Index,
				Text:   h.Text,
				Score:  h.Score,
				Active: key == in.ActiveKey,
				Rect:   MapBox(h.Box, ocr, in.View.Rendered),
			})
		}
	}
	return out
}
