package viewer

import (
	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/overlay"
	"github.com/hyperjump/pdfscope/internal/viewsync"
)

// Snapshot is a consistent copy of everything a client needs to draw the viewer.
type Snapshot struct {
	Document *models.Document `json:"document,omitempty"`
	// NotFound holds the segment of the last open that matched no document.
	NotFound string         `json:"not_found,omitempty"`
	View     viewsync.State `json:"view"`
	// PageReady reports whether overlays may be drawn on the displayed page.
	PageReady bool              `json:"page_ready"`
	OCRPages  int               `json:"ocr_pages"`
	Query     string            `json:"query,omitempty"`
	Terms     []string          `json:"terms,omitempty"`
	Hits      []models.Hit      `json:"hits"`
	Active    int               `json:"active"`
	Answer    *models.Answer    `json:"answer,omitempty"`
	Evidence  []models.Hit      `json:"evidence"`
	Overlays  []overlay.Overlay `json:"overlays"`
	Focus     string            `json:"focus,omitempty"`
}

// ActiveHit returns the selected search hit.
func (s *Snapshot) ActiveHit() (models.Hit, bool) {
	if s.Active < 0 || s.Active >= len(s.Hits) {
		return models.Hit{}, false
	}
	return s.Hits[s.Active], true
}

// Snapshot returns the current session state with overlays projected for the displayed page.
func (s *Session) Snapshot() *Snapshot {
	view := s.deps.View.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := &Snapshot{
		NotFound: s.missing,
		View:     view,
		OCRPages: len(s.index),
		Query:    s.query,
		Terms:    append([]string(nil), s.terms...),
		Hits:     append([]models.Hit{}, s.hits...),
		Active:   s.active,
		Answer:   s.answer,
		Evidence: append([]models.Hit{}, s.qaHits...),
		Focus:    s.focus,
	}
	if s.doc != nil {
		doc := *s.doc
		out.Document = &doc
	}
	page := view.PageNumber
	out.PageReady = view.PageReady(page)

	var activeKey string
	if h, ok := out.ActiveHit(); ok {
		activeKey = h.Key()
	}
	out.Overlays = overlay.Project(overlay.Input{
		View: overlay.View{
			Page:     page,
			Ready:    view.Ready[page],
			Rendered: view.Sizes[page],
		},
		OCRSizes:  s.index.Sizes(),
		Search:    s.hits,
		QA:        s.qaHits,
		ActiveKey: activeKey,
	})
	if out.Overlays == nil {
		out.Overlays = []overlay.Overlay{}
	}
	return out
}
