package models

import "fmt"

// Source discriminates where a hit came from.
type Source string

const (
	// SourceOCR marks hits produced by searching the OCR page index.
	SourceOCR Source = "ocr"
	// SourceQA marks hits adapted from question-answering evidence.
	SourceQA Source = "qa"
)

// Hit is a scored, located match eligible for overlay and navigation.
type Hit struct {
	Page   int     `json:"page"`
	Index  int     `json:"index"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Box    Box     `json:"box"`
	Source Source  `json:"source"`
	// Conf is the raw recognition confidence for OCR hits.
	Conf float64 `json:"conf,omitempty"`
}

// Key returns the overlay identity of the hit: source, page and index.
func (h *Hit) Key() string {
	return HitKey(h.Source, h.Page, h.Index)
}

// HitKey formats an overlay identity key.
func HitKey(src Source, page, index int) string {
	return fmt.Sprintf("%s-%d-%d", src, page, index)
}

// Evidence is one supporting location returned by the QA backend.
type Evidence struct {
	Page int    `json:"page"`
	Text string `json:"text"`
	Box  *Box   `json:"box,omitempty"`
}

// Answer is the QA backend payload.
type Answer struct {
	Answer string `json:"answer"`
	// Confidence is nil when the backend omitted it.
	Confidence *float64   `json:"confidence,omitempty"`
	Pins       []string   `json:"pins,omitempty"`
	Pages      []int      `json:"pages,omitempty"`
	Evidence   []Evidence `json:"evidence"`
}

// Suggestion holds externally suggested equivalent terms for a query.
type Suggestion struct {
	Synonyms      []string `json:"synonyms"`
	Abbreviations []string `json:"abbreviations"`
	English       []string `json:"english"`
}

// Terms returns all suggested terms in category order.
func (s *Suggestion) Terms() []string {
	out := make([]string, 0, len(s.Synonyms)+len(s.Abbreviations)+len(s.English))
	out = append(out, s.Synonyms...)
	out = append(out, s.Abbreviations...)
	out = append(out, s.English...)
	return out
}
