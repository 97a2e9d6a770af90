package models

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyQuery is returned when a search has no query text.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrEmptyQuestion is returned when a QA request has no question text.
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrNotFound is returned when a document or session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOCRRequired is returned when a search runs before any OCR page is available.
	ErrOCRRequired = errors.New("OCR required before search")
	// ErrNoDocument is returned when an operation needs an open document.
	ErrNoDocument = errors.New("no document open")
)

// SearchQuery is a search request against the active document.
type SearchQuery struct {
	Query string `json:"query"`
	// Enhance asks the synonym suggester for additional terms.
	Enhance bool `json:"enhance,omitempty"`
}

// Validate rejects empty queries.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// QARequest is a question against the active document.
type QARequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	Window   int    `json:"window,omitempty"`
}

// Validate rejects empty questions and applies retrieval defaults.
func (q *QARequest) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return ErrEmptyQuestion
	}
	if q.TopK <= 0 {
		q.TopK = 80
	}
	if q.Window < 0 {
		q.Window = 0
	}
	return nil
}
