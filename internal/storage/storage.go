// Package storage persists OCR pages and synonym suggestions.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/pdfscope/internal/models"
)

// ErrNotFound is returned when nothing is stored under a key.
var ErrNotFound = errors.New("storage: not found")

// PageStats summarizes the stored OCR pages of one document.
type PageStats struct {
	Pages        int `json:"pages"`
	NonzeroPages int `json:"nonzero_pages"`
	Detections   int `json:"detections"`
}

// Storage defines OCR page and suggestion persistence operations.
type Storage interface {
	// OCR pages, keyed by document locator and OCR parameters.
	SavePages(ctx context.Context, pdfName string, p models.OCRParams, pages models.PageIndex) error
	LoadPages(ctx context.Context, pdfName string, p models.OCRParams) (models.PageIndex, error)
	DeletePages(ctx context.Context, pdfName string, p models.OCRParams) error
	PageStats(ctx context.Context, pdfName string, p models.OCRParams) (*PageStats, error)

	// Suggestions, keyed by scope (document or "global") and normalized query.
	GetSuggestion(ctx context.Context, scope, query string) (*models.Suggestion, time.Time, error)
	PutSuggestion(ctx context.Context, scope, query string, s *models.Suggestion, at time.Time) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountPages(ctx context.Context) (int64, error)
	SizeBytes() (int64, error)

	Close() error
}
