// Package backend is the HTTP client of the OCR, synonym and QA service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/models"
)

var (
	// ErrUnavailable is returned when the service cannot be reached or fails.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrNotFound is returned when the service has no data for the request.
	ErrNotFound = errors.New("backend: not found")
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	retryDelay     = 200 * time.Millisecond
	maxErrorBody   = 4 << 10
)

// Client talks to the backend service. Idempotent GETs are retried; POSTs are not.
type Client struct {
	baseURL string
	http    *http.Client
	retries uint
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithRetries sets how many attempts a GET makes.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = uint(n)
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		retries: defaultRetries,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OCRRequest asks the service to OCR a document.
type OCRRequest struct {
	PDFURL  string `json:"pdf_url"`
	PDFName string `json:"pdf_name"`
	Force   bool   `json:"force"`
	models.OCRParams
	// Pages limits the run to these 1-based pages; empty means all.
	Pages []int `json:"pages,omitempty"`
}

// QARequest asks a question about a document.
type QARequest struct {
	PDFName  string `json:"pdf_name"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	Window   int    `json:"window"`
}

// PageStat is the detection count of one cached page.
type PageStat struct {
	Page int `json:"page"`
	Hits int `json:"hits"`
}

// CombinedStat describes the merged cache file.
type CombinedStat struct {
	PagesInFile     int    `json:"pages_in_file"`
	TotalHitsInFile int    `json:"total_hits_in_file"`
	Error           string `json:"error,omitempty"`
}

// CacheStats summarizes the OCR cache of one document.
type CacheStats struct {
	PagesIndexed int           `json:"pages_indexed"`
	NonzeroPages int           `json:"nonzero_pages"`
	TotalHits    int           `json:"total_hits"`
	First10      []PageStat    `json:"first_10"`
	Combine      *CombinedStat `json:"combine"`
}

func ocrQuery(pdfName string, p models.OCRParams) url.Values {
	q := url.Values{}
	q.Set("pdf_name", pdfName)
	q.Set("dpi", strconv.Itoa(p.DPI))
	q.Set("tile", strconv.Itoa(p.Tile))
	q.Set("overlap", strconv.FormatFloat(p.Overlap, 'f', -1, 64))
	return q
}

// OCRCache returns the persisted OCR pages of a document, or ErrNotFound.
func (c *Client) OCRCache(ctx context.Context, pdfName string, p models.OCRParams) (models.PageIndex, error) {
	var pages models.PageIndex
	if err := c.get(ctx, "/ocr_cache", ocrQuery(pdfName, p), &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// RunOCR runs OCR and returns the pages it produced.
func (c *Client) RunOCR(ctx context.Context, req OCRRequest) (models.PageIndex, error) {
	var pages models.PageIndex
	if err := c.post(ctx, "/ocr_pdf", req, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// CacheStats reports the OCR cache state of a document.
func (c *Client) CacheStats(ctx context.Context, pdfName string, p models.OCRParams) (*CacheStats, error) {
	var stats CacheStats
	if err := c.get(ctx, "/cache_stats", ocrQuery(pdfName, p), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Suggest asks the service for synonym suggestions. It satisfies synonyms.Suggester.
func (c *Client) Suggest(ctx context.Context, query, pdfName string) (*models.Suggestion, error) {
	body := map[string]string{"query": query, "pdf_name": pdfName}
	var s models.Suggestion
	if err := c.post(ctx, "/synonyms", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Ask runs question answering over a document.
func (c *Client) Ask(ctx context.Context, req QARequest) (*models.Answer, error) {
	var a models.Answer
	if err := c.post(ctx, "/qa", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			return c.do(req, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrUnavailable)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("backend retry", zap.String("path", path), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("backend call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, req.URL.Path, resp.StatusCode, errorDetail(resp.Body))
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, errorDetail(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, req.URL.Path, err)
	}
	return nil
}

func errorDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var e struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		if e.Detail != "" {
			return e.Error + ": " + e.Detail
		}
		return e.Error
	}
	return strings.TrimSpace(string(b))
}
