// Package viewer orchestrates one document session: it opens documents through the view
// synchronizer, restores and runs OCR, searches, answers questions and projects overlays.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/backend"
	"github.com/hyperjump/pdfscope/internal/fileserver"
	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/ranking"
	"github.com/hyperjump/pdfscope/internal/storage"
	"github.com/hyperjump/pdfscope/internal/synonyms"
	"github.com/hyperjump/pdfscope/internal/viewsync"
)

// DefaultFocusDelay is how long after an evidence jump the evidence overlay gets focus.
const DefaultFocusDelay = 250 * time.Millisecond

// ErrStale is returned when a result arrives after the session moved to another document.
var ErrStale = errors.New("result discarded: document changed")

// View is the view synchronizer surface the session drives.
type View interface {
	Open(ctx context.Context, epoch uint64, docID, source string) (viewsync.State, error)
	Navigate(ctx context.Context, page int) (viewsync.State, error)
	Jump(ctx context.Context, epoch uint64, page int) (viewsync.State, error)
	SetZoom(ctx context.Context, zoom float64) (viewsync.State, error)
	Reload(ctx context.Context) (viewsync.State, error)
	Close(ctx context.Context) (viewsync.State, error)
	Do(ctx context.Context, ev viewsync.Event) (viewsync.State, error)
	Snapshot() viewsync.State
}

// Resolver maps a route segment to a library document.
type Resolver interface {
	Resolve(segment string) (models.Document, error)
}

// OCRService fetches and runs OCR for a document.
type OCRService interface {
	OCRCache(ctx context.Context, pdfName string, p models.OCRParams) (models.PageIndex, error)
	RunOCR(ctx context.Context, req backend.OCRRequest) (models.PageIndex, error)
}

// PageStore persists OCR pages locally.
type PageStore interface {
	SavePages(ctx context.Context, pdfName string, p models.OCRParams, pages models.PageIndex) error
	LoadPages(ctx context.Context, pdfName string, p models.OCRParams) (models.PageIndex, error)
}

// Expander turns a query into normalized search terms.
type Expander interface {
	Expand(ctx context.Context, raw string, opts synonyms.Options) []string
}

// Config holds per-session settings.
type Config struct {
	OCR models.OCRParams
	// TopK and Window are the QA retrieval defaults.
	TopK   int
	Window int
	// FocusDelay defers evidence focus after a jump.
	FocusDelay time.Duration
	// PublicURL prefixes proxy sources when handing document URLs to the OCR service.
	PublicURL string
}

// Deps are the collaborators of a session. Store, OCR and Answerer may be nil.
type Deps struct {
	View     View
	Docs     Resolver
	Expander Expander
	OCR      OCRService
	Store    PageStore
	Answerer Answerer
}

// Session is one viewer over one document at a time. Safe for concurrent use.
type Session struct {
	cfg    Config
	deps   Deps
	clock  viewsync.Clock
	logger *zap.Logger

	// openMu keeps the session epoch and the epoch of the open view in step.
	openMu   sync.Mutex
	mu       sync.Mutex
	epoch    uint64
	doc      *models.Document
	missing  string
	index    models.PageIndex
	query    string
	terms    []string
	hits     []models.Hit
	active   int
	answer   *models.Answer
	qaHits   []models.Hit
	focus    string
	focusTmr viewsync.Timer
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock replaces the clock used for deferred evidence focus.
func WithClock(c viewsync.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// New creates a session.
func New(cfg Config, deps Deps, opts ...Option) *Session {
	if cfg.FocusDelay <= 0 {
		cfg.FocusDelay = DefaultFocusDelay
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 80
	}
	if deps.Expander == nil {
		deps.Expander = synonyms.NewExpander(nil)
	}
	s := &Session{
		cfg:    cfg,
		deps:   deps,
		clock:  wallClock{},
		logger: zap.NewNop(),
		active: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) viewsync.Timer {
	return time.AfterFunc(d, f)
}

// resetLocked clears everything derived from the previous document and starts a new epoch.
func (s *Session) resetLocked() uint64 {
	s.epoch++
	s.index = nil
	s.query = ""
	s.terms = nil
	s.hits = nil
	s.active = -1
	s.answer = nil
	s.qaHits = nil
	s.focus = ""
	if s.focusTmr != nil {
		s.focusTmr.Stop()
		s.focusTmr = nil
	}
	return s.epoch
}

// current returns the open document and the epoch it belongs to.
func (s *Session) current() (models.Document, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return models.Document{}, 0, models.ErrNoDocument
	}
	return *s.doc, s.epoch, nil
}

// Open switches the session to the document named by segment and restores its OCR index.
// An unknown segment leaves the session in a not-found state.
func (s *Session) Open(ctx context.Context, segment string) (*Snapshot, error) {
	doc, err := s.deps.Docs.Resolve(segment)
	s.openMu.Lock()
	s.mu.Lock()
	epoch := s.resetLocked()
	if err != nil {
		s.doc = nil
		s.missing = segment
		s.mu.Unlock()
		_, cerr := s.deps.View.Close(ctx)
		s.openMu.Unlock()
		if cerr != nil {
			s.logger.Warn("close view failed", zap.Error(cerr))
		}
		return nil, fmt.Errorf("open %q: %w", segment, err)
	}
	s.doc = &doc
	s.missing = ""
	s.mu.Unlock()

	locator := doc.Locator()
	_, err = s.deps.View.Open(ctx, epoch, locator, fileserver.Source(locator))
	s.openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", segment, err)
	}
	s.logger.Debug("document opened", zap.String("doc", locator), zap.Uint64("epoch", epoch))

	idx := s.restore(ctx, locator)
	s.mu.Lock()
	if s.epoch == epoch {
		s.index = idx
	}
	s.mu.Unlock()
	return s.Snapshot(), nil
}

// restore loads the persisted OCR index, local store first. Failures degrade to an empty index.
func (s *Session) restore(ctx context.Context, locator string) models.PageIndex {
	if s.deps.Store != nil {
		idx, err := s.deps.Store.LoadPages(ctx, locator, s.cfg.OCR)
		switch {
		case err == nil && len(idx) > 0:
			return idx
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			s.logger.Warn("local OCR cache read failed", zap.String("doc", locator), zap.Error(err))
		}
	}
	if s.deps.OCR == nil {
		return nil
	}
	idx, err := s.deps.OCR.OCRCache(ctx, locator, s.cfg.OCR)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			s.logger.Warn("OCR cache lookup failed", zap.String("doc", locator), zap.Error(err))
		}
		return nil
	}
	s.save(ctx, locator, idx)
	return idx
}

func (s *Session) save(ctx context.Context, locator string, idx models.PageIndex) {
	if s.deps.Store == nil || len(idx) == 0 {
		return
	}
	if err := s.deps.Store.SavePages(ctx, locator, s.cfg.OCR, idx); err != nil {
		s.logger.Warn("local OCR cache write failed", zap.String("doc", locator), zap.Error(err))
	}
}

// RunOCR runs OCR on the open document and merges the result into the index. pages limits the
// run; empty means every page. On failure the index is left as it was.
func (s *Session) RunOCR(ctx context.Context, force bool, pages []int) (*Snapshot, error) {
	if s.deps.OCR == nil {
		return nil, fmt.Errorf("ocr: %w", backend.ErrUnavailable)
	}
	doc, epoch, err := s.current()
	if err != nil {
		return nil, err
	}
	locator := doc.Locator()
	got, err := s.deps.OCR.RunOCR(ctx, backend.OCRRequest{
		PDFURL:    s.cfg.PublicURL + fileserver.Source(locator),
		PDFName:   locator,
		Force:     force,
		OCRParams: s.cfg.OCR,
		Pages:     pages,
	})
	if err != nil {
		return nil, fmt.Errorf("ocr %s: %w", locator, err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("stale OCR result dropped", zap.String("doc", locator))
		return nil, ErrStale
	}
	s.index = s.index.Merge(got)
	merged := s.index
	s.mu.Unlock()

	s.save(ctx, locator, merged)
	s.logger.Info("OCR merged", zap.String("doc", locator), zap.Int("pages", len(got)), zap.Int("indexed", len(merged)), zap.Int("detections", merged.DetectionCount()))
	return s.Snapshot(), nil
}

// Search expands query, ranks every matching detection and jumps to the best hit.
func (s *Session) Search(ctx context.Context, q models.SearchQuery) (*Snapshot, error) {
	if err := q.Validate(); err != nil {
		s.mu.Lock()
		s.query, s.terms, s.hits, s.active = "", nil, nil, -1
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return nil, models.ErrNoDocument
	}
	if len(s.index) == 0 {
		s.mu.Unlock()
		return nil, models.ErrOCRRequired
	}
	locator, epoch, idx := s.doc.Locator(), s.epoch, s.index
	s.mu.Unlock()

	terms := s.deps.Expander.Expand(ctx, q.Query, synonyms.Options{Enhance: q.Enhance, DocName: locator})
	hits := ranking.ScoreIndex(terms, idx)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil, ErrStale
	}
	s.query, s.terms, s.hits, s.active = q.Query, terms, hits, -1
	if len(hits) > 0 {
		s.active = 0
	}
	s.mu.Unlock()
	s.logger.Debug("search", zap.String("query", q.Query), zap.Strings("terms", terms), zap.Int("hits", len(hits)))

	if top, ok := ranking.Top(hits); ok {
		if err := s.jump(ctx, epoch, top.Page); err != nil {
			return nil, err
		}
	}
	return s.Snapshot(), nil
}

// Next selects the following hit, wrapping at the end.
func (s *Session) Next(ctx context.Context) (*Snapshot, error) {
	return s.step(ctx, 1)
}

// Prev selects the preceding hit, wrapping at the start.
func (s *Session) Prev(ctx context.Context) (*Snapshot, error) {
	return s.step(ctx, -1)
}

func (s *Session) step(ctx context.Context, delta int) (*Snapshot, error) {
	s.mu.Lock()
	n := len(s.hits)
	if n == 0 {
		s.mu.Unlock()
		return s.Snapshot(), nil
	}
	s.active = ((max(s.active, 0)+delta)%n + n) % n
	page, epoch := s.hits[s.active].Page, s.epoch
	s.mu.Unlock()
	if err := s.jump(ctx, epoch, page); err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Ask answers a question about the open document. A failed call keeps the previous answer.
func (s *Session) Ask(ctx context.Context, req models.QARequest) (*Snapshot, error) {
	if req.TopK <= 0 {
		req.TopK = s.cfg.TopK
	}
	if req.Window == 0 {
		req.Window = s.cfg.Window
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.deps.Answerer == nil {
		return nil, fmt.Errorf("qa: %w", backend.ErrUnavailable)
	}
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return nil, models.ErrNoDocument
	}
	locator, epoch, idx := s.doc.Locator(), s.epoch, s.index
	s.mu.Unlock()

	ans, err := s.deps.Answerer.Ask(ctx, locator, idx, req)
	if err != nil {
		return nil, fmt.Errorf("qa %s: %w", locator, err)
	}
	hits := ranking.FromAnswer(ans)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil, ErrStale
	}
	s.answer, s.qaHits, s.focus = ans, hits, ""
	s.mu.Unlock()

	if len(hits) > 0 {
		if err := s.jump(ctx, epoch, hits[0].Page); err != nil {
			return nil, err
		}
	}
	return s.Snapshot(), nil
}

// LocateEvidence jumps to evidence i and focuses its overlay after the focus delay, unless
// the session moved on in the meantime.
func (s *Session) LocateEvidence(ctx context.Context, i int) (*Snapshot, error) {
	s.mu.Lock()
	if i < 0 || i >= len(s.qaHits) {
		s.mu.Unlock()
		return nil, fmt.Errorf("evidence %d: %w", i, models.ErrNotFound)
	}
	hit, epoch := s.qaHits[i], s.epoch
	s.mu.Unlock()

	if err := s.jump(ctx, epoch, hit.Page); err != nil {
		return nil, err
	}

	key := hit.Key()
	s.mu.Lock()
	if s.focusTmr != nil {
		s.focusTmr.Stop()
	}
	s.focusTmr = s.clock.AfterFunc(s.cfg.FocusDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch == epoch {
			s.focus = key
		}
	})
	s.mu.Unlock()
	return s.Snapshot(), nil
}

// jump moves the view to page of the document opened at epoch. The view drops the jump when
// another document was opened in the meantime.
func (s *Session) jump(ctx context.Context, epoch uint64, page int) error {
	st, err := s.deps.View.Jump(ctx, epoch, page)
	if err != nil {
		return err
	}
	if st.Epoch != epoch {
		s.logger.Debug("stale jump dropped", zap.Int("page", page), zap.Uint64("epoch", epoch))
		return ErrStale
	}
	return nil
}

// SetZoom changes the render scale.
func (s *Session) SetZoom(ctx context.Context, zoom float64) (*Snapshot, error) {
	if _, err := s.deps.View.SetZoom(ctx, zoom); err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Navigate requests a page directly.
func (s *Session) Navigate(ctx context.Context, page int) (*Snapshot, error) {
	if _, err := s.deps.View.Navigate(ctx, page); err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Report applies a renderer outcome reported by an external renderer.
func (s *Session) Report(ctx context.Context, ev viewsync.Event) (*Snapshot, error) {
	if _, err := s.deps.View.Do(ctx, ev); err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Reload forces a fresh renderer for the open document.
func (s *Session) Reload(ctx context.Context) (*Snapshot, error) {
	if _, _, err := s.current(); err != nil {
		return nil, err
	}
	if _, err := s.deps.View.Reload(ctx); err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// Close ends the document session.
func (s *Session) Close(ctx context.Context) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	s.mu.Lock()
	s.resetLocked()
	s.doc = nil
	s.missing = ""
	s.mu.Unlock()
	_, err := s.deps.View.Close(ctx)
	return err
}

// Index returns the OCR page index of the open document.
func (s *Session) Index() models.PageIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}
