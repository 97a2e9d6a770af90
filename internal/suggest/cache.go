package suggest

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/storage"
	"github.com/hyperjump/pdfscope/internal/synonyms"
)

// DefaultTTL is how long a cached suggestion stays fresh.
const DefaultTTL = 7 * 24 * time.Hour

// GlobalScope keys suggestions made without a document.
const GlobalScope = "global"

// Store persists suggestions.
type Store interface {
	GetSuggestion(ctx context.Context, scope, query string) (*models.Suggestion, time.Time, error)
	PutSuggestion(ctx context.Context, scope, query string, s *models.Suggestion, at time.Time) error
}

// Cached serves fresh stored suggestions and fills the store from next on a miss.
type Cached struct {
	next   synonyms.Suggester
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// CacheOption configures Cached.
type CacheOption func(*Cached)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cached) { c.now = now }
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cached) { c.logger = l }
}

// NewCached wraps next with a store. A non-positive ttl uses DefaultTTL.
func NewCached(next synonyms.Suggester, store Store, ttl time.Duration, opts ...CacheOption) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cached{next: next, store: store, ttl: ttl, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Suggest returns the cached suggestion for the normalized query when fresh.
func (c *Cached) Suggest(ctx context.Context, query, docName string) (*models.Suggestion, error) {
	key := synonyms.Normalize(query)
	if key == "" {
		return empty(), nil
	}
	scope := strings.TrimSpace(docName)
	if scope == "" {
		scope = GlobalScope
	}
	sug, at, err := c.store.GetSuggestion(ctx, scope, key)
	switch {
	case err == nil && c.now().Sub(at) < c.ttl:
		c.logger.Debug("suggestion cache hit", zap.String("scope", scope), zap.String("query", key))
		return sug, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		c.logger.Warn("suggestion cache read failed", zap.Error(err))
	}

	sug, err = c.next.Suggest(ctx, query, docName)
	if err != nil {
		return nil, err
	}
	if err := c.store.PutSuggestion(ctx, scope, key, sug, c.now()); err != nil {
		c.logger.Warn("suggestion cache write failed", zap.Error(err))
	}
	return sug, nil
}
