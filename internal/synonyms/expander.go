package synonyms

import (
	"context"

	"github.com/hyperjump/pdfscope/internal/models"
	"go.uber.org/zap"
)

// Suggester returns externally suggested terms for a query. Implementations may fail;
// the expander treats every failure as "no suggestions".
type Suggester interface {
	Suggest(ctx context.Context, query, docName string) (*models.Suggestion, error)
}

// Options control a single expansion.
type Options struct {
	// Enhance enables the suggester call.
	Enhance bool
	// DocName scopes suggestions to a document.
	DocName string
}

// Expander expands queries using a static dictionary and an optional suggester.
type Expander struct {
	dict      Dictionary
	suggester Suggester
	logger    *zap.Logger
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithSuggester sets the suggester used when Options.Enhance is true.
func WithSuggester(s Suggester) ExpanderOption {
	return func(e *Expander) { e.suggester = s }
}

// WithLogger sets a logger for degraded-path warnings.
func WithLogger(l *zap.Logger) ExpanderOption {
	return func(e *Expander) { e.logger = l }
}

// NewExpander creates an expander over dict. A nil dict uses DefaultDictionary.
func NewExpander(dict Dictionary, opts ...ExpanderOption) *Expander {
	if dict == nil {
		dict = DefaultDictionary()
	}
	e := &Expander{dict: dict, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpandStatic returns the normalized query followed by every dictionary equivalent, deduplicated.
// An empty query yields nil.
func (e *Expander) ExpandStatic(raw string) []string {
	n := Normalize(raw)
	if n == "" {
		return nil
	}
	set := newOrderedSet()
	set.add(n)
	for _, t := range e.dict.lookup(n) {
		set.add(t)
	}
	return set.items
}

// Expand returns the static expansion, augmented with suggester terms when enabled.
// Suggester errors are logged and swallowed.
func (e *Expander) Expand(ctx context.Context, raw string, opts Options) []string {
	terms := e.ExpandStatic(raw)
	if terms == nil || !opts.Enhance || e.suggester == nil {
		return terms
	}
	s, err := e.suggester.Suggest(ctx, raw, opts.DocName)
	if err != nil {
		e.logger.Warn("synonym suggestion failed, using static expansion",
			zap.String("query", raw), zap.Error(err))
		return terms
	}
	if s == nil {
		return terms
	}
	set := newOrderedSet()
	for _, t := range terms {
		set.add(t)
	}
	for _, t := range s.Terms() {
		set.add(Normalize(t))
	}
	return set.items
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
