// Package suggest provides synonym suggesters: the remote service, a direct LLM call and a
// persistent TTL cache in front of either.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/models"
)

// MaxPerCategory caps each suggestion list.
const MaxPerCategory = 6

const systemPrompt = "You are a terminology assistant for automotive wiring diagrams. Given a query term and a " +
	"candidate vocabulary, pick only true synonyms, abbreviations and English translations from the " +
	"vocabulary. If nothing fits, you may add a few common industry names. Do not return broader or " +
	"narrower terms or brand and model names, at most 12 items in total. Reply with strict JSON: " +
	`{"synonyms":[],"abbreviations":[],"english":[]}`

// Completer sends a JSON-mode completion.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string, out any) error
}

// VocabularyFunc returns candidate terms for a document; it may return nil.
type VocabularyFunc func(ctx context.Context, docName string) []string

// LLMSuggester asks a chat model for synonyms, grounded on the document's OCR vocabulary.
type LLMSuggester struct {
	llm    Completer
	vocab  VocabularyFunc
	logger *zap.Logger
}

// NewLLMSuggester creates a suggester. vocab may be nil.
func NewLLMSuggester(llm Completer, vocab VocabularyFunc, logger *zap.Logger) *LLMSuggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMSuggester{llm: llm, vocab: vocab, logger: logger}
}

// Suggest returns cleaned suggestions for query. An empty query yields empty lists.
func (s *LLMSuggester) Suggest(ctx context.Context, query, docName string) (*models.Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return empty(), nil
	}
	var vocab []string
	if s.vocab != nil && docName != "" {
		vocab = s.vocab(ctx, docName)
	}
	if len(vocab) > MaxVocabulary {
		vocab = vocab[:MaxVocabulary]
	}
	if vocab == nil {
		vocab = []string{}
	}
	vocabJSON, err := json.Marshal(vocab)
	if err != nil {
		return nil, err
	}
	user := fmt.Sprintf("Query: %s\n\nCandidate vocabulary (optional, need not all be used):\n%s\n", query, vocabJSON)

	var raw struct {
		Synonyms      []any `json:"synonyms"`
		Abbreviations []any `json:"abbreviations"`
		English       []any `json:"english"`
	}
	if err := s.llm.CompleteJSON(ctx, systemPrompt, user, &raw); err != nil {
		return nil, fmt.Errorf("suggest %q: %w", query, err)
	}
	out := &models.Suggestion{
		Synonyms:      clean(raw.Synonyms),
		Abbreviations: clean(raw.Abbreviations),
		English:       clean(raw.English),
	}
	s.logger.Debug("llm suggestions", zap.String("query", query), zap.Int("vocabulary", len(vocab)), zap.Strings("terms", out.Terms()))
	return out, nil
}

func clean(items []any) []string {
	out := make([]string, 0, MaxPerCategory)
	for _, it := range items {
		if len(out) == MaxPerCategory {
			break
		}
		if it == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(it))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func empty() *models.Suggestion {
	return &models.Suggestion{Synonyms: []string{}, Abbreviations: []string{}, English: []string{}}
}
