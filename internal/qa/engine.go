// Package qa answers questions about a document locally: it retrieves table rows or scored
// lines from the OCR page index and asks a chat model to answer from that context only.
package qa

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/models"
)

// NoContextAnswer is returned when nothing in the index matches the question.
const NoContextAnswer = "No relevant content was found in the OCR results."

const (
	noContextConfidence = 0.1
	defaultConfidence   = 0.5
)

const systemPrompt = "You are an automotive wiring diagram assistant. Answer strictly from the supplied " +
	"context, do not invent facts. When the question asks about pins or terminals, list the pin numbers " +
	"explicitly. Reply with strict JSON: " +
	`{"answer":"...","pins":["A12"],"evidence":[{"page":1,"text":"..."}],"pages":[1],"confidence":0.8}`

var pinSplit = regexp.MustCompile(`[,\s;/，；]+`)

// Completer sends a JSON-mode completion.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string, out any) error
}

// Engine answers questions against a page index.
type Engine struct {
	llm    Completer
	logger *zap.Logger
}

// NewEngine creates an engine backed by llm.
func NewEngine(llm Completer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{llm: llm, logger: logger}
}

type rawAnswer struct {
	Answer     any   `json:"answer"`
	Pins       any   `json:"pins"`
	Evidence   []any `json:"evidence"`
	Pages      []any `json:"pages"`
	Confidence any   `json:"confidence"`
}

// Answer retrieves context for req from idx and asks the model. The model is not called when
// no context matches.
func (e *Engine) Answer(ctx context.Context, idx models.PageIndex, req models.QARequest) (*models.Answer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r := Retrieve(idx, req.Question, req.TopK, req.Window)
	e.logger.Debug("qa retrieval",
		zap.String("strategy", string(r.Strategy)),
		zap.Strings("terms", r.Terms),
		zap.Int("evidence", len(r.Evidence)))

	if r.Strategy == StrategyNone {
		conf := noContextConfidence
		return &models.Answer{
			Answer:     NoContextAnswer,
			Confidence: &conf,
			Pins:       []string{},
			Pages:      []int{},
			Evidence:   []models.Evidence{},
		}, nil
	}

	user := fmt.Sprintf("Question: %s\n\nContext:\n%s\n", req.Question, r.Context)
	var raw rawAnswer
	if err := e.llm.CompleteJSON(ctx, systemPrompt, user, &raw); err != nil {
		return nil, fmt.Errorf("qa: %w", err)
	}
	return normalize(raw, r.Evidence), nil
}

// normalize coerces a loosely typed model reply into an answer, falling back to the
// retrieved evidence when the model cites none.
func normalize(raw rawAnswer, fallback []models.Evidence) *models.Answer {
	out := &models.Answer{
		Answer: strings.TrimSpace(stringOf(raw.Answer)),
		Pins:   pins(raw.Pins),
	}

	for _, item := range raw.Evidence {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		page, ok := intOf(m["page"])
		text := strings.TrimSpace(stringOf(m["text"]))
		if !ok || page < 1 || text == "" {
			continue
		}
		out.Evidence = append(out.Evidence, models.Evidence{Page: page, Text: text})
	}
	if len(out.Evidence) == 0 {
		out.Evidence = append([]models.Evidence{}, fallback...)
	}
	if len(out.Evidence) > maxEvidence {
		out.Evidence = out.Evidence[:maxEvidence]
	}

	seen := make(map[int]bool)
	for _, p := range raw.Pages {
		if n, ok := intOf(p); ok && n >= 1 && !seen[n] {
			seen[n] = true
			out.Pages = append(out.Pages, n)
		}
	}
	if len(out.Pages) == 0 {
		for _, ev := range out.Evidence {
			if !seen[ev.Page] {
				seen[ev.Page] = true
				out.Pages = append(out.Pages, ev.Page)
			}
		}
	}
	if out.Pages == nil {
		out.Pages = []int{}
	}

	conf := defaultConfidence
	if c, ok := floatOf(raw.Confidence); ok {
		conf = min(1, max(0, c))
	}
	out.Confidence = &conf
	return out
}

func pins(v any) []string {
	out := []string{}
	switch p := v.(type) {
	case string:
		for _, s := range pinSplit.Split(p, -1) {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range p {
			if s := strings.TrimSpace(stringOf(item)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func intOf(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func floatOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
