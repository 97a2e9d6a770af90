package qa

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/ranking"
	"github.com/hyperjump/pdfscope/internal/synonyms"
)

const (
	minRowItems       = 4
	minRowTokens      = 4
	tablePageLimit    = 8
	tableLinesPerPage = 30
	tableEvidenceRows = 10
	maxEvidence       = 12
	maxLinesPerPage   = 50
	maxContextRunes   = 6000
	looseTopK         = 200
	looseWindow       = 3
)

var rowToken = regexp.MustCompile(`[0-9A-Za-z\-]+`)

// Strategy names the retrieval step that produced a context.
type Strategy string

const (
	StrategyTables Strategy = "tables"
	StrategyLines  Strategy = "lines"
	StrategyLoose  Strategy = "loose"
	StrategyNone   Strategy = "none"
)

// Retrieval is the context handed to the model and the evidence backing it.
type Retrieval struct {
	Context  string
	Evidence []models.Evidence
	Strategy Strategy
	Terms    []string
}

type entry struct {
	page  int
	index int
	text  string
	box   models.Box
}

type tableRow struct {
	page  int
	text  string
	items []entry
}

type scoredEntry struct {
	score float64
	e     entry
}

// Retrieve builds a context for question: matching table rows first, then scored lines with
// neighbouring context, then a loose match.
func Retrieve(idx models.PageIndex, question string, topK, window int) Retrieval {
	terms := Terms(question)
	r := Retrieval{Strategy: StrategyNone, Terms: terms}

	if rows := harvestTableRows(idx, terms); len(rows) > 0 {
		r.Context, r.Evidence = contextFromRows(rows)
		r.Strategy = StrategyTables
	}
	if strings.TrimSpace(r.Context) == "" {
		scored := scoreEntries(idx, terms)
		r.Context, r.Evidence = contextFromEntries(idx, scored, topK, window)
		r.Strategy = StrategyLines
	}
	if strings.TrimSpace(r.Context) == "" {
		bag := normalizeAll(looseTerms(question, terms))
		var loose []scoredEntry
		for _, e := range collectEntries(idx) {
			if containsAny(synonyms.Normalize(e.text), bag) {
				loose = append(loose, scoredEntry{score: 1, e: e})
			}
		}
		r.Context, r.Evidence = contextFromEntries(idx, loose, looseTopK, looseWindow)
		r.Strategy = StrategyLoose
	}
	if strings.TrimSpace(r.Context) == "" {
		r.Context, r.Evidence, r.Strategy = "", nil, StrategyNone
	}
	return r
}

func collectEntries(idx models.PageIndex) []entry {
	var out []entry
	for _, p := range idx {
		for i, d := range p.Hits {
			if d.Text == "" {
				continue
			}
			out = append(out, entry{page: p.Page, index: i, text: d.Text, box: d.Box})
		}
	}
	return out
}

func normalizeAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := synonyms.Normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// tableRows groups a page's detections into coarse rows and keeps the table-like ones.
func tableRows(p *models.OCRPage) [][]entry {
	bins := make(map[int][]entry)
	for i, d := range p.Hits {
		k := ranking.RowBucket(d.Box.Y)
		bins[k] = append(bins[k], entry{page: p.Page, index: i, text: d.Text, box: d.Box})
	}
	keys := make([]int, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var rows [][]entry
	for _, k := range keys {
		row := bins[k]
		sort.SliceStable(row, func(i, j int) bool { return row[i].box.X < row[j].box.X })
		var sb strings.Builder
		for _, e := range row {
			sb.WriteString(e.text)
		}
		if len(row) >= minRowItems && len(rowToken.FindAllString(sb.String(), -1)) >= minRowTokens {
			rows = append(rows, row)
		}
	}
	return rows
}

func harvestTableRows(idx models.PageIndex, terms []string) []tableRow {
	norm := normalizeAll(terms)
	if len(norm) == 0 {
		return nil
	}
	var out []tableRow
	for i := range idx {
		for _, row := range tableRows(&idx[i]) {
			texts := make([]string, len(row))
			for k, e := range row {
				texts[k] = e.text
			}
			line := strings.Join(texts, " | ")
			if containsAny(synonyms.Normalize(line), norm) {
				out = append(out, tableRow{page: idx[i].Page, text: line, items: row})
			}
		}
	}
	return out
}

func contextFromRows(rows []tableRow) (string, []models.Evidence) {
	byPage := make(map[int][]tableRow)
	var pages []int
	for _, r := range rows {
		if _, ok := byPage[r.page]; !ok {
			pages = append(pages, r.page)
		}
		byPage[r.page] = append(byPage[r.page], r)
	}
	sort.Ints(pages)
	if len(pages) > tablePageLimit {
		pages = pages[:tablePageLimit]
	}
	var chunks []string
	var evidence []models.Evidence
	for _, pg := range pages {
		lines := byPage[pg]
		if len(lines) > tableLinesPerPage {
			lines = lines[:tableLinesPerPage]
		}
		texts := make([]string, len(lines))
		for i, l := range lines {
			texts[i] = l.text
		}
		chunks = append(chunks, fmt.Sprintf("[Page %d · table]\n%s", pg, strings.Join(texts, "\n")))
		for i, l := range lines {
			if i == tableEvidenceRows {
				break
			}
			if len(l.items) == 0 {
				continue
			}
			evidence = append(evidence, toEvidence(l.items[0]))
		}
	}
	if len(evidence) > maxEvidence {
		evidence = evidence[:maxEvidence]
	}
	return strings.Join(chunks, "\n\n"), evidence
}

// scoreEntries scores lines containing terms: one point per matching term plus the title and
// table bonuses of the relevance scorer. Ties keep document order.
func scoreEntries(idx models.PageIndex, terms []string) []scoredEntry {
	norm := normalizeAll(terms)
	features := make(map[int]*ranking.PageFeatures, len(idx))
	for i := range idx {
		features[idx[i].Page] = ranking.AnalyzePage(&idx[i])
	}
	var out []scoredEntry
	for _, e := range collectEntries(idx) {
		t := synonyms.Normalize(e.text)
		if t == "" {
			continue
		}
		hits := 0
		for _, kw := range norm {
			if strings.Contains(t, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits)
		if f := features[e.page]; f != nil {
			if f.IsTitle(e.box.H) {
				score += ranking.TitleWeight
			}
			if f.IsTableLike(e.box.Y) {
				score += ranking.TableWeight
			}
		}
		out = append(out, scoredEntry{score: score, e: e})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// contextFromEntries expands the top entries by window neighbours on their page.
func contextFromEntries(idx models.PageIndex, scored []scoredEntry, topK, window int) (string, []models.Evidence) {
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	type key struct{ page, index int }
	seen := make(map[key]bool)
	byPage := make(map[int][]entry)
	var pages []int
	for _, s := range scored {
		k := key{s.e.page, s.e.index}
		if seen[k] {
			continue
		}
		seen[k] = true
		if _, ok := byPage[s.e.page]; !ok {
			pages = append(pages, s.e.page)
		}
		byPage[s.e.page] = append(byPage[s.e.page], s.e)
	}
	sort.Ints(pages)

	var chunks []string
	var evidence []models.Evidence
	for _, pg := range pages {
		page, ok := idx.Page(pg)
		if !ok {
			continue
		}
		wanted := make(map[int]bool)
		for _, e := range byPage[pg] {
			lo, hi := max(0, e.index-window), min(len(page.Hits)-1, e.index+window)
			for i := lo; i <= hi; i++ {
				wanted[i] = true
			}
		}
		var texts []string
		for i := range page.Hits {
			if !wanted[i] || strings.TrimSpace(page.Hits[i].Text) == "" {
				continue
			}
			texts = append(texts, page.Hits[i].Text)
		}
		if len(texts) == 0 {
			continue
		}
		if len(texts) > maxLinesPerPage {
			texts = texts[:maxLinesPerPage]
		}
		chunks = append(chunks, fmt.Sprintf("[Page %d]\n%s", pg, strings.Join(texts, "\n")))
		for _, e := range byPage[pg] {
			evidence = append(evidence, toEvidence(e))
		}
	}
	ctx := strings.Join(chunks, "\n\n")
	if utf8.RuneCountInString(ctx) > maxContextRunes {
		ctx = string([]rune(ctx)[:maxContextRunes]) + "\n...[truncated]"
	}
	if len(evidence) > maxEvidence {
		evidence = evidence[:maxEvidence]
	}
	return ctx, evidence
}

func toEvidence(e entry) models.Evidence {
	box := e.box
	return models.Evidence{Page: e.page, Text: e.text, Box: &box}
}
