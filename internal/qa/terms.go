package qa

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	wordRun      = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]+|[a-z0-9]+`)
	pinPattern   = regexp.MustCompile(`[A-Z]{1,3}-?\d{1,3}`)
	connPattern  = regexp.MustCompile(`C\d+(?:-\d+)?`)
	plugPattern  = regexp.MustCompile(`[JPX]\d{1,3}(?:-\d+)?`)
	latinRun     = regexp.MustCompile(`[A-Za-z]{2,}`)
	numberRun    = regexp.MustCompile(`\d{2,}`)
	commonTokens = []string{"ecu", "aps", "can", "针", "脚", "端子", "连接", "接地", "供电", "信号"}
)

// Terms extracts retrieval terms from a question: words of two or more characters, pin and
// connector identifiers such as A12, B-15, C123-1 or J6, and common wiring vocabulary.
func Terms(question string) []string {
	low := strings.ToLower(question)
	up := strings.ToUpper(question)
	set := make(map[string]struct{})
	for _, p := range wordRun.FindAllString(low, -1) {
		if utf8.RuneCountInString(p) >= 2 {
			set[p] = struct{}{}
		}
	}
	for _, re := range []*regexp.Regexp{pinPattern, connPattern, plugPattern} {
		for _, m := range re.FindAllString(up, -1) {
			set[m] = struct{}{}
		}
	}
	for _, c := range commonTokens {
		if strings.Contains(low, c) || strings.Contains(up, c) {
			set[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// looseTerms widens terms with Latin words and digit runs from the question.
func looseTerms(question string, terms []string) []string {
	out := append([]string(nil), terms...)
	out = append(out, latinRun.FindAllString(question, -1)...)
	out = append(out, numberRun.FindAllString(question, -1)...)
	return out
}
