package synonyms

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/pdfscope/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Accelerator Pedal Sensor ", "acceleratorpedalsensor"},
		{"APS", "aps"},
		{"油门 踏板\t", "油门踏板"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func contains(terms []string, want string) bool {
	for _, t := range terms {
		if t == want {
			return true
		}
	}
	return false
}

func TestExpandStatic_Symmetric(t *testing.T) {
	e := NewExpander(nil)
	a := e.ExpandStatic("油门踏板")
	b := e.ExpandStatic("APS")
	if a[0] != "油门踏板" || b[0] != "aps" {
		t.Fatalf("query must come first: %v / %v", a, b)
	}
	shared := false
	for _, t := range a {
		if contains(b, t) {
			shared = true
		}
	}
	if !shared {
		t.Errorf("expansions do not intersect: %v / %v", a, b)
	}
	if !contains(a, "aps") || !contains(b, "油门踏板") {
		t.Errorf("dictionary pair not symmetric: %v / %v", a, b)
	}
}

func TestExpandStatic_ValueMatch(t *testing.T) {
	e := NewExpander(nil)
	got := e.ExpandStatic("Head Lamp")
	for _, want := range []string{"headlamp", "大灯", "前照灯", "headlight"} {
		if !contains(got, want) {
			t.Errorf("expansion of value %q missing %q: %v", "headlamp", want, got)
		}
	}
}

func TestExpandStatic_Idempotent(t *testing.T) {
	e := NewExpander(nil)
	first := e.ExpandStatic("ecu")
	second := e.ExpandStatic("ecu")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expansion not deterministic: %v vs %v", first, second)
	}
	seen := map[string]bool{}
	for _, term := range first {
		if seen[term] {
			t.Errorf("duplicate term %q", term)
		}
		seen[term] = true
	}
}

func TestExpandStatic_UnknownAndEmpty(t *testing.T) {
	e := NewExpander(nil)
	if got := e.ExpandStatic("继电器"); !reflect.DeepEqual(got, []string{"继电器"}) {
		t.Errorf("unknown term expansion = %v", got)
	}
	if got := e.ExpandStatic("   "); got != nil {
		t.Errorf("empty expansion = %v", got)
	}
}

type stubSuggester struct {
	s   *models.Suggestion
	err error
}

func (s *stubSuggester) Suggest(context.Context, string, string) (*models.Suggestion, error) {
	return s.s, s.err
}

func TestExpand_Enhanced(t *testing.T) {
	sug := &stubSuggester{s: &models.Suggestion{
		Synonyms:      []string{"Relay Box"},
		Abbreviations: []string{"RB", "aps"},
	}}
	e := NewExpander(nil, WithSuggester(sug))
	got := e.Expand(context.Background(), "aps", Options{Enhance: true})
	if !contains(got, "relaybox") || !contains(got, "rb") {
		t.Errorf("suggested terms missing: %v", got)
	}
	count := 0
	for _, t := range got {
		if t == "aps" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("aps appears %d times", count)
	}

	plain := e.Expand(context.Background(), "aps", Options{})
	if contains(plain, "rb") {
		t.Error("suggester must not be used without Enhance")
	}
}

func TestExpand_SuggesterFailureDegrades(t *testing.T) {
	e := NewExpander(nil, WithSuggester(&stubSuggester{err: errors.New("unreachable")}))
	got := e.Expand(context.Background(), "喇叭", Options{Enhance: true})
	if !reflect.DeepEqual(got, e.ExpandStatic("喇叭")) {
		t.Errorf("failure should degrade to static expansion, got %v", got)
	}
}

func TestLoadDictionary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.yaml")
	content := `
entries:
  - term: "继电器"
    equivalent: ["relay", "RLY"]
  - term: " "
    equivalent: ["ignored"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	dict, err := LoadDictionary(path, DefaultDictionary())
	if err != nil {
		t.Fatal(err)
	}
	if len(dict) != len(DefaultDictionary())+1 {
		t.Fatalf("entries = %d", len(dict))
	}
	got := NewExpander(dict).ExpandStatic("rly")
	if !contains(got, "继电器") || !contains(got, "relay") {
		t.Errorf("custom entry not used: %v", got)
	}
}
