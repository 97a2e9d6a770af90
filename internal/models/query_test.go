package models

import (
	"errors"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr error
	}{
		{"empty query", &SearchQuery{Query: ""}, ErrEmptyQuery},
		{"whitespace query", &SearchQuery{Query: "  \t"}, ErrEmptyQuery},
		{"valid query", &SearchQuery{Query: "油门踏板"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestQARequest_Validate(t *testing.T) {
	q := &QARequest{Question: "which pin is ground", Window: -1}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.TopK != 80 {
		t.Errorf("TopK = %d, want 80", q.TopK)
	}
	if q.Window != 0 {
		t.Errorf("Window = %d, want 0", q.Window)
	}
	if err := (&QARequest{}).Validate(); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("empty question error = %v", err)
	}
}

func TestPageIndex_Merge(t *testing.T) {
	idx := PageIndex{
		{Page: 1, W: 100, H: 100},
		{Page: 3, W: 100, H: 100},
	}
	merged := idx.Merge([]OCRPage{
		{Page: 2, W: 200, H: 200},
		{Page: 3, W: 300, H: 300},
	})
	if len(merged) != 3 {
		t.Fatalf("len = %d, want 3", len(merged))
	}
	for i, want := range []int{1, 2, 3} {
		if merged[i].Page != want {
			t.Errorf("merged[%d].Page = %d, want %d", i, merged[i].Page, want)
		}
	}
	if merged[2].W != 300 {
		t.Errorf("page 3 should be replaced by the later run, got W=%v", merged[2].W)
	}
	if idx[1].W != 100 {
		t.Error("Merge must not mutate the receiver")
	}
	if p, ok := merged.Page(2); !ok || p.W != 200 {
		t.Errorf("Page(2) = %+v, %v", p, ok)
	}
	if _, ok := merged.Page(9); ok {
		t.Error("Page(9) should be absent")
	}
}

func TestPageIndex_DetectionCount(t *testing.T) {
	idx := PageIndex{
		{Page: 1, Hits: []Detection{{Text: "a"}, {Text: "b"}}},
		{Page: 2},
		{Page: 4, Hits: []Detection{{Text: "c"}}},
	}
	if got := idx.DetectionCount(); got != 3 {
		t.Errorf("DetectionCount() = %d, want 3", got)
	}
	if got := PageIndex(nil).DetectionCount(); got != 0 {
		t.Errorf("empty DetectionCount() = %d", got)
	}
}

func TestDocument_Locator(t *testing.T) {
	d := &Document{File: "/pdfs/wiring.pdf"}
	if got := d.Locator(); got != "wiring.pdf" {
		t.Errorf("Locator() = %q", got)
	}
}

func TestHitKey(t *testing.T) {
	h := Hit{Source: SourceQA, Page: 4, Index: 2}
	if got := h.Key(); got != "qa-4-2" {
		t.Errorf("Key() = %q", got)
	}
}
