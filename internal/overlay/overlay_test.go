package overlay

import (
	"testing"

	"github.com/hyperjump/pdfscope/internal/models"
)

func TestMapBox(t *testing.T) {
	box := models.Box{X: 100, Y: 200, W: 50, H: 20}
	tests := []struct {
		name          string
		ocr, rendered models.Size
		want          Rect
	}{
		{"identity", models.Size{W: 1000, H: 1400}, models.Size{W: 1000, H: 1400}, Rect{100, 200, 50, 20}},
		{"half", models.Size{W: 2000, H: 2800}, models.Size{W: 1000, H: 1400}, Rect{50, 100, 25, 10}},
		{"anisotropic", models.Size{W: 1000, H: 1000}, models.Size{W: 2000, H: 500}, Rect{200, 100, 100, 10}},
		{"unknown rendered", models.Size{W: 1000, H: 1400}, models.Size{}, Rect{100, 200, 50, 20}},
		{"unknown ocr", models.Size{}, models.Size{W: 500, H: 700}, Rect{100, 200, 50, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapBox(box, tt.ocr, tt.rendered); got != tt.want {
				t.Errorf("MapBox = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProject(t *testing.T) {
	search := []models.Hit{
		{Page: 2, Index: 0, Score: 4, Source: models.SourceOCR, Box: models.Box{X: 20, Y: 20, W: 20, H: 20}},
		{Page: 3, Index: 1, Score: 2, Source: models.SourceOCR},
	}
	qa := []models.Hit{
		{Page: 2, Index: 0, Score: 1.8, Source: models.SourceQA, Box: models.Box{X: 40, Y: 40, W: 10, H: 10}},
	}
	in := Input{
		View:      View{Page: 2, Ready: true, Rendered: models.Size{W: 500, H: 700}},
		OCRSizes:  map[int]models.Size{2: {W: 1000, H: 1400}},
		Search:    search,
		QA:        qa,
		ActiveKey: "ocr-2-0",
	}
	got := Project(in)
	if len(got) != 2 {
		t.Fatalf("overlays = %d, want 2", len(got))
	}
	if got[0].Key != "ocr-2-0" || !got[0].Active {
		t.Errorf("first overlay = %+v", got[0])
	}
	if got[0].Rect != (Rect{10, 10, 10, 10}) {
		t.Errorf("first rect = %+v", got[0].Rect)
	}
	if got[1].Source != models.SourceQA || got[1].Active {
		t.Errorf("second overlay = %+v", got[1])
	}
}

func TestProject_NotEligible(t *testing.T) {
	hits := []models.Hit{{Page: 1, Source: models.SourceOCR}}
	if got := Project(Input{View: View{Page: 1, Ready: false, Rendered: models.Size{W: 1, H: 1}}, Search: hits}); got != nil {
		t.Errorf("not ready: %+v", got)
	}
	if got := Project(Input{View: View{Page: 1, Ready: true}, Search: hits}); got != nil {
		t.Errorf("no rendered size: %+v", got)
	}
}

func TestProject_MissingOCRSizeFallsBack(t *testing.T) {
	qa := []models.Hit{{Page: 1, Source: models.SourceQA, Box: models.Box{X: 7, Y: 8, W: 9, H: 10}}}
	got := Project(Input{View: View{Page: 1, Ready: true, Rendered: models.Size{W: 10, H: 10}}, QA: qa})
	if len(got) != 1 || got[0].Rect != (Rect{7, 8, 9, 10}) {
		t.Errorf("overlays = %+v", got)
	}
}
