package render

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/testpdf"
	"github.com/hyperjump/pdfscope/internal/viewsync"
)

func sampleDoc() []byte {
	return testpdf.Build(
		testpdf.Letter,
		testpdf.Page{W: 400, H: 300},
		testpdf.Page{W: 200, H: 100, Rotate: 90},
	)
}

func TestPageSize(t *testing.T) {
	data := sampleDoc()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		page int
		want models.Size
	}{
		{1, models.Size{W: 612, H: 792}},
		{2, models.Size{W: 400, H: 300}},
		{3, models.Size{W: 100, H: 200}},
	}
	for _, tt := range tests {
		got, err := PageSize(reader, tt.page)
		if err != nil {
			t.Fatalf("PageSize(%d): %v", tt.page, err)
		}
		if got != tt.want {
			t.Errorf("PageSize(%d) = %+v, want %+v", tt.page, got, tt.want)
		}
	}
	if _, err := PageSize(reader, 4); !errors.Is(err, ErrPageRange) {
		t.Errorf("PageSize(4) err = %v, want ErrPageRange", err)
	}
}

func TestCSSSize(t *testing.T) {
	got := CSSSize(models.Size{W: 72, H: 144}, 2)
	if got != (models.Size{W: 192, H: 384}) {
		t.Errorf("CSSSize = %+v", got)
	}
}

func collect(t *testing.T, ch chan viewsync.Event) viewsync.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no callback")
		return nil
	}
}

func TestPDFRenderer_OpenAndRender(t *testing.T) {
	data := sampleDoc()
	load := func(ctx context.Context, source string) ([]byte, error) { return data, nil }
	r := NewFactory(load, nil)()
	defer r.Close()

	ch := make(chan viewsync.Event, 4)
	sink := func(ev viewsync.Event) { ch <- ev }

	r.Render(1, 1, 1, 1, sink)
	if ev, ok := collect(t, ch).(viewsync.RenderFailed); !ok || !errors.Is(ev.Err, ErrNotLoaded) {
		t.Fatalf("render before load = %#v", ev)
	}

	r.Open(7, "a.pdf", sink)
	loaded, ok := collect(t, ch).(viewsync.DocumentLoaded)
	if !ok || loaded.Gen != 7 || loaded.NumPages != 3 {
		t.Fatalf("Open callback = %#v", loaded)
	}

	r.Render(7, 4, 2, 1.5, sink)
	done, ok := collect(t, ch).(viewsync.RenderCompleted)
	if !ok || done.Seq != 4 || done.Page != 2 || done.Size != (models.Size{W: 800, H: 600}) {
		t.Errorf("Render callback = %#v", done)
	}

	r.Render(7, 5, 9, 1, sink)
	if _, ok := collect(t, ch).(viewsync.RenderFailed); !ok {
		t.Error("render of a missing page did not fail")
	}
}

func TestPDFRenderer_LoadFailure(t *testing.T) {
	r := NewFactory(func(context.Context, string) ([]byte, error) { return []byte("not a pdf"), nil }, nil)()
	defer r.Close()
	ch := make(chan viewsync.Event, 1)
	r.Open(1, "bad.pdf", func(ev viewsync.Event) { ch <- ev })
	if _, ok := collect(t, ch).(viewsync.DocumentLoadFailed); !ok {
		t.Error("expected DocumentLoadFailed")
	}
}

func TestPDFRenderer_ClosedDropsCallbacks(t *testing.T) {
	release := make(chan struct{})
	r := NewFactory(func(ctx context.Context, _ string) ([]byte, error) {
		<-release
		return sampleDoc(), nil
	}, nil)()
	ch := make(chan viewsync.Event, 1)
	r.Open(1, "a.pdf", func(ev viewsync.Event) { ch <- ev })
	r.Close()
	close(release)
	select {
	case ev := <-ch:
		t.Errorf("callback after Close: %#v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeServer, false},
		{"server", ModeServer, false},
		{"client", ModeClient, false},
		{"gpu", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownMode) {
			t.Errorf("ParseMode(%q) err = %v, want ErrUnknownMode", tt.in, err)
		}
	}
}

func TestExternal_ReportsNothing(t *testing.T) {
	r := NewExternalFactory()()
	ch := make(chan viewsync.Event, 1)
	sink := func(ev viewsync.Event) { ch <- ev }
	r.Open(1, "a.pdf", sink)
	r.Render(1, 1, 1, 1, sink)
	r.Close()
	select {
	case ev := <-ch:
		t.Errorf("external renderer reported %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
