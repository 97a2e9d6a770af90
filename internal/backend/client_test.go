package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/pdfscope/internal/models"
)

var params = models.OCRParams{DPI: 500, Tile: 1400, Overlap: 0.12}

func TestClient_OCRCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/ocr_cache" || q.Get("pdf_name") != "手册.pdf" || q.Get("dpi") != "500" || q.Get("tile") != "1400" || q.Get("overlap") != "0.12" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_ = json.NewEncoder(w).Encode([]models.OCRPage{
			{Page: 2, W: 1000, H: 1400, Hits: []models.Detection{{Text: "油门", Conf: 0.9, Box: models.Box{X: 1, Y: 2, W: 3, H: 4}}}},
		})
	}))
	defer srv.Close()

	pages, err := New(srv.URL+"/").OCRCache(context.Background(), "手册.pdf", params)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || pages[0].Page != 2 || pages[0].Hits[0].Text != "油门" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithRetries(3)).OCRCache(context.Background(), "a.pdf", params)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"pages_indexed":2,"nonzero_pages":1,"total_hits":5,"first_10":[{"page":1,"hits":5},{"page":2,"hits":0}],"combine":{"pages_in_file":2,"total_hits_in_file":5}}`))
	}))
	defer srv.Close()

	stats, err := New(srv.URL, WithRetries(3)).CacheStats(context.Background(), "a.pdf", params)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 || stats.TotalHits != 5 || len(stats.First10) != 2 || stats.Combine.PagesInFile != 2 {
		t.Errorf("calls = %d stats = %+v", calls.Load(), stats)
	}
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, WithRetries(1)).Ask(context.Background(), QARequest{PDFName: "a.pdf", Question: "q"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestClient_RunOCRAndAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		switch r.URL.Path {
		case "/ocr_pdf":
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["pdf_name"] != "a.pdf" || req["dpi"] != float64(500) || req["force"] != true {
				t.Errorf("ocr request = %v", req)
			}
			_, _ = w.Write([]byte(`[{"page":1,"w":10,"h":20,"hits":[]}]`))
		case "/qa":
			var req QARequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.TopK != 80 || req.Window != 2 {
				t.Errorf("qa request = %+v", req)
			}
			_, _ = w.Write([]byte(`{"answer":"A12","confidence":0.8,"pins":["A12"],"pages":[3],"evidence":[{"page":3,"text":"A12 signal"}]}`))
		case "/synonyms":
			_, _ = w.Write([]byte(`{"synonyms":["加速踏板"],"abbreviations":["APP"],"english":["accelerator"]}`))
		}
	}))
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	pages, err := c.RunOCR(ctx, OCRRequest{PDFURL: "http://x/api/proxy?f=a.pdf", PDFName: "a.pdf", Force: true, OCRParams: params})
	if err != nil || len(pages) != 1 || pages[0].Size() != (models.Size{W: 10, H: 20}) {
		t.Errorf("RunOCR = %+v, %v", pages, err)
	}

	ans, err := c.Ask(ctx, QARequest{PDFName: "a.pdf", Question: "which pin?", TopK: 80, Window: 2})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "A12" || ans.Confidence == nil || *ans.Confidence != 0.8 || len(ans.Evidence) != 1 || ans.Evidence[0].Box != nil {
		t.Errorf("Ask = %+v", ans)
	}

	s, err := c.Suggest(ctx, "油门", "a.pdf")
	if err != nil || len(s.Terms()) != 3 {
		t.Errorf("Suggest = %+v, %v", s, err)
	}
}

func TestClient_ClientErrorIsNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"pdf_name & question required"}`))
	}))
	defer srv.Close()
	_, err := New(srv.URL).Ask(context.Background(), QARequest{})
	if err == nil || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}
