// Package render implements a headless page renderer over ledongthuc/pdf. Loading reports the
// page count; rendering reports the page's CSS size at the requested zoom.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/viewsync"
)

// CSSPixelsPerPoint converts PDF points to CSS pixels at zoom 1.
const CSSPixelsPerPoint = 96.0 / 72.0

var (
	// ErrNotLoaded is reported when a page is rendered before the document loaded.
	ErrNotLoaded = errors.New("document not loaded")
	// ErrPageRange is reported for a page outside the document.
	ErrPageRange = errors.New("page out of range")

	letter = models.Size{W: 612, H: 792}
)

// Loader returns the bytes of the document at source.
type Loader func(ctx context.Context, source string) ([]byte, error)

// ReadFile loads a document from the local filesystem.
func ReadFile(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(source)
}

// PDFRenderer is one renderer instance. It is discarded after Close.
type PDFRenderer struct {
	load   Loader
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	reader *pdf.Reader
}

// NewFactory returns a factory creating a fresh PDFRenderer per instantiation.
func NewFactory(load Loader, logger *zap.Logger) viewsync.RendererFactory {
	if load == nil {
		load = ReadFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func() viewsync.Renderer {
		ctx, cancel := context.WithCancel(context.Background())
		return &PDFRenderer{load: load, logger: logger, ctx: ctx, cancel: cancel}
	}
}

// Open loads source in the background and reports DocumentLoaded or DocumentLoadFailed.
func (r *PDFRenderer) Open(gen uint64, source string, sink viewsync.Sink) {
	go func() {
		reader, err := r.open(source)
		if r.ctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Debug("document load failed", zap.String("source", source), zap.Error(err))
			sink(viewsync.DocumentLoadFailed{Gen: gen, Err: err})
			return
		}
		r.mu.Lock()
		r.reader = reader
		r.mu.Unlock()
		sink(viewsync.DocumentLoaded{Gen: gen, NumPages: reader.NumPage()})
	}()
}

func (r *PDFRenderer) open(source string) (*pdf.Reader, error) {
	data, err := r.load(r.ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return reader, nil
}

// Render measures page at zoom in the background and reports RenderCompleted or RenderFailed.
func (r *PDFRenderer) Render(gen, seq uint64, page int, zoom float64, sink viewsync.Sink) {
	go func() {
		r.mu.Lock()
		reader := r.reader
		r.mu.Unlock()
		var size models.Size
		var err error
		if reader == nil {
			err = ErrNotLoaded
		} else {
			size, err = PageSize(reader, page)
		}
		if r.ctx.Err() != nil {
			return
		}
		if err != nil {
			sink(viewsync.RenderFailed{Gen: gen, Seq: seq, Page: page, Err: err})
			return
		}
		sink(viewsync.RenderCompleted{Gen: gen, Seq: seq, Page: page, Size: CSSSize(size, zoom)})
	}()
}

// Close cancels pending work. Callbacks from this instance are dropped afterwards.
func (r *PDFRenderer) Close() {
	r.cancel()
	r.mu.Lock()
	r.reader = nil
	r.mu.Unlock()
}

// Mode selects who renders a session's pages.
type Mode string

const (
	// ModeServer renders headlessly in this process.
	ModeServer Mode = "server"
	// ModeClient leaves rendering to the client, which reports outcomes as events.
	ModeClient Mode = "client"
)

// ErrUnknownMode is returned for a render mode other than server or client.
var ErrUnknownMode = errors.New("unknown render mode")

// ParseMode parses a render mode. Empty means ModeServer.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeServer:
		return ModeServer, nil
	case ModeClient:
		return ModeClient, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// External is the renderer of client-rendered sessions. Loads and renders happen elsewhere
// and their outcomes reach the synchronizer as reported events, so every call is a no-op.
type External struct{}

// NewExternalFactory returns a factory of External renderers.
func NewExternalFactory() viewsync.RendererFactory {
	return func() viewsync.Renderer { return External{} }
}

// Open does nothing.
func (External) Open(uint64, string, viewsync.Sink) {}

// Render does nothing.
func (External) Render(uint64, uint64, int, float64, viewsync.Sink) {}

// Close does nothing.
func (External) Close() {}

// PageSize returns the displayed size of page n in PDF points, honoring inherited
// MediaBox and CropBox and a quarter-turn Rotate.
func PageSize(reader *pdf.Reader, n int) (models.Size, error) {
	if n < 1 || n > reader.NumPage() {
		return models.Size{}, fmt.Errorf("%w: %d", ErrPageRange, n)
	}
	p := reader.Page(n)
	if p.V.IsNull() {
		return models.Size{}, fmt.Errorf("%w: %d", ErrPageRange, n)
	}
	size, ok := boxSize(inherited(p.V, "CropBox"))
	if !ok {
		size, ok = boxSize(inherited(p.V, "MediaBox"))
	}
	if !ok {
		size = letter
	}
	if rot := inherited(p.V, "Rotate").Int64(); rot%180 != 0 {
		size.W, size.H = size.H, size.W
	}
	return size, nil
}

// CSSSize scales a size in points to CSS pixels at zoom.
func CSSSize(points models.Size, zoom float64) models.Size {
	k := zoom * CSSPixelsPerPoint
	return models.Size{W: points.W * k, H: points.H * k}
}

func inherited(v pdf.Value, key string) pdf.Value {
	for ; !v.IsNull(); v = v.Key("Parent") {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return pdf.Value{}
}

func boxSize(box pdf.Value) (models.Size, bool) {
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return models.Size{}, false
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	if w == 0 || h == 0 {
		return models.Size{}, false
	}
	return models.Size{W: w, H: h}, true
}
