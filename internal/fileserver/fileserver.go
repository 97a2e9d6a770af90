// Package fileserver streams library PDFs with byte-range support.
package fileserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Route is the path the handler is mounted on.
const Route = "/api/proxy"

// ErrOutsideRoot is returned when a locator escapes the library root.
var ErrOutsideRoot = errors.New("path outside library root")

// Names maps a locator to the name its file has on disk.
type Names interface {
	DiskName(locator string) (string, bool)
}

// Handler serves GET and HEAD requests of the form ?f=<locator>.
type Handler struct {
	root   string
	names  Names
	logger *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithNames resolves locators through n before touching the file system.
func WithNames(n Names) Option {
	return func(h *Handler) { h.names = n }
}

// New creates a handler serving files under root.
func New(root string, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{root: filepath.Clean(root), logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// path sanitizes locator and swaps in its on-disk name when one is known.
func (h *Handler) path(locator string) (string, error) {
	path, err := Sanitize(h.root, locator)
	if err != nil || h.names == nil {
		return path, err
	}
	if name, ok := h.names.DiskName(filepath.Base(path)); ok {
		return Sanitize(h.root, name)
	}
	return path, nil
}

// Sanitize maps a locator to a path directly under root. Path separators are removed so the
// locator can only name a file in root itself.
func Sanitize(root, locator string) (string, error) {
	if dec, err := url.PathUnescape(locator); err == nil {
		locator = dec
	}
	name := strings.NewReplacer("/", "", "\\", "").Replace(locator)
	if name == "" || name == "." || name == ".." {
		return "", ErrOutsideRoot
	}
	root = filepath.Clean(root)
	path := filepath.Join(root, name)
	if filepath.Dir(path) != root {
		return "", ErrOutsideRoot
	}
	return path, nil
}

// Source returns the proxy URL of a locator.
func Source(locator string) string {
	return Route + "?f=" + url.QueryEscape(locator)
}

// Load reads the file named by a proxy source URL or a bare locator.
func (h *Handler) Load(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locator := source
	if u, err := url.Parse(source); err == nil && u.Query().Has("f") {
		locator = u.Query().Get("f")
	}
	path, err := h.path(locator)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", source, err)
	}
	return os.ReadFile(path)
}

// ServeHTTP answers 400 without f, 404 for a missing file, 206 for a satisfiable Range and 416
// otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	f := r.URL.Query().Get("f")
	if f == "" {
		respondError(w, http.StatusBadRequest, "missing f")
		return
	}
	path, err := h.path(f)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	file, err := os.Open(path)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.Debug("proxy", zap.String("path", path), zap.String("range", r.Header.Get("Range")))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
