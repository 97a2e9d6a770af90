// Package inventory lists the PDF documents under a library root in locale-aware order and
// resolves route segments to documents.
package inventory

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/pdfscope/internal/models"
)

const (
	// DefaultCollation orders names like a Simplified Chinese locale.
	DefaultCollation = "zh-Hans"
	// FilePrefix is the public path prefix of document locators.
	FilePrefix = "/pdfs/"
	pdfExt     = ".pdf"
)

// Inventory is a snapshot of the library root, refreshed on demand.
type Inventory struct {
	root   string
	tag    language.Tag
	logger *zap.Logger

	mu     sync.RWMutex
	docs   []models.Document
	disk   map[string]string // locator -> on-disk file name
	counts map[string]pageCount
}

type pageCount struct {
	size  int64
	mtime int64
	pages int
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Inventory) { i.logger = l }
}

// WithCollation sets the BCP 47 locale used to order names. Invalid tags fall back to the default.
func WithCollation(tag string) Option {
	return func(i *Inventory) {
		if t, err := language.Parse(tag); err == nil {
			i.tag = t
		}
	}
}

// New creates an inventory for root. Call Refresh to scan it.
func New(root string, opts ...Option) *Inventory {
	inv := &Inventory{
		root:   root,
		tag:    language.MustParse(DefaultCollation),
		logger: zap.NewNop(),
		counts: make(map[string]pageCount),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Root returns the library root directory.
func (i *Inventory) Root() string {
	return i.root
}

// Refresh rescans the root. A missing root yields an empty inventory. Page counts are cached
// per file size and modification time.
func (i *Inventory) Refresh(ctx context.Context) error {
	entries, err := os.ReadDir(i.root)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read library root: %w", err)
	}
	type file struct {
		name string
		info os.FileInfo
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), pdfExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{name: e.Name(), info: info})
	}

	names := make([]string, len(files))
	for k, f := range files {
		names[k] = f.name
	}
	order := Sort(names, i.tag)

	i.mu.RLock()
	prev := i.counts
	i.mu.RUnlock()
	counts := make(map[string]pageCount, len(files))
	byName := make(map[string]os.FileInfo, len(files))
	for _, f := range files {
		byName[f.name] = f.info
	}

	disk := make(map[string]string, len(order))
	docs := make([]models.Document, 0, len(order))
	for id, name := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		info := byName[name]
		pc, ok := prev[name]
		if !ok || pc.size != info.Size() || pc.mtime != info.ModTime().UnixNano() {
			pc = pageCount{size: info.Size(), mtime: info.ModTime().UnixNano(), pages: i.countPages(filepath.Join(i.root, name))}
		}
		counts[name] = pc
		display := norm.NFC.String(name)
		disk[display] = name
		docs = append(docs, models.Document{
			ID:    id,
			Name:  strings.TrimSuffix(display, filepath.Ext(display)),
			File:  FilePrefix + display,
			Pages: pc.pages,
		})
	}

	i.mu.Lock()
	i.docs = docs
	i.disk = disk
	i.counts = counts
	i.mu.Unlock()
	i.logger.Debug("inventory refreshed", zap.String("root", i.root), zap.Int("documents", len(docs)))
	return nil
}

func (i *Inventory) countPages(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		i.logger.Warn("page count failed", zap.String("path", path), zap.Error(err))
		return 0
	}
	return n
}

// List returns the documents in display order; ID equals the position.
func (i *Inventory) List() []models.Document {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]models.Document(nil), i.docs...)
}

// Resolve finds the document named by a route segment: a numeric id, a locator such as
// /pdfs/a.pdf, a file name, or a name without extension. The segment may be URL-encoded.
func (i *Inventory) Resolve(segment string) (models.Document, error) {
	if dec, err := url.PathUnescape(segment); err == nil {
		segment = dec
	}
	segment = norm.NFC.String(strings.TrimSpace(segment))
	i.mu.RLock()
	defer i.mu.RUnlock()
	if segment == "" {
		return models.Document{}, models.ErrNotFound
	}
	if id, err := strconv.Atoi(segment); err == nil {
		if id >= 0 && id < len(i.docs) {
			return i.docs[id], nil
		}
	}
	for _, d := range i.docs {
		if d.File == segment || d.Locator() == segment || d.Name == segment {
			return d, nil
		}
	}
	return models.Document{}, fmt.Errorf("document %q: %w", segment, models.ErrNotFound)
}

// DiskName returns the on-disk file name of a locator. Locators are NFC while the file
// system may store another normalization form.
func (i *Inventory) DiskName(locator string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	name, ok := i.disk[norm.NFC.String(locator)]
	return name, ok
}

// Sort returns names ordered by the collation for tag, ties broken by byte order.
func Sort(names []string, tag language.Tag) []string {
	out := append([]string(nil), names...)
	c := collate.New(tag)
	sort.SliceStable(out, func(a, b int) bool {
		if r := c.CompareString(out[a], out[b]); r != 0 {
			return r < 0
		}
		return out[a] < out[b]
	})
	return out
}
