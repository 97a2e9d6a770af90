// Package models defines core data structures for documents, OCR pages, hits, and answers.
package models

import "sort"

// Document is one entry of the file inventory.
type Document struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	File string `json:"file"`
	// Pages is the page count reported by the inventory; 0 when it could not be read.
	Pages int `json:"pages,omitempty"`
}

// Locator returns the base file name used by the proxy and the OCR backend.
func (d *Document) Locator() string {
	for i := len(d.File) - 1; i >= 0; i-- {
		if d.File[i] == '/' {
			return d.File[i+1:]
		}
	}
	return d.File
}

// Box is a pixel-space rectangle in the OCR raster's coordinate system.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Size is a width/height pair. Zero means unknown.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.W > 0 && s.H > 0
}

// Detection is a single recognized text box on an OCR page.
type Detection struct {
	Text string  `json:"text"`
	Conf float64 `json:"conf"`
	Box  Box     `json:"box"`
}

// OCRPage holds the detections of one page and the raster size they were measured in.
type OCRPage struct {
	Page int         `json:"page"`
	W    float64     `json:"w"`
	H    float64     `json:"h"`
	Hits []Detection `json:"hits"`
}

// Size returns the OCR raster size of the page.
func (p *OCRPage) Size() Size {
	return Size{W: p.W, H: p.H}
}

// OCRParams identifies one OCR run configuration.
type OCRParams struct {
	DPI     int     `json:"dpi" yaml:"dpi"`
	Tile    int     `json:"tile" yaml:"tile"`
	Overlap float64 `json:"overlap" yaml:"overlap"`
}

// PageIndex is the OCR page index of a document, sorted by page ascending.
type PageIndex []OCRPage

// Merge returns a new index where pages in update replace pages with the same number.
// The result is sorted by page ascending.
func (idx PageIndex) Merge(update []OCRPage) PageIndex {
	byPage := make(map[int]OCRPage, len(idx)+len(update))
	for _, p := range idx {
		byPage[p.Page] = p
	}
	for _, p := range update {
		byPage[p.Page] = p
	}
	out := make(PageIndex, 0, len(byPage))
	for _, p := range byPage {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

// Page returns the entry for page number n.
func (idx PageIndex) Page(n int) (*OCRPage, bool) {
	i := sort.Search(len(idx), func(i int) bool { return idx[i].Page >= n })
	if i < len(idx) && idx[i].Page == n {
		return &idx[i], true
	}
	return nil, false
}

// Sizes returns the OCR raster size per page.
func (idx PageIndex) Sizes() map[int]Size {
	out := make(map[int]Size, len(idx))
	for _, p := range idx {
		out[p.Page] = p.Size()
	}
	return out
}

// DetectionCount returns the total number of detections across all pages.
func (idx PageIndex) DetectionCount() int {
	n := 0
	for _, p := range idx {
		n += len(p.Hits)
	}
	return n
}
