// Package overlay maps OCR pixel boxes into rendered page coordinates and projects hits
// onto the currently displayed page.
package overlay

import "github.com/hyperjump/pdfscope/internal/models"

// Rect is a rectangle in the rendered view's CSS coordinate system.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MapBox scales box from the OCR raster size to the rendered size. When either size is
// unknown the raw box is returned unscaled.
func MapBox(box models.Box, ocr, rendered models.Size) Rect {
	if !ocr.Known() || !rendered.Known() {
		return Rect{Left: box.X, Top: box.Y, Width: box.W, Height: box.H}
	}
	sx := rendered.W / ocr.W
	sy := rendered.H / ocr.H
	return Rect{
		Left:   box.X * sx,
		Top:    box.Y * sy,
		Width:  box.W * sx,
		Height: box.H * sy,
	}
}
