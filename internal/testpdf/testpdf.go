// Package testpdf builds minimal well-formed PDF files for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Page describes one page of a generated document, in PDF points.
type Page struct {
	W, H   float64
	Rotate int
}

// Letter is a US Letter page.
var Letter = Page{W: 612, H: 792}

// Build returns a PDF with the given pages. The first page's MediaBox is inherited from the
// page tree when it equals Letter, so readers must walk the Parent chain.
func Build(pages ...Page) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0, len(pages)+2)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	var kids bytes.Buffer
	for i := range pages {
		fmt.Fprintf(&kids, "%d 0 R ", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [ %s] /Count %d /MediaBox [0 0 612 792] >>", kids.String(), len(pages)))

	for i, p := range pages {
		var attrs string
		if i != 0 || p.W != Letter.W || p.H != Letter.H {
			attrs = fmt.Sprintf(" /MediaBox [0 0 %g %g]", p.W, p.H)
		}
		if p.Rotate != 0 {
			attrs += fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << >>%s >>", attrs))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Write builds a PDF with n Letter pages at dir/name and returns its path.
func Write(dir, name string, n int) (string, error) {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Letter
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
