package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Canvas is a page-oriented drawing surface. Coordinates are PostScript
// points with the origin at the bottom-left corner of the page.
type Canvas interface {
	SetFont(family, style string, size float64)
	DrawString(x, y float64, text string)
	// ShowPage closes the current page. The next drawing call starts a new one.
	ShowPage()
	Bytes() ([]byte, error)
}

// PDFCanvas draws onto an A4 portrait document.
type PDFCanvas struct {
	pdf        *fpdf.Fpdf
	translate  func(string) string
	pageHeight float64
	pending    bool
}

func NewPDFCanvas(title string) *PDFCanvas {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetTitle(title, true)
	pdf.SetCreator("expensetracker", true)
	pdf.AddPage()
	_, h := pdf.GetPageSize()
	return &PDFCanvas{
		pdf:        pdf,
		translate:  pdf.UnicodeTranslatorFromDescriptor(""),
		pageHeight: h,
	}
}

func (c *PDFCanvas) openPage() {
	if c.pending {
		c.pdf.AddPage()
		c.pending = false
	}
}

func (c *PDFCanvas) SetFont(family, style string, size float64) {
	c.openPage()
	c.pdf.SetFont(family, style, size)
}

func (c *PDFCanvas) DrawString(x, y float64, text string) {
	c.openPage()
	c.pdf.Text(x, c.pageHeight-y, c.translate(text))
}

func (c *PDFCanvas) ShowPage() {
	c.pending = true
}

// PageCount returns the number of pages emitted so far.
func (c *PDFCanvas) PageCount() int {
	return c.pdf.PageCount()
}

func (c *PDFCanvas) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
