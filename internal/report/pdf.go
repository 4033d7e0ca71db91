// Package report renders expense listings as PDF documents and email bodies.
package report

import (
	"expensetracker/internal/core"
)

// Page geometry, in points from the bottom-left corner.
const (
	ReportTitle = "Filtered Expense Report"

	titleX, titleY = 100, 800
	headerY        = 780
	rowHeight      = 20
	bottomMargin   = 50
	maxTitleRunes  = 20

	colDate     = 50
	colTitle    = 150
	colAmount   = 300
	colCategory = 400

	fontFamily = "Helvetica"
	titleSize  = 14
	bodySize   = 12
)

// Generate draws expenses onto c. Only the first page carries the column
// header; continuation pages restart at the header line.
func Generate(c Canvas, expenses []core.Expense) error {
	if len(expenses) == 0 {
		return core.ErrNothingToReport
	}

	c.SetFont(fontFamily, "", titleSize)
	c.DrawString(titleX, titleY, ReportTitle)

	y := float64(headerY)
	c.SetFont(fontFamily, "B", bodySize)
	c.DrawString(colDate, y, "Date")
	c.DrawString(colTitle, y, "Title")
	c.DrawString(colAmount, y, "Amount")
	c.DrawString(colCategory, y, "Category")
	y -= rowHeight
	c.SetFont(fontFamily, "", bodySize)

	for _, e := range expenses {
		c.DrawString(colDate, y, e.Date.String())
		c.DrawString(colTitle, y, core.TruncateRunes(e.Title, maxTitleRunes))
		c.DrawString(colAmount, y, "$"+core.FormatAmount(e.Amount))
		c.DrawString(colCategory, y, e.Category.String())
		y -= rowHeight
		if y < bottomMargin {
			c.ShowPage()
			c.SetFont(fontFamily, "", bodySize)
			y = headerY
		}
	}
	return nil
}

// RenderPDF generates the report into a new PDF document.
func RenderPDF(expenses []core.Expense) ([]byte, error) {
	c := NewPDFCanvas(ReportTitle)
	if err := Generate(c, expenses); err != nil {
		return nil, err
	}
	return c.Bytes()
}
