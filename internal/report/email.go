package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"expensetracker/internal/core"
)

//go:embed templates/email_report.html
var templatesFS embed.FS

var emailTemplate = template.Must(
	template.New("email_report.html").
		Funcs(template.FuncMap{"amount": core.FormatAmount}).
		ParseFS(templatesFS, "templates/email_report.html"))

// EmailData feeds the report email template.
type EmailData struct {
	User     core.User
	Expenses []core.Expense
	Total    decimal.Decimal
}

// RenderEmailHTML renders the HTML body of the report email.
func RenderEmailHTML(data EmailData) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}

// StripTags reduces an HTML document to readable plain text: one line per
// block element, table cells separated by spaces, entities decoded and
// script, style and title content dropped.
func StripTags(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	hidden := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return collapseLines(b.String())

		case html.TextToken:
			if hidden == 0 {
				b.WriteString(strings.Map(flattenWhitespace, string(z.Text())))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Title:
				if tt == html.StartTagToken {
					hidden++
				}
			case atom.Br, atom.P, atom.Div, atom.Tr, atom.Table, atom.H1, atom.H2, atom.H3, atom.Li:
				b.WriteByte('\n')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Title:
				if hidden > 0 {
					hidden--
				}
			case atom.P, atom.Div, atom.Tr, atom.Table, atom.H1, atom.H2, atom.H3, atom.Li:
				b.WriteByte('\n')
			case atom.Td, atom.Th:
				b.WriteByte(' ')
			}
		}
	}
}

func flattenWhitespace(r rune) rune {
	switch r {
	case '\n', '\r', '\t', '\f':
		return ' '
	}
	return r
}

func collapseLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}
	return strings.Join(lines, "\n")
}
