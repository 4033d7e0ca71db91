package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"expensetracker/internal/core"
)

// Page templates, each rendered inside base.html.
const (
	pageLogin         = "login.html"
	pageSignUp        = "sign_up.html"
	pageDashboard     = "dashboard.html"
	pageExpenseList   = "expense_list.html"
	pageExpenseForm   = "expense_form.html"
	pageConfirmDelete = "expense_confirm_delete.html"
)

var pageNames = []string{pageLogin, pageSignUp, pageDashboard, pageExpenseList, pageExpenseForm, pageConfirmDelete}

var templateFuncs = template.FuncMap{
	"amount": core.FormatAmount,
}

func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range pageNames {
		t, err := template.New("base.html").Funcs(templateFuncs).
			ParseFS(fsys, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// missingPages lists the pages that have no parsed template.
func missingPages(pages map[string]*template.Template) []string {
	var missing []string
	for _, name := range pageNames {
		if pages[name] == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// layout is embedded in every page's data.
type layout struct {
	Title string
	User  *core.User
}

func (l layout) CanManage() bool {
	return l.User != nil && l.User.CanManageExpenses()
}

// render executes a page into a buffer so a template error never leaves a
// half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, data any) {
	t, ok := s.pages[name]
	if !ok {
		s.serverError(w, r, "Unknown template", fmt.Errorf("template %s not loaded", name))
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.serverError(w, r, "Template execution failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
