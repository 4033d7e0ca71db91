package http

import (
	"errors"
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
)

// Fixed response texts and download names.
const (
	msgNoFilteredExpenses = "No expenses found for the selected filters."
	msgNothingToReport    = "No expenses to report"
	msgReportSent         = "Expense report emailed successfully"
	msgExpenseNotFound    = "Expense not found"

	exportFilename = "Filtered_Expense_Report.pdf"
	contentTypePDF = "application/pdf"
)

type expenseListPage struct {
	layout
	Expenses   []core.Expense
	Filter     FilterParams
	ExportURL  string
	Categories []core.Category
	ShowOwner  bool
}

type expenseFormPage struct {
	layout
	Action     string
	Editing    bool
	Input      core.ExpenseInput
	Errors     core.FieldErrors
	Categories []core.Category
}

type confirmDeletePage struct {
	layout
	Expense core.Expense
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	params := ParseFilterParams(r.URL.Query())

	expenses, err := s.expenses.List(r.Context(), user, params.Filter())
	if err != nil {
		s.serverError(w, r, "Failed to list expenses", err)
		return
	}
	s.render(w, r, pageExpenseList, http.StatusOK, expenseListPage{
		layout:     layout{Title: "Expenses", User: &user},
		Expenses:   expenses,
		Filter:     params,
		ExportURL:  exportURL(params),
		Categories: core.Categories(),
		ShowOwner:  user.SeesAllExpenses(),
	})
}

func (s *Server) handleAddExpenseForm(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	s.renderExpenseForm(w, r, user, "/expenses/add/", false, core.ExpenseInput{}, nil)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	in := ParseExpenseForm(r.PostForm)

	_, err := s.expenses.Create(r.Context(), user, in)
	var fe core.FieldErrors
	switch {
	case errors.As(err, &fe):
		s.renderExpenseForm(w, r, user, "/expenses/add/", false, in, fe)
	case err != nil:
		s.serverError(w, r, "Failed to create expense", err)
	default:
		http.Redirect(w, r, "/expenses", http.StatusFound)
	}
}

func (s *Server) handleUpdateExpenseForm(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		NotFoundError(msgExpenseNotFound).Write(w)
		return
	}

	e, err := s.expenses.Get(r.Context(), user, id)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(msgExpenseNotFound).Write(w)
		return
	}
	if err != nil {
		s.serverError(w, r, "Failed to load expense", err)
		return
	}
	s.renderExpenseForm(w, r, user, r.URL.Path, true, e.Input(), nil)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		NotFoundError(msgExpenseNotFound).Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	in := ParseExpenseForm(r.PostForm)

	_, err := s.expenses.Update(r.Context(), user, id, in)
	var fe core.FieldErrors
	switch {
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(msgExpenseNotFound).Write(w)
	case errors.As(err, &fe):
		s.renderExpenseForm(w, r, user, r.URL.Path, true, in, fe)
	case err != nil:
		s.serverError(w, r, "Failed to update expense", err)
	default:
		http.Redirect(w, r, "/expenses", http.StatusFound)
	}
}

func (s *Server) handleDeleteExpenseConfirm(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		NotFoundError(msgExpenseNotFound).Write(w)
		return
	}

	e, err := s.expenses.Get(r.Context(), user, id)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(msgExpenseNotFound).Write(w)
		return
	}
	if err != nil {
		s.serverError(w, r, "Failed to load expense", err)
		return
	}
	s.render(w, r, pageConfirmDelete, http.StatusOK, confirmDeletePage{
		layout:  layout{Title: "Delete expense", User: &user},
		Expense: e,
	})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		NotFoundError(msgExpenseNotFound).Write(w)
		return
	}

	err := s.expenses.Delete(r.Context(), user, id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(msgExpenseNotFound).Write(w)
	case err != nil:
		s.serverError(w, r, "Failed to delete expense", err)
	default:
		http.Redirect(w, r, "/expenses", http.StatusFound)
	}
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	pdf, err := s.expenses.ExportPDF(r.Context(), user, ParseFilterParams(r.URL.Query()).Filter())
	s.writePDF(w, r, pdf, err)
}

func (s *Server) handleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	pdf, err := s.expenses.GeneratePDF(r.Context(), user)
	s.writePDF(w, r, pdf, err)
}

func (s *Server) writePDF(w http.ResponseWriter, r *http.Request, pdf []byte, err error) {
	switch {
	case errors.Is(err, core.ErrNothingToReport):
		NewResponse().Text(msgNoFilteredExpenses).Write(w)
	case err != nil:
		s.serverError(w, r, "Failed to render PDF", err)
	default:
		NewResponse().Attachment(exportFilename, contentTypePDF, pdf).Write(w)
	}
}

func (s *Server) handleSendReport(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	dispatch, err := s.reports.SendReport(r.Context(), user, trace.GetRequestID(r.Context()))
	switch {
	case errors.Is(err, core.ErrNothingToReport):
		NewResponse().Text(msgNothingToReport).Write(w)
	case err != nil:
		s.serverError(w, r, "Failed to send report", err)
	default:
		if dispatch == services.ReportQueued {
			s.requestLogger(r).InfoContext(r.Context(), "Report request queued")
		}
		NewResponse().Text(msgReportSent).Write(w)
	}
}

func exportURL(p FilterParams) string {
	if q := p.Query(); q != "" {
		return "/expenses/export_pdf/?" + q
	}
	return "/expenses/export_pdf/"
}

func (s *Server) renderExpenseForm(w http.ResponseWriter, r *http.Request, user core.User, action string, editing bool, in core.ExpenseInput, fe core.FieldErrors) {
	title := "Add expense"
	if editing {
		title = "Update expense"
	}
	s.render(w, r, pageExpenseForm, http.StatusOK, expenseFormPage{
		layout:     layout{Title: title, User: &user},
		Action:     action,
		Editing:    editing,
		Input:      in,
		Errors:     fe,
		Categories: core.Categories(),
	})
}
