package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
)

// FilterParams are the list filter values as submitted, echoed back into the
// filter form and the export link.
type FilterParams struct {
	Category  string
	StartDate string
	EndDate   string
}

// ParseFilterParams reads category, start_date and end_date from query.
func ParseFilterParams(query url.Values) FilterParams {
	return FilterParams{
		Category:  sanitizeInput(query.Get("category")),
		StartDate: sanitizeInput(query.Get("start_date")),
		EndDate:   sanitizeInput(query.Get("end_date")),
	}
}

// Filter converts the raw values. Invalid values are ignored.
func (p FilterParams) Filter() core.ExpenseFilter {
	return core.NewExpenseFilter(p.Category, p.StartDate, p.EndDate)
}

// Query re-encodes the non-empty values.
func (p FilterParams) Query() string {
	v := url.Values{}
	if p.Category != "" {
		v.Set("category", p.Category)
	}
	if p.StartDate != "" {
		v.Set("start_date", p.StartDate)
	}
	if p.EndDate != "" {
		v.Set("end_date", p.EndDate)
	}
	return v.Encode()
}

// ParseExpenseForm reads the expense form fields.
func ParseExpenseForm(form url.Values) core.ExpenseInput {
	return core.ExpenseInput{
		Title:    sanitizeInput(form.Get("title")),
		Amount:   sanitizeInput(form.Get("amount")),
		Category: sanitizeInput(form.Get("category")),
		Date:     sanitizeInput(form.Get("date")),
	}
}

// ParseRegisterForm reads the sign-up form. Passwords are taken verbatim.
func ParseRegisterForm(form url.Values) auth.RegisterInput {
	return auth.RegisterInput{
		Username:  sanitizeInput(form.Get("username")),
		Email:     sanitizeInput(form.Get("email")),
		Password1: form.Get("password1"),
		Password2: form.Get("password2"),
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *ResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid form submission")
	}
	return nil
}

// pathID parses the {id} wildcard. Anything but a positive integer is a miss.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
