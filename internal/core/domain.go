package core

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and display format for expense dates.
const DateLayout = "2006-01-02"

// MaxTitleLength is the maximum number of runes accepted for an expense title.
const MaxTitleLength = 100

type (
	Date struct {
		time.Time
	}

	Expense struct {
		ID        int64
		OwnerID   int64
		AuthorID  int64 // last user who changed the record
		Title     string
		Amount    decimal.Decimal
		Category  Category
		Date      Date
		IsActive  bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// ExpenseInput carries raw form values before validation.
	ExpenseInput struct {
		Title    string
		Amount   string
		Category string
		Date     string
	}

	// ExpenseFields is a validated ExpenseInput ready to be persisted.
	ExpenseFields struct {
		Title    string
		Amount   decimal.Decimal
		Category Category
		Date     Date
	}
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrNothingToReport    = errors.New("no expenses to report")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidCategory    = errors.New("invalid category")
)

// FieldErrors maps a form field name to a human readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has an error.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Err returns nil when no field failed.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Validate parses and checks every field, collecting one message per field.
func (in ExpenseInput) Validate() (ExpenseFields, error) {
	var out ExpenseFields
	errs := FieldErrors{}

	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		errs.Add("title", "This field is required.")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		errs.Add("title", "Ensure this value has at most 100 characters.")
	default:
		out.Title = title
	}

	if strings.TrimSpace(in.Amount) == "" {
		errs.Add("amount", "This field is required.")
	} else if amount, err := ParseAmount(in.Amount); err != nil {
		errs.Add("amount", "Enter a valid non-negative amount with at most 2 decimal places.")
	} else {
		out.Amount = amount
	}

	if strings.TrimSpace(in.Category) == "" {
		errs.Add("category", "This field is required.")
	} else if cat, err := ParseCategory(in.Category); err != nil {
		errs.Add("category", "Select a valid choice.")
	} else {
		out.Category = cat
	}

	if strings.TrimSpace(in.Date) == "" {
		errs.Add("date", "This field is required.")
	} else if d, err := ParseDate(in.Date); err != nil {
		errs.Add("date", "Enter a valid date.")
	} else {
		out.Date = d
	}

	if err := errs.Err(); err != nil {
		return ExpenseFields{}, err
	}
	return out, nil
}

// Input converts a stored expense back to form values for editing.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Title:    e.Title,
		Amount:   FormatAmount(e.Amount),
		Category: string(e.Category),
		Date:     e.Date.String(),
	}
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
