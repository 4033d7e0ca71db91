package core

import "strings"

// ExpenseFilter narrows a listing of active expenses. Nil fields are not applied.
type ExpenseFilter struct {
	OwnerID  *int64
	Category *Category
	Start    *Date
	End      *Date
}

// NewExpenseFilter builds a filter from raw query values. A non-empty
// category is compared exactly, so a value outside the enumeration matches
// nothing. Unparsable dates are ignored, and the date range only applies when
// both bounds are present.
func NewExpenseFilter(category, start, end string) ExpenseFilter {
	var f ExpenseFilter
	if raw := strings.TrimSpace(category); raw != "" {
		c := Category(raw)
		f.Category = &c
	}
	s, errS := ParseDate(start)
	e, errE := ParseDate(end)
	if errS == nil && errE == nil {
		f.Start = &s
		f.End = &e
	}
	return f
}

// ForOwner returns a copy of f restricted to ownerID.
func (f ExpenseFilter) ForOwner(ownerID int64) ExpenseFilter {
	f.OwnerID = &ownerID
	return f
}

// HasDateRange reports whether both bounds are set.
func (f ExpenseFilter) HasDateRange() bool {
	return f.Start != nil && f.End != nil
}

// Matches applies the filter to a single expense. Inactive expenses never match.
func (f ExpenseFilter) Matches(e Expense) bool {
	if !e.IsActive {
		return false
	}
	if f.OwnerID != nil && e.OwnerID != *f.OwnerID {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.HasDateRange() {
		if e.Date.Before(f.Start.Time) || e.Date.After(f.End.Time) {
			return false
		}
	}
	return true
}
