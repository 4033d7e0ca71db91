package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := ParseAmount(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestSummarize(t *testing.T) {
	expenses := []Expense{
		{Date: NewDate(2024, 1, 5), Title: "Taxi", Amount: mustAmount(t, "12.50"), Category: CategoryTravel, IsActive: true},
		{Date: NewDate(2024, 1, 6), Title: "Lunch", Amount: mustAmount(t, "8.00"), Category: CategoryFood, IsActive: true},
	}
	s := Summarize(expenses)

	if FormatAmount(s.Total) != "20.50" {
		t.Fatalf("expected total 20.50, got %s", FormatAmount(s.Total))
	}
	if len(s.ByCategory) != len(Categories()) {
		t.Fatalf("expected one entry per category, got %d", len(s.ByCategory))
	}
	if FormatAmount(s.AmountFor(CategoryTravel)) != "12.50" {
		t.Fatalf("travel subtotal: %s", s.AmountFor(CategoryTravel))
	}
	if FormatAmount(s.AmountFor(CategoryFood)) != "8.00" {
		t.Fatalf("food subtotal: %s", s.AmountFor(CategoryFood))
	}
	for _, ct := range s.ByCategory {
		if ct.Category != CategoryTravel && ct.Category != CategoryFood && !ct.Amount.IsZero() {
			t.Fatalf("expected zero for %s, got %s", ct.Category, ct.Amount)
		}
	}
}

func TestSummarizeSubtotalsSumToTotal(t *testing.T) {
	var expenses []Expense
	for i, c := range Categories() {
		for j := 0; j <= i; j++ {
			expenses = append(expenses, Expense{Amount: AmountFromCents(int64(101*i + j)), Category: c, IsActive: true})
		}
	}
	s := Summarize(expenses)
	sum := decimal.Zero
	for _, ct := range s.ByCategory {
		sum = sum.Add(ct.Amount)
	}
	if !sum.Equal(s.Total) {
		t.Fatalf("subtotals %s do not add up to total %s", sum, s.Total)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if !s.Total.IsZero() {
		t.Fatalf("expected zero total, got %s", s.Total)
	}
	if len(s.ByCategory) != len(Categories()) {
		t.Fatalf("expected every category even when empty")
	}
}
