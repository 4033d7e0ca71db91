package core

import "github.com/shopspring/decimal"

// CategoryTotal represents an amount aggregated by category.
type CategoryTotal struct {
	Category Category
	Amount   decimal.Decimal
}

// DashboardSummary is the aggregate shown on the dashboard.
type DashboardSummary struct {
	Total      decimal.Decimal
	ByCategory []CategoryTotal // one entry per category, in enumeration order
}

// Summarize totals expenses overall and per category. Categories without
// expenses are reported with a zero amount.
func Summarize(expenses []Expense) DashboardSummary {
	perCat := make(map[Category]decimal.Decimal, len(categories))
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
		perCat[e.Category] = perCat[e.Category].Add(e.Amount)
	}

	out := DashboardSummary{
		Total:      total,
		ByCategory: make([]CategoryTotal, 0, len(categories)),
	}
	for _, c := range categories {
		amount, ok := perCat[c]
		if !ok {
			amount = decimal.Zero
		}
		out.ByCategory = append(out.ByCategory, CategoryTotal{Category: c, Amount: amount})
	}
	return out
}

// AmountFor returns the subtotal for c, zero when absent.
func (s DashboardSummary) AmountFor(c Category) decimal.Decimal {
	for _, ct := range s.ByCategory {
		if ct.Category == c {
			return ct.Amount
		}
	}
	return decimal.Zero
}
