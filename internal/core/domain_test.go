package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-01-05 ")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2024-01-05" {
		t.Fatalf("unexpected date %s", d)
	}
	for _, bad := range []string{"", "2024-13-01", "05/01/2024", "2024-02-30"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestExpenseInputValidate(t *testing.T) {
	good := ExpenseInput{Title: " Taxi ", Amount: "12.50", Category: "Travel", Date: "2024-01-05"}
	fields, err := good.Validate()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if fields.Title != "Taxi" || fields.Category != CategoryTravel || FormatAmount(fields.Amount) != "12.50" {
		t.Fatalf("unexpected fields %+v", fields)
	}
	if fields.Date.String() != "2024-01-05" {
		t.Fatalf("unexpected date %s", fields.Date)
	}

	bads := []struct {
		in    ExpenseInput
		field string
	}{
		{ExpenseInput{Title: "", Amount: "1", Category: "Food", Date: "2024-01-01"}, "title"},
		{ExpenseInput{Title: strings.Repeat("x", 101), Amount: "1", Category: "Food", Date: "2024-01-01"}, "title"},
		{ExpenseInput{Title: "a", Amount: "", Category: "Food", Date: "2024-01-01"}, "amount"},
		{ExpenseInput{Title: "a", Amount: "-1", Category: "Food", Date: "2024-01-01"}, "amount"},
		{ExpenseInput{Title: "a", Amount: "abc", Category: "Food", Date: "2024-01-01"}, "amount"},
		{ExpenseInput{Title: "a", Amount: "1", Category: "food", Date: "2024-01-01"}, "category"},
		{ExpenseInput{Title: "a", Amount: "1", Category: "", Date: "2024-01-01"}, "category"},
		{ExpenseInput{Title: "a", Amount: "1", Category: "Food", Date: "yesterday"}, "date"},
	}
	for i, tc := range bads {
		_, err := tc.in.Validate()
		var fe FieldErrors
		if !errors.As(err, &fe) {
			t.Fatalf("case %d expected FieldErrors, got %v", i, err)
		}
		if _, ok := fe[tc.field]; !ok {
			t.Fatalf("case %d expected error on %s, got %v", i, tc.field, fe)
		}
	}
}

func TestExpenseInputValidateCollectsAllFields(t *testing.T) {
	_, err := ExpenseInput{}.Validate()
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if len(fe) != 4 {
		t.Fatalf("expected 4 field errors, got %v", fe)
	}
}

func TestExpenseInputRoundTrip(t *testing.T) {
	e := Expense{Title: "Lunch", Amount: AmountFromCents(800), Category: CategoryFood, Date: NewDate(2024, 1, 6)}
	in := e.Input()
	if in.Amount != "8.00" || in.Date != "2024-01-06" || in.Category != "Food" {
		t.Fatalf("unexpected input %+v", in)
	}
	if _, err := in.Validate(); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
}

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 20, "short"},
		{"exactly twenty chars", 20, "exactly twenty chars"},
		{"a title that is clearly too long", 20, "a title that is clea"},
		{"caffè e cornetto al bar", 6, "caffè "},
		{"x", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncateRunes(tc.in, tc.n); got != tc.want {
			t.Fatalf("TruncateRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestFieldErrorsError(t *testing.T) {
	fe := FieldErrors{}
	if fe.Err() != nil {
		t.Fatalf("empty FieldErrors must be nil error")
	}
	fe.Add("title", "required")
	fe.Add("title", "ignored")
	fe.Add("amount", "bad")
	if got := fe.Error(); got != "validation failed: amount: bad; title: required" {
		t.Fatalf("unexpected message %q", got)
	}
}
