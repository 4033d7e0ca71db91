// Package services holds the expense use cases behind the HTTP handlers and
// the mail worker.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/report"
)

// ExpenseStore is the persistence the expense use cases need.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, ownerID int64, f core.ExpenseFields) (core.Expense, error)
	GetActiveExpense(ctx context.Context, id, ownerID int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, id, ownerID, authorID int64, f core.ExpenseFields) (core.Expense, error)
	DeactivateExpense(ctx context.Context, id, ownerID, authorID int64) error
	ListActiveExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
}

// ExpenseService applies ownership scoping to every expense operation.
// Callers are expected to have passed the access gate already.
type ExpenseService struct {
	store ExpenseStore
}

func NewExpenseService(store ExpenseStore) *ExpenseService {
	return &ExpenseService{store: store}
}

// Dashboard summarises the caller's own active expenses, whatever their role.
func (s *ExpenseService) Dashboard(ctx context.Context, user core.User) (core.DashboardSummary, error) {
	expenses, err := s.store.ListActiveExpenses(ctx, core.ExpenseFilter{}.ForOwner(user.ID))
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("list expenses: %w", err)
	}
	return core.Summarize(expenses), nil
}

// List returns active expenses matching filter. Admins see every owner.
func (s *ExpenseService) List(ctx context.Context, user core.User, filter core.ExpenseFilter) ([]core.Expense, error) {
	filter.OwnerID = nil
	if !user.SeesAllExpenses() {
		filter = filter.ForOwner(user.ID)
	}
	expenses, err := s.store.ListActiveExpenses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Get loads one of the caller's active expenses.
func (s *ExpenseService) Get(ctx context.Context, user core.User, id int64) (core.Expense, error) {
	return s.store.GetActiveExpense(ctx, id, user.ID)
}

// Create validates in and stores it with the caller as owner. Validation
// failures are returned as core.FieldErrors and nothing is written.
func (s *ExpenseService) Create(ctx context.Context, user core.User, in core.ExpenseInput) (core.Expense, error) {
	fields, err := in.Validate()
	if err != nil {
		return core.Expense{}, err
	}
	e, err := s.store.CreateExpense(ctx, user.ID, fields)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	logMutation(ctx, "Expense created", applog.OpCreate, user, e)
	return e, nil
}

// Update replaces the fields of one of the caller's active expenses. A miss
// is reported before validation runs.
func (s *ExpenseService) Update(ctx context.Context, user core.User, id int64, in core.ExpenseInput) (core.Expense, error) {
	if _, err := s.store.GetActiveExpense(ctx, id, user.ID); err != nil {
		return core.Expense{}, err
	}
	fields, err := in.Validate()
	if err != nil {
		return core.Expense{}, err
	}
	e, err := s.store.UpdateExpense(ctx, id, user.ID, user.ID, fields)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	logMutation(ctx, "Expense updated", applog.OpUpdate, user, e)
	return e, nil
}

// Delete deactivates one of the caller's active expenses.
func (s *ExpenseService) Delete(ctx context.Context, user core.User, id int64) error {
	if err := s.store.DeactivateExpense(ctx, id, user.ID, user.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	logMutation(ctx, "Expense deleted", applog.OpDelete, user, core.Expense{ID: id})
	return nil
}

// ExportPDF renders the caller's active expenses matching filter. Returns
// core.ErrNothingToReport when nothing matches.
func (s *ExpenseService) ExportPDF(ctx context.Context, user core.User, filter core.ExpenseFilter) ([]byte, error) {
	expenses, err := s.store.ListActiveExpenses(ctx, filter.ForOwner(user.ID))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if len(expenses) == 0 {
		return nil, core.ErrNothingToReport
	}
	pdf, err := report.RenderPDF(expenses)
	if err != nil {
		return nil, err
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentReport).LogFields(ctx, slog.LevelInfo, "PDF exported",
		applog.NewFields().
			WithOperation(applog.OpExport).
			WithUser(user.ID, user.Username).
			With(applog.FieldCount, len(expenses)))
	return pdf, nil
}

// GeneratePDF renders all of the caller's active expenses.
func (s *ExpenseService) GeneratePDF(ctx context.Context, user core.User) ([]byte, error) {
	return s.ExportPDF(ctx, user, core.ExpenseFilter{})
}

func logMutation(ctx context.Context, msg, op string, user core.User, e core.Expense) {
	fields := applog.NewFields().
		WithOperation(op).
		WithUser(user.ID, user.Username)
	if op == applog.OpDelete {
		fields = fields.With(applog.FieldExpenseID, e.ID)
	} else {
		fields = fields.WithExpense(e.ID, core.FormatAmount(e.Amount), e.Category.String())
	}
	applog.FromContext(ctx).LogFields(ctx, slog.LevelInfo, msg, fields)
}
