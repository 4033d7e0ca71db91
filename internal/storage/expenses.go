package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"expensetracker/internal/core"
)

const expenseColumns = `id, owner_id, author_id, title, amount_cents, category, date, is_active, created_at, updated_at`

// CreateExpense stores a new active expense owned (and authored) by ownerID.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, ownerID int64, f core.ExpenseFields) (core.Expense, error) {
	now := r.now().Unix()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (owner_id, author_id, title, amount_cents, category, date, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		ownerID, ownerID, f.Title, core.AmountToCents(f.Amount), string(f.Category), f.Date.String(), now, now)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("read expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"owner_id", ownerID,
		"amount", core.FormatAmount(f.Amount),
		"category", f.Category,
		"date", f.Date.String())

	return r.GetActiveExpense(ctx, id, ownerID)
}

// GetActiveExpense loads an expense scoped to (id, owner, active).
func (r *SQLiteRepository) GetActiveExpense(ctx context.Context, id, ownerID int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE id = ? AND owner_id = ? AND is_active = 1`, id, ownerID)
	return scanExpense(row)
}

// UpdateExpense rewrites an expense scoped to (id, owner, active) and records authorID.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id, ownerID, authorID int64, f core.ExpenseFields) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET title = ?, amount_cents = ?, category = ?, date = ?, author_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND is_active = 1`,
		f.Title, core.AmountToCents(f.Amount), string(f.Category), f.Date.String(), authorID, r.now().Unix(),
		id, ownerID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense updated", "id", id, "owner_id", ownerID, "author_id", authorID)
	return r.GetActiveExpense(ctx, id, ownerID)
}

// DeactivateExpense soft-deletes an expense scoped to (id, owner, active).
// The row stays persisted with is_active = 0.
func (r *SQLiteRepository) DeactivateExpense(ctx context.Context, id, ownerID, authorID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET is_active = 0, author_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND is_active = 1`,
		authorID, r.now().Unix(), id, ownerID)
	if err != nil {
		return fmt.Errorf("deactivate expense %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense deactivated", "id", id, "owner_id", ownerID, "author_id", authorID)
	return nil
}

// ListActiveExpenses returns active expenses matching f, ordered by date then id.
func (r *SQLiteRepository) ListActiveExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	where := []string{"is_active = 1"}
	var args []any
	if f.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *f.OwnerID)
	}
	if f.Category != nil {
		where = append(where, "category = ?")
		args = append(args, string(*f.Category))
	}
	if f.HasDateRange() {
		where = append(where, "date BETWEEN ? AND ?")
		args = append(args, f.Start.String(), f.End.String())
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + strings.Join(where, " AND ") + ` ORDER BY date, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                core.Expense
		author           sql.NullInt64
		cents            int64
		category, date   string
		active           int
		created, updated int64
	)
	err := s.Scan(&e.ID, &e.OwnerID, &author, &e.Title, &cents, &category, &date, &active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d has malformed date %q: %w", e.ID, date, err)
	}
	e.AuthorID = author.Int64
	e.Amount = core.AmountFromCents(cents)
	e.Category = core.Category(category)
	e.Date = d
	e.IsActive = active == 1
	e.CreatedAt = time.Unix(created, 0).UTC()
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	return e, nil
}
