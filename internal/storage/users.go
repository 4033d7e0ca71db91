package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expensetracker/internal/core"
)

const userColumns = `id, username, email, password_hash, is_superuser, is_active, date_joined`

// CreateUser inserts u together with its roles and returns the new ID.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	joined := u.DateJoined
	if joined.IsZero() {
		joined = r.now()
	}

	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, email, password_hash, is_superuser, is_active, date_joined)
			VALUES (?, ?, ?, ?, 1, ?)`,
			u.Username, u.Email, u.PasswordHash, boolToInt(u.IsSuperuser), joined.Unix())
		if err != nil {
			if isUniqueViolation(err) {
				return core.ErrUsernameTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read user id: %w", err)
		}
		for _, role := range u.Roles {
			if err := assignRole(ctx, tx, id, role); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "User created", "user_id", id, "username", u.Username, "roles", u.Roles)
	return id, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.loadUser(ctx, row)
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return r.loadUser(ctx, row)
}

// ListUsers returns every account ordered by username.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	rows.Close()

	for i := range users {
		roles, err := r.userRoles(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Roles = roles
	}
	return users, nil
}

// SetSuperuser toggles the superuser flag.
func (r *SQLiteRepository) SetSuperuser(ctx context.Context, userID int64, superuser bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_superuser = ? WHERE id = ?`, boolToInt(superuser), userID)
	if err != nil {
		return fmt.Errorf("update superuser flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SetPassword replaces the stored password hash.
func (r *SQLiteRepository) SetPassword(ctx context.Context, userID int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) loadUser(ctx context.Context, row *sql.Row) (core.User, error) {
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, err
	}
	roles, err := r.userRoles(ctx, u.ID)
	if err != nil {
		return core.User{}, err
	}
	u.Roles = roles
	return u, nil
}

func (r *SQLiteRepository) userRoles(ctx context.Context, userID int64) ([]core.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	var roles []core.Role
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, core.Role(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}
	return roles, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (core.User, error) {
	var (
		u                 core.User
		superuser, active int
		joined            int64
	)
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &superuser, &active, &joined)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.IsSuperuser = superuser == 1
	u.IsActive = active == 1
	u.DateJoined = time.Unix(joined, 0).UTC()
	return u, nil
}
