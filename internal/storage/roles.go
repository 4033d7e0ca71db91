package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"expensetracker/internal/core"
)

// ProvisionRoles creates the fixed roles and permissions and links them as
// core.RolePermissions declares. Safe to run on every startup.
func (r *SQLiteRepository) ProvisionRoles(ctx context.Context) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, role := range core.Roles() {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO roles (name) VALUES (?)`, string(role)); err != nil {
				return fmt.Errorf("insert role %s: %w", role, err)
			}
		}
		for _, perm := range core.Permissions() {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO permissions (codename) VALUES (?)`, string(perm)); err != nil {
				return fmt.Errorf("insert permission %s: %w", perm, err)
			}
		}
		for role, perms := range core.RolePermissions {
			for _, perm := range perms {
				_, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO role_permissions (role_id, permission_id)
					SELECT r.id, p.id FROM roles r, permissions p
					WHERE r.name = ? AND p.codename = ?`,
					string(role), string(perm))
				if err != nil {
					return fmt.Errorf("grant %s to %s: %w", perm, role, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("provision roles: %w", err)
	}

	slog.InfoContext(ctx, "Roles provisioned", "roles", len(core.RolePermissions))
	return nil
}

// RolePermissions reads the persisted role to permission links.
func (r *SQLiteRepository) RolePermissions(ctx context.Context) (map[core.Role][]core.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name, p.codename
		FROM role_permissions rp
		JOIN roles r ON r.id = rp.role_id
		JOIN permissions p ON p.id = rp.permission_id
		ORDER BY r.name, p.id`)
	if err != nil {
		return nil, fmt.Errorf("query role permissions: %w", err)
	}
	defer rows.Close()

	out := make(map[core.Role][]core.Permission)
	for rows.Next() {
		var role, perm string
		if err := rows.Scan(&role, &perm); err != nil {
			return nil, fmt.Errorf("scan role permission: %w", err)
		}
		out[core.Role(role)] = append(out[core.Role(role)], core.Permission(perm))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role permissions: %w", err)
	}
	return out, nil
}

// AssignRole adds userID to role. Assigning an existing role is a no-op.
func (r *SQLiteRepository) AssignRole(ctx context.Context, userID int64, role core.Role) error {
	return assignRole(ctx, r.db, userID, role)
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func assignRole(ctx context.Context, db dbtx, userID int64, role core.Role) error {
	res, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_roles (user_id, role_id)
		SELECT ?, id FROM roles WHERE name = ?`,
		userID, string(role))
	if err != nil {
		return fmt.Errorf("assign role %s to user %d: %w", role, userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either already assigned or the role is not provisioned.
		var exists int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE name = ?`, string(role)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check role %s: %w", role, err)
		}
		if exists == 0 {
			return fmt.Errorf("role %s not provisioned: %w", role, core.ErrNotFound)
		}
	}
	return nil
}
