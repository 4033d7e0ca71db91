package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.ProvisionRoles(context.Background()))
	return repo
}

func createUser(t *testing.T, repo *SQLiteRepository, username string, roles ...core.Role) int64 {
	t.Helper()
	id, err := repo.CreateUser(context.Background(), core.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Roles:        roles,
	})
	require.NoError(t, err)
	return id
}

func fields(t *testing.T, title, amount string, cat core.Category, date string) core.ExpenseFields {
	t.Helper()
	f, err := core.ExpenseInput{Title: title, Amount: amount, Category: string(cat), Date: date}.Validate()
	require.NoError(t, err)
	return f
}

func TestProvisionRolesIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ProvisionRoles(ctx))
	require.NoError(t, repo.ProvisionRoles(ctx))

	got, err := repo.RolePermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for role, perms := range core.RolePermissions {
		assert.ElementsMatch(t, perms, got[role], "role %s", role)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id := createUser(t, repo, "alice", core.RoleManager)

	u, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsSuperuser)
	assert.Equal(t, []core.Role{core.RoleManager}, u.Roles)

	_, err = repo.CreateUser(ctx, core.User{Username: "alice", PasswordHash: "x"})
	assert.ErrorIs(t, err, core.ErrUsernameTaken)

	_, err = repo.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAssignRoleAndSuperuser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := createUser(t, repo, "bob", core.RoleUser)

	require.NoError(t, repo.AssignRole(ctx, id, core.RoleAdmin))
	require.NoError(t, repo.AssignRole(ctx, id, core.RoleAdmin))
	require.NoError(t, repo.SetSuperuser(ctx, id, true))

	u, err := repo.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.Role{core.RoleUser, core.RoleAdmin}, u.Roles)
	assert.True(t, u.IsSuperuser)

	err = repo.AssignRole(ctx, id, core.Role("Auditor"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, repo.SetSuperuser(ctx, 4242, true), core.ErrNotFound)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestExpenseLifecycleIsOwnerScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := createUser(t, repo, "owner", core.RoleManager)
	other := createUser(t, repo, "other", core.RoleManager)

	e, err := repo.CreateExpense(ctx, owner, fields(t, "Taxi", "12.50", core.CategoryTravel, "2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, owner, e.OwnerID)
	assert.Equal(t, owner, e.AuthorID)
	assert.True(t, e.IsActive)
	assert.Equal(t, "12.50", core.FormatAmount(e.Amount))

	// Another user cannot see, update or delete it.
	_, err = repo.GetActiveExpense(ctx, e.ID, other)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = repo.UpdateExpense(ctx, e.ID, other, other, fields(t, "Hijack", "1", core.CategoryFood, "2024-01-05"))
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.DeactivateExpense(ctx, e.ID, other, other), core.ErrNotFound)

	updated, err := repo.UpdateExpense(ctx, e.ID, owner, owner, fields(t, "Taxi home", "13", core.CategoryTransport, "2024-01-06"))
	require.NoError(t, err)
	assert.Equal(t, "Taxi home", updated.Title)
	assert.Equal(t, "13.00", core.FormatAmount(updated.Amount))
	assert.Equal(t, core.CategoryTransport, updated.Category)
	assert.Equal(t, "2024-01-06", updated.Date.String())

	require.NoError(t, repo.DeactivateExpense(ctx, e.ID, owner, owner))

	// Soft-deleted rows disappear from every read path.
	_, err = repo.GetActiveExpense(ctx, e.ID, owner)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.DeactivateExpense(ctx, e.ID, owner, owner), core.ErrNotFound)
	list, err := repo.ListActiveExpenses(ctx, core.ExpenseFilter{}.ForOwner(owner))
	require.NoError(t, err)
	assert.Empty(t, list)

	// The row is still persisted.
	var active int
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT is_active FROM expenses WHERE id = ?`, e.ID).Scan(&active))
	assert.Equal(t, 0, active)
}

func TestListActiveExpensesMatchesFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createUser(t, repo, "alice", core.RoleAdmin)
	bob := createUser(t, repo, "bob", core.RoleManager)

	seed := []struct {
		owner  int64
		title  string
		amount string
		cat    core.Category
		date   string
	}{
		{alice, "Taxi", "12.50", core.CategoryTravel, "2024-01-05"},
		{alice, "Lunch", "8.00", core.CategoryFood, "2024-01-06"},
		{alice, "Dinner", "30.00", core.CategoryFood, "2024-02-01"},
		{bob, "Train", "45.00", core.CategoryTravel, "2024-01-10"},
		{bob, "Groceries", "60.10", core.CategoryFood, "2024-01-31"},
	}
	var all []core.Expense
	for _, s := range seed {
		e, err := repo.CreateExpense(ctx, s.owner, fields(t, s.title, s.amount, s.cat, s.date))
		require.NoError(t, err)
		all = append(all, e)
	}
	require.NoError(t, repo.DeactivateExpense(ctx, all[2].ID, alice, alice))
	all[2].IsActive = false

	filters := []core.ExpenseFilter{
		{},
		core.ExpenseFilter{}.ForOwner(alice),
		core.ExpenseFilter{}.ForOwner(bob),
		core.NewExpenseFilter("Food", "", ""),
		core.NewExpenseFilter("", "2024-01-06", "2024-01-31"),
		core.NewExpenseFilter("Travel", "2024-01-01", "2024-01-09"),
		core.NewExpenseFilter("Food", "2024-01-01", "").ForOwner(bob),
		core.NewExpenseFilter("travel", "", ""),
		core.NewExpenseFilter("Bogus", "", ""),
	}
	for i, f := range filters {
		got, err := repo.ListActiveExpenses(ctx, f)
		require.NoError(t, err)

		var want []int64
		for _, e := range all {
			if f.Matches(e) {
				want = append(want, e.ID)
			}
		}
		var gotIDs []int64
		for _, e := range got {
			gotIDs = append(gotIDs, e.ID)
		}
		assert.ElementsMatch(t, want, gotIDs, "filter %d", i)
	}

	got, err := repo.ListActiveExpenses(ctx, core.NewExpenseFilter("Bogus", "", ""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := createUser(t, repo, "carol", core.RoleUser)
	now := time.Now()

	require.NoError(t, repo.CreateSession(ctx, "live", id, now.Add(time.Hour)))
	require.NoError(t, repo.CreateSession(ctx, "stale", id, now.Add(-time.Hour)))

	u, err := repo.GetSessionUser(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, "carol", u.Username)
	assert.Equal(t, []core.Role{core.RoleUser}, u.Roles)

	_, err = repo.GetSessionUser(ctx, "stale", now)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.DeleteSession(ctx, "live"))
	_, err = repo.GetSessionUser(ctx, "live", now)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
