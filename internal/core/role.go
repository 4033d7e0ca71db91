package core

import "time"

// Role is a fixed group a user can belong to.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleManager Role = "Manager"
	RoleUser    Role = "User"
)

// Permission is a right on expense records.
type Permission string

const (
	PermAddExpense    Permission = "add_expense"
	PermChangeExpense Permission = "change_expense"
	PermDeleteExpense Permission = "delete_expense"
	PermViewExpense   Permission = "view_expense"
)

// RolePermissions is the fixed group to permission policy. Storage
// provisioning and request gates both read it; nothing mutates it at runtime.
var RolePermissions = map[Role][]Permission{
	RoleAdmin:   {PermAddExpense, PermChangeExpense, PermDeleteExpense, PermViewExpense},
	RoleManager: {PermAddExpense, PermChangeExpense, PermViewExpense},
	RoleUser:    {PermViewExpense},
}

// Roles returns the provisioned roles in a stable order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleUser}
}

// Permissions returns every known permission in a stable order.
func Permissions() []Permission {
	return []Permission{PermAddExpense, PermChangeExpense, PermDeleteExpense, PermViewExpense}
}

// ParseRole matches s exactly against the known roles.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []Role
	IsSuperuser  bool
	IsActive     bool
	DateJoined   time.Time
}

func (u User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether any of the user's roles grants p.
// Superusers hold every permission.
func (u User) HasPermission(p Permission) bool {
	if u.IsSuperuser {
		return true
	}
	for _, r := range u.Roles {
		for _, granted := range RolePermissions[r] {
			if granted == p {
				return true
			}
		}
	}
	return false
}

// ManagePermission is the policy entry behind the manager gate. Exactly the
// Admin and Manager roles hold it.
const ManagePermission = PermAddExpense

// CanManageExpenses gates every operation except the plain listing.
func (u User) CanManageExpenses() bool {
	return u.HasPermission(ManagePermission)
}

// SeesAllExpenses reports whether the listing is unscoped for this user.
func (u User) SeesAllExpenses() bool {
	return u.HasRole(RoleAdmin)
}
