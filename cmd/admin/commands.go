package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"expensetracker/internal/auth"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

type adminOptions struct {
	dbPath   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &adminOptions{}
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Expense tracker administration",
		Long:          `Manage roles and user accounts directly in the expense tracker database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
			cli.SetupLogger(opts.logLevel)
			if opts.dbPath == "" {
				opts.dbPath = config.Load().SQLiteDBPath
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log", "warn", "sets the log level")

	root.AddCommand(
		newProvisionRolesCmd(opts),
		newCreateUserCmd(opts),
		newAssignRoleCmd(opts),
		newSetPasswordCmd(opts),
		newListUsersCmd(opts),
	)
	return root
}

// withRepo opens the database with roles provisioned and closes it after fn.
func withRepo(ctx context.Context, opts *adminOptions, fn func(*storage.SQLiteRepository) error) error {
	repo, err := storage.NewSQLiteRepository(opts.dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.ProvisionRoles(ctx); err != nil {
		return err
	}
	return fn(repo)
}

func newProvisionRolesCmd(opts *adminOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision-roles",
		Short: "Create the Admin, Manager and User roles with their permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), opts, func(repo *storage.SQLiteRepository) error {
				perms, err := repo.RolePermissions(cmd.Context())
				if err != nil {
					return err
				}
				for _, role := range core.Roles() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", role, joinPermissions(perms[role]))
				}
				return nil
			})
		},
	}
}

func newCreateUserCmd(opts *adminOptions) *cobra.Command {
	var (
		email     string
		password  string
		roleNames []string
		superuser bool
	)
	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create an account with the given roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := parseRoles(roleNames)
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("a password is required: pass --password or set ADMIN_PASSWORD")
			}
			return withRepo(cmd.Context(), opts, func(repo *storage.SQLiteRepository) error {
				u, err := auth.NewService(repo, auth.Options{}).CreateUser(cmd.Context(), args[0], email, password, roles, superuser)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address reports are sent to")
	cmd.Flags().StringVar(&password, "password", "", "initial password (default $ADMIN_PASSWORD)")
	cmd.Flags().StringSliceVar(&roleNames, "role", []string{string(core.RoleUser)}, "role to grant, repeatable")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant every permission")
	return cmd
}

func newAssignRoleCmd(opts *adminOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-role <username> <role>",
		Short: "Add a role to an existing account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := parseRoles([]string{args[1]})
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), opts, func(repo *storage.SQLiteRepository) error {
				u, err := lookupUser(cmd.Context(), repo, args[0])
				if err != nil {
					return err
				}
				if err := repo.AssignRole(cmd.Context(), u.ID, roles[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "assigned %s to %s\n", roles[0], u.Username)
				return nil
			})
		},
	}
}

func newSetPasswordCmd(opts *adminOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <username> <password>",
		Short: "Replace an account's password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), opts, func(repo *storage.SQLiteRepository) error {
				u, err := lookupUser(cmd.Context(), repo, args[0])
				if err != nil {
					return err
				}
				hash, err := auth.NewService(repo, auth.Options{}).HashPassword(args[1])
				if err != nil {
					return err
				}
				if err := repo.SetPassword(cmd.Context(), u.ID, hash); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", u.Username)
				return nil
			})
		},
	}
}

func newListUsersCmd(opts *adminOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "Print every account with its roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), opts, func(repo *storage.SQLiteRepository) error {
				users, err := repo.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLES\tSUPERUSER\tACTIVE")
				for _, u := range users {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%t\n", u.ID, u.Username, u.Email, joinRoles(u.Roles), u.IsSuperuser, u.IsActive)
				}
				return tw.Flush()
			})
		},
	}
}

func lookupUser(ctx context.Context, repo *storage.SQLiteRepository, username string) (core.User, error) {
	u, err := repo.GetUserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("no user named %q", username)
	}
	return u, err
}

func parseRoles(names []string) ([]core.Role, error) {
	roles := make([]core.Role, 0, len(names))
	for _, name := range names {
		role, ok := core.ParseRole(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown role %q: must be one of %s", name, joinRoles(core.Roles()))
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func joinRoles(roles []core.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func joinPermissions(perms []core.Permission) string {
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}
