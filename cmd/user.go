package cmd

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/inovacc/gitkeeper/internal/config"
	"github.com/inovacc/gitkeeper/internal/store"
	"github.com/inovacc/gitkeeper/internal/store/sqlite"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API user accounts",
	Long:  `Add, update, remove and list the operator accounts allowed to authenticate against the HTTP API.`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username> [password]",
	Short: "Create or replace a user",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withUserStore(func(st *sqlite.Store) error {
			hash, err := passwordHash(args)
			if err != nil {
				return err
			}
			if err := st.UpsertUser(args[0], hash); err != nil {
				return fmt.Errorf("failed to save user: %w", err)
			}
			_, _ = fmt.Fprintf(os.Stdout, "User '%s' saved\n", args[0])
			return nil
		})
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update <username> [password]",
	Short: "Change an existing user's password",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withUserStore(func(st *sqlite.Store) error {
			hash, err := passwordHash(args)
			if err != nil {
				return err
			}
			if err := st.UpdateUserPassword(args[0], hash); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					_, _ = fmt.Fprintf(os.Stdout, "User '%s' not found\n", args[0])
					return nil
				}
				return fmt.Errorf("failed to update user: %w", err)
			}
			_, _ = fmt.Fprintf(os.Stdout, "Password updated for '%s'\n", args[0])
			return nil
		})
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withUserStore(func(st *sqlite.Store) error {
			if err := st.DeleteUser(args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					_, _ = fmt.Fprintf(os.Stdout, "User '%s' not found\n", args[0])
					return nil
				}
				return fmt.Errorf("failed to remove user: %w", err)
			}
			_, _ = fmt.Fprintf(os.Stdout, "User '%s' removed\n", args[0])
			return nil
		})
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withUserStore(func(st *sqlite.Store) error {
			users, err := st.ListUsers()
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			if len(users) == 0 {
				_, _ = fmt.Fprintln(os.Stdout, "No users found")
				return nil
			}
			for _, u := range users {
				_, _ = fmt.Fprintf(os.Stdout, "%s\t(created %s)\n", u.Username, u.CreatedAt.Format("2006-01-02"))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(userRemoveCmd)
	userCmd.AddCommand(userListCmd)
}

// withUserStore opens the configured database for the duration of one
// user-admin operation.
func withUserStore(fn func(*sqlite.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = st.Close() }()

	return fn(st)
}

// passwordHash bcrypt-hashes the password argument, prompting on the
// terminal when it was omitted.
func passwordHash(args []string) (string, error) {
	var password string
	if len(args) > 1 {
		password = args[1]
	} else {
		_, _ = fmt.Fprint(os.Stdout, "Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		_, _ = fmt.Fprintln(os.Stdout)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	if password == "" {
		return "", errors.New("password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}
