package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eventhub/internal/auth"
	"eventhub/internal/model"
	"eventhub/internal/reconciler"
	"eventhub/internal/repo"
)

const minPasswordLen = 8

type userStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	SetPassword(ctx context.Context, userID int64, hash string) error
	SetStaff(ctx context.Context, userID int64, staff bool) error
}

type migrator interface {
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
	MigrationStatus(migrationsDir string) error
}

type commandLine struct {
	users         userStore
	migrator      migrator
	reconcile     func(ctx context.Context) (*reconciler.Report, error)
	migrationsDir string
	readPassword  func(fd int) ([]byte, error)
	close         func()
}

func newRootCmd(open func(v *viper.Viper) (*commandLine, error)) *cobra.Command {
	var (
		cfgPath string
		cli     *commandLine
	)
	root := &cobra.Command{
		Use:          "eventhub-admin",
		Short:        "Maintenance commands for the eventhub backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			cli, err = open(v)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cli != nil && cli.close != nil {
				cli.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to the server config file")

	get := func() *commandLine { return cli }
	root.AddCommand(migrateCmd(get), reconcileCmd(get), createAdminCmd(get), resetPasswordCmd(get))
	return root
}

func migrateCmd(cli func() *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Apply, roll back or list database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cli()
			switch args[0] {
			case "up":
				return c.migrator.MigrateUp(c.migrationsDir)
			case "down":
				return c.migrator.MigrateDown(c.migrationsDir)
			case "status":
				return c.migrator.MigrationStatus(c.migrationsDir)
			}
			return fmt.Errorf("unknown migrate command %q", args[0])
		},
	}
}

func reconcileCmd(cli func() *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Verify pending gateway payments and expire stale ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := cli().reconcile(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func createAdminCmd(cli func() *commandLine) *cobra.Command {
	var email, password, first, last string
	cmd := &cobra.Command{
		Use:   "createadmin",
		Short: "Create a staff user or promote an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cli()
			pwd, err := c.password(cmd, password)
			if err != nil {
				return err
			}
			id, created, err := c.createAdmin(cmd.Context(), email, pwd, first, last)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", email, id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "promoted %s (id %d) to admin\n", email, id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "password, prompted when empty")
	cmd.Flags().StringVar(&first, "first-name", "Admin", "first name for a new user")
	cmd.Flags().StringVar(&last, "last-name", "", "last name for a new user")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func resetPasswordCmd(cli func() *commandLine) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Set a user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cli()
			pwd, err := c.password(cmd, password)
			if err != nil {
				return err
			}
			if err := c.resetPassword(cmd.Context(), email, pwd); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&password, "password", "", "new password, prompted when empty")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// password returns flagValue or reads one from the terminal.
func (c *commandLine) password(cmd *cobra.Command, flagValue string) (string, error) {
	pwd := flagValue
	if pwd == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Enter password: ")
		raw, err := c.readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		pwd = string(raw)
	}
	if len(pwd) < minPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return pwd, nil
}

func (c *commandLine) createAdmin(ctx context.Context, email, pwd, first, last string) (int64, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := auth.HashPassword(pwd)
	if err != nil {
		return 0, false, err
	}

	u, err := c.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repo.ErrUserNotFound):
		id, err := c.users.CreateUser(ctx, &model.User{
			Email:        email,
			PasswordHash: hash,
			FirstName:    first,
			LastName:     last,
			IsActive:     true,
			IsStaff:      true,
		})
		return id, true, err
	case err != nil:
		return 0, false, err
	}

	if err := c.users.SetPassword(ctx, u.ID, hash); err != nil {
		return 0, false, err
	}
	if err := c.users.SetStaff(ctx, u.ID, true); err != nil {
		return 0, false, err
	}
	return u.ID, false, nil
}

func (c *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	u, err := c.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pwd)
	if err != nil {
		return err
	}
	return c.users.SetPassword(ctx, u.ID, hash)
}
