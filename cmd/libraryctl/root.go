package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-lending/internal/app"
	"library-lending/internal/config"
	"library-lending/internal/logger"
	"library-lending/internal/model"
	"library-lending/internal/service"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Run and operate the library lending service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newCreateUserCommand(),
		newTokenCommand(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.New(os.Stderr, cfg.LogFormat, cfg.LogLevel))
	return cfg, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return application.Run()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != "postgres" {
				return fmt.Errorf("migrate needs STORE_DRIVER=postgres")
			}

			// Opening the stores ensures the schema.
			stores, err := app.OpenStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			stores.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo librarian and member accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(svc *app.Services) error {
				if err := app.SeedDemoUsers(cmd.Context(), svc.Users); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "demo users are present")
				return nil
			})
		},
	}
}

func newCreateUserCommand() *cobra.Command {
	var (
		name         string
		email        string
		role         string
		membershipID string
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user, prompting for the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password cannot be empty")
			}

			// The operator acts with librarian rights.
			operator := &model.Principal{Identifier: "libraryctl", Roles: []model.Role{model.RoleLibrarian}}

			return withServices(cmd.Context(), func(svc *app.Services) error {
				user, err := svc.Users.Register(cmd.Context(), model.RegisterRequest{
					Name:         name,
					Email:        email,
					MembershipID: membershipID,
					Password:     password,
					Role:         role,
				}, operator)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, %s)\n", user.ID, user.Email, user.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "member", "member or librarian")
	cmd.Flags().StringVar(&membershipID, "membership-id", "", "membership id (generated when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(svc *app.Services) error {
				user, err := svc.Users.GetByEmail(cmd.Context(), email)
				if err != nil {
					return err
				}

				token, err := svc.Tokens.IssueAccessFor(service.PrincipalFromUser(user))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token.Value)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func withServices(ctx context.Context, fn func(svc *app.Services) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	svc, _, err := app.NewServices(cfg, stores)
	if err != nil {
		return err
	}
	return fn(svc)
}

func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		var line string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
