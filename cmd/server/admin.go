package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"go-accounts/internal/app"
	"go-accounts/internal/cache"
	"go-accounts/internal/database"
	"go-accounts/internal/event"
	"go-accounts/internal/metrics"
	"go-accounts/internal/model"
	"go-accounts/internal/repository"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func newCreateAdminCommand() *cobra.Command {
	var req model.RegisterRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			password, err := promptPassword(cmd.ErrOrStderr(), int(os.Stdin.Fd()))
			if err != nil {
				return err
			}
			req.Password = password

			db, err := database.New(cmd.Context(), database.Options{URL: cfg.DatabaseURL, MaxConns: 2, MinConns: 0})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			svc, err := app.NewServices(cfg, repository.NewPostgresStore(db.Pool), cache.NoopVersionCache{}, event.NewBus(), metrics.New(), nil)
			if err != nil {
				return err
			}

			user, err := svc.Auth.CreateUser(cmd.Context(), req, []string{model.RoleUser, model.RoleAdmin})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created admin %q (id %d)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "Administrator username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Administrator email")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "Optional first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Optional last name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// promptPassword reads the password twice without echo and requires both
// entries to match.
func promptPassword(w io.Writer, fd int) (string, error) {
	fmt.Fprint(w, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(w, "Confirm password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if len(first) == 0 {
		return "", errors.New("password must not be empty")
	}
	if !bytes.Equal(first, second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
