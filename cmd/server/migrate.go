package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-accounts/internal/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := database.New(cmd.Context(), database.Options{URL: cfg.DatabaseURL, MaxConns: 1, MinConns: 0})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			return db.Migrate(cmd.Context(), args[0])
		},
	}
}
