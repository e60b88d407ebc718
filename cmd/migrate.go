package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/elephant/db"
	"github.com/koopa0/elephant/internal/config"
	"github.com/koopa0/elephant/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded schema migrations to the configured PostgreSQL
database. Safe to run repeatedly; already-applied migrations are skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations applied",
		"host", cfg.PostgresHost, "database", cfg.PostgresDBName)
	return nil
}
