package main

import (
	"fmt"

	"github.com/hairizuanbinnoorazman/security-e2e/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run history migration commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryDB(func(h *history, driver string) error {
				sqlDB, err := h.db.DB()
				if err != nil {
					return fmt.Errorf("failed to get database instance: %w", err)
				}
				if err := database.RunMigrations(sqlDB, driver); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
				printMessage("Migrations applied successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryDB(func(h *history, driver string) error {
				sqlDB, err := h.db.DB()
				if err != nil {
					return fmt.Errorf("failed to get database instance: %w", err)
				}
				if err := database.RollbackMigration(sqlDB, driver); err != nil {
					return fmt.Errorf("failed to rollback migration: %w", err)
				}
				printMessage("Migration rolled back successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryDB(func(h *history, driver string) error {
				sqlDB, err := h.db.DB()
				if err != nil {
					return fmt.Errorf("failed to get database instance: %w", err)
				}
				version, dirty, err := database.Version(sqlDB, driver)
				if err != nil {
					return fmt.Errorf("failed to read schema version: %w", err)
				}
				if flagJSON {
					printJSON(map[string]interface{}{"version": version, "dirty": dirty})
					return nil
				}
				msg := fmt.Sprintf("Schema version %d", version)
				if dirty {
					msg += " (dirty)"
				}
				printMessage(msg)
				return nil
			})
		},
	})

	return cmd
}

// withHistoryDB opens the run history without migrating and hands it to fn.
func withHistoryDB(fn func(h *history, driver string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := openHistory(cfg, false, newLogger(cfg))
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h, cfg.Database.Driver)
}
