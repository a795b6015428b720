package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"academy/internal/adapters/storage"
	"academy/internal/config"
)

// commandContext carries the persistent flags shared by subcommands.
type commandContext struct {
	dbPath string
}

// openDB opens and migrates the database named by --db, or by
// ACADEMY_DB_PATH when the flag is empty.
func (c *commandContext) openDB(ctx context.Context) (*sql.DB, error) {
	path := c.dbPath
	if path == "" {
		cfg, err := config.Parse(nil)
		if err != nil {
			return nil, err
		}
		path = cfg.DBPath
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	if err := storage.MigrateDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "academyctl",
		Short:         "Inspect video sources and manage the lesson catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&ctx.dbPath, "db", "", "SQLite database path (default $ACADEMY_DB_PATH or academy.db)")

	rootCmd.AddCommand(newClassifyCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newHealthCommand(ctx))
	return rootCmd
}
