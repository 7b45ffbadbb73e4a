// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matchbook-app/matchbook/internal/config"
	"github.com/matchbook-app/matchbook/internal/store"
)

// migrateConfig holds configuration for the migrate command.
type migrateConfig struct {
	status bool
	down   bool
	force  int
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply pending database migrations. Use --status to inspect, --down to roll
everything back, or --force to repair a dirty schema version by hand.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.status, "status", false, "show applied and pending migrations without running them")
	cmd.Flags().BoolVar(&cfg.down, "down", false, "roll back all migrations (destructive)")
	cmd.Flags().IntVar(&cfg.force, "force", -1, "set the schema version without running migrations (dirty-state recovery)")
	cmd.Flags().String("database_url", "", "PostgreSQL connection URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, mcfg *migrateConfig) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }() //nolint:errcheck // Best effort on exit

	if mcfg.status {
		return printMigrateStatus(cmd, migrator)
	}

	if cmd.Flags().Changed("force") {
		if err := migrator.Force(mcfg.force); err != nil {
			return err
		}
		cmd.Println(fmt.Sprintf("Schema version forced to %d", mcfg.force))
		return nil
	}

	if mcfg.down {
		cmd.Println("Rolling back all migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback complete")
		return nil
	}

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func printMigrateStatus(cmd *cobra.Command, migrator *store.Migrator) error {
	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Println(fmt.Sprintf("Current version: %d (dirty: %v)", version, dirty))

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	for _, v := range pending {
		name, nameErr := store.MigrationName(v)
		if nameErr != nil {
			return nameErr
		}
		cmd.Println(fmt.Sprintf("Pending: %s", name))
	}
	return nil
}
