// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	authpg "github.com/matchbook-app/matchbook/internal/auth/postgres"
	"github.com/matchbook-app/matchbook/internal/config"
	"github.com/matchbook-app/matchbook/internal/store"
)

// NewCleanupCmd creates the cleanup subcommand.
func NewCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired tokens and sessions",
		Long: `Delete all expired single-use tokens and web sessions. The serve
process does this periodically; cleanup is the one-shot version for cron.`,
		RunE: runCleanup,
	}

	cmd.Flags().String("database_url", "", "PostgreSQL connection URL")

	return cmd
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokens, err := authpg.NewTokenRepository(pool).DeleteExpired(ctx)
	if err != nil {
		return err
	}
	sessions, err := authpg.NewWebSessionRepository(pool).DeleteExpired(ctx)
	if err != nil {
		return err
	}

	cmd.Println(fmt.Sprintf("Deleted %d expired tokens, %d expired sessions", tokens, sessions))
	return nil
}
