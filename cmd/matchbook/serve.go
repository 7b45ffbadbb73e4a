// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matchbook-app/matchbook/internal/auth"
	authpg "github.com/matchbook-app/matchbook/internal/auth/postgres"
	"github.com/matchbook-app/matchbook/internal/config"
	"github.com/matchbook-app/matchbook/internal/logging"
	"github.com/matchbook-app/matchbook/internal/mail"
	"github.com/matchbook-app/matchbook/internal/observability"
	"github.com/matchbook-app/matchbook/internal/store"
)

// janitorInterval is how often expired tokens and sessions are purged.
const janitorInterval = time.Hour

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth service",
		Long: `Start the auth service: connects to PostgreSQL, serves metrics and
health probes, and periodically purges expired tokens and sessions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Flag names match config keys so they layer over the config file.
	cmd.Flags().String("database_url", "", "PostgreSQL connection URL")
	cmd.Flags().String("base_url", "", "public base URL used in emailed links")
	cmd.Flags().String("metrics_addr", "", "metrics/health HTTP address")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("matchbook", cmd.Root().Version, cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		return pool.Ping(ctx) == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			slog.Error("observability server shutdown failed", "error", stopErr)
		}
	}()

	tokens, sessions, err := buildAuth(cfg, pool, obsServer.Metrics())
	if err != nil {
		return err
	}

	slog.Info("matchbook ready",
		"metrics_addr", obsServer.Addr(),
		"base_url", cfg.BaseURL,
	)

	janitor := time.NewTicker(janitorInterval)
	defer janitor.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case serveErr, ok := <-obsErrCh:
			if ok && serveErr != nil {
				return serveErr
			}
		case <-janitor.C:
			purgeExpired(ctx, tokens, sessions)
		}
	}
}

// buildAuth wires the repositories, services, and action facade, and returns
// the repositories the janitor loop purges. The facade itself is constructed
// here so a bad base URL or hasher config fails at startup, not on the first
// request; the HTTP layer that mounts it lives outside this binary.
func buildAuth(cfg *config.Config, pool authpg.Pool, metrics *observability.Metrics) (auth.TokenRepository, auth.WebSessionRepository, error) {
	users := authpg.NewUserRepository(pool)
	tokens := authpg.NewTokenRepository(pool)
	sessions := authpg.NewWebSessionRepository(pool)

	hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:    cfg.Auth.Argon2.Time,
		Memory:  cfg.Auth.Argon2.Memory,
		Threads: cfg.Auth.Argon2.Threads,
	})

	svc, err := auth.NewServiceWithSessionTTL(users, sessions, hasher, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, nil, err
	}

	tokenSvc, err := auth.NewTokenService(users, tokens, hasher, auth.TokenTTLs{
		EmailVerification: cfg.Auth.VerificationTTL,
		PasswordReset:     cfg.Auth.ResetTTL,
	})
	if err != nil {
		return nil, nil, err
	}

	links, err := mail.NewLinkBuilder(cfg.BaseURL)
	if err != nil {
		return nil, nil, err
	}

	if _, err := auth.NewActionsWithRecorder(svc, tokenSvc, mail.NewConsoleSender(nil), links, slog.Default(), metrics); err != nil {
		return nil, nil, err
	}

	return tokens, sessions, nil
}

// purgeExpired deletes expired tokens and sessions. Failures are logged and
// retried on the next tick.
func purgeExpired(ctx context.Context, tokens auth.TokenRepository, sessions auth.WebSessionRepository) {
	if n, err := tokens.DeleteExpired(ctx); err != nil {
		slog.Error("expired token purge failed", "error", err)
	} else if n > 0 {
		slog.Info("purged expired tokens", "count", n)
	}

	if n, err := sessions.DeleteExpired(ctx); err != nil {
		slog.Error("expired session purge failed", "error", err)
	} else if n > 0 {
		slog.Info("purged expired sessions", "count", n)
	}
}
