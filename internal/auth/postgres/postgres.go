// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

// Package postgres implements the auth repositories on PostgreSQL.
//
// Uniqueness and single-use guarantees live in the schema: users carry a
// unique index on LOWER(email), tokens a UNIQUE(email, token_type)
// constraint, and redemption claims rows with DELETE ... RETURNING. The
// repositories translate those outcomes into the auth package's sentinels.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of pgxpool.Pool the repositories use. pgxmock's
// PgxPoolIface satisfies it, so unit tests can run without a database.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
