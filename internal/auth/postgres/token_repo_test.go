// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchbook-app/matchbook/internal/auth"
	"github.com/matchbook-app/matchbook/internal/auth/postgres"
)

func newTestToken(t *testing.T, tokenType auth.TokenType) *auth.Token {
	t.Helper()
	token, err := auth.NewToken("ada@example.com", tokenType, "hash123", time.Now().Add(time.Hour))
	require.NoError(t, err)
	return token
}

func TestTokenRepository_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts token", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		token := newTestToken(t, auth.TokenTypeEmailVerification)
		mock.ExpectExec(`INSERT INTO auth_tokens`).
			WithArgs(token.TokenHash, token.Email, string(token.Type), token.ExpiresAt, token.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := postgres.NewTokenRepository(mock)
		require.NoError(t, repo.Upsert(ctx, token))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		token := newTestToken(t, auth.TokenTypePasswordReset)
		mock.ExpectExec(`INSERT INTO auth_tokens`).
			WithArgs(token.TokenHash, token.Email, string(token.Type), token.ExpiresAt, token.CreatedAt).
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewTokenRepository(mock)
		upsertErr := repo.Upsert(ctx, token)
		require.Error(t, upsertErr)
		assert.Contains(t, upsertErr.Error(), "connection refused")
	})
}

func TestTokenRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("returns token", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expiresAt := time.Now().Add(time.Hour)
		createdAt := time.Now()
		rows := pgxmock.NewRows([]string{"token_hash", "email", "token_type", "expires_at", "created_at"}).
			AddRow("hash123", "ada@example.com", "password_reset", expiresAt, createdAt)
		mock.ExpectQuery(`SELECT token_hash, email, token_type, expires_at, created_at`).
			WithArgs("hash123").
			WillReturnRows(rows)

		repo := postgres.NewTokenRepository(mock)
		token, getErr := repo.GetByTokenHash(ctx, "hash123")
		require.NoError(t, getErr)
		assert.Equal(t, "ada@example.com", token.Email)
		assert.Equal(t, auth.TokenTypePasswordReset, token.Type)
	})

	t.Run("maps missing row to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"token_hash", "email", "token_type", "expires_at", "created_at"})
		mock.ExpectQuery(`SELECT token_hash, email, token_type, expires_at, created_at`).
			WithArgs("missing").
			WillReturnRows(rows)

		repo := postgres.NewTokenRepository(mock)
		token, getErr := repo.GetByTokenHash(ctx, "missing")
		require.Error(t, getErr)
		assert.Nil(t, token)
		assert.ErrorIs(t, getErr, auth.ErrNotFound)
	})
}

func TestTokenRepository_Consume(t *testing.T) {
	ctx := context.Background()

	t.Run("claims and returns token", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expiresAt := time.Now().Add(time.Hour)
		createdAt := time.Now()
		rows := pgxmock.NewRows([]string{"token_hash", "email", "token_type", "expires_at", "created_at"}).
			AddRow("hash123", "ada@example.com", "email_verification", expiresAt, createdAt)
		mock.ExpectQuery(`DELETE FROM auth_tokens`).
			WithArgs("hash123").
			WillReturnRows(rows)

		repo := postgres.NewTokenRepository(mock)
		token, consumeErr := repo.Consume(ctx, "hash123")
		require.NoError(t, consumeErr)
		assert.Equal(t, auth.TokenTypeEmailVerification, token.Type)
	})

	t.Run("losing racer gets ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"token_hash", "email", "token_type", "expires_at", "created_at"})
		mock.ExpectQuery(`DELETE FROM auth_tokens`).
			WithArgs("hash123").
			WillReturnRows(rows)

		repo := postgres.NewTokenRepository(mock)
		token, consumeErr := repo.Consume(ctx, "hash123")
		require.Error(t, consumeErr)
		assert.Nil(t, token)
		assert.ErrorIs(t, consumeErr, auth.ErrNotFound)
	})
}

func TestTokenRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deleting absent token is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM auth_tokens WHERE token_hash`).
			WithArgs("missing").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := postgres.NewTokenRepository(mock)
		require.NoError(t, repo.Delete(ctx, "missing"))
	})
}

func TestTokenRepository_DeleteByEmail(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM auth_tokens WHERE LOWER\(email\)`).
		WithArgs("ada@example.com", "password_reset").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	repo := postgres.NewTokenRepository(mock)
	require.NoError(t, repo.DeleteByEmail(ctx, "ada@example.com", auth.TokenTypePasswordReset))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM auth_tokens WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	repo := postgres.NewTokenRepository(mock)
	count, delErr := repo.DeleteExpired(ctx)
	require.NoError(t, delErr)
	assert.Equal(t, int64(3), count)
}
