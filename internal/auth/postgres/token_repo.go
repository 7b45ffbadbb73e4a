// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/matchbook-app/matchbook/internal/auth"
)

// TokenRepository implements auth.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Upsert inserts a token, replacing any existing token for the same
// (email, token_type) pair. The single statement rides the UNIQUE
// constraint, so concurrent issuers cannot leave two live tokens behind.
func (r *TokenRepository) Upsert(ctx context.Context, token *auth.Token) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_tokens (token_hash, email, token_type, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email, token_type) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`,
		token.TokenHash,
		token.Email,
		string(token.Type),
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("TOKEN_UPSERT_FAILED").
			With("operation", "upsert token").
			With("type", string(token.Type)).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a token without consuming it.
func (r *TokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Token, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT token_hash, email, token_type, expires_at, created_at
		FROM auth_tokens
		WHERE token_hash = $1
	`, tokenHash)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}
	return token, nil
}

// Consume atomically claims and deletes a token. The DELETE ... RETURNING
// is the claim: of two racing redemptions exactly one gets the row, the
// other a wrapped auth.ErrNotFound.
func (r *TokenRepository) Consume(ctx context.Context, tokenHash string) (*auth.Token, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM auth_tokens
		WHERE token_hash = $1
		RETURNING token_hash, email, token_type, expires_at, created_at
	`, tokenHash)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_CONSUME_FAILED").
			With("operation", "consume token").
			Wrap(err)
	}
	return token, nil
}

// Delete removes a token by hash. Deleting an absent token is not an error.
func (r *TokenRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM auth_tokens WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete token").
			Wrap(err)
	}
	return nil
}

// DeleteByEmail removes all tokens of the given type for an email.
func (r *TokenRepository) DeleteByEmail(ctx context.Context, email string, tokenType auth.TokenType) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM auth_tokens WHERE LOWER(email) = LOWER($1) AND token_type = $2
	`, email, string(tokenType))
	if err != nil {
		return oops.Code("TOKEN_DELETE_BY_EMAIL_FAILED").
			With("operation", "delete tokens by email").
			With("type", string(tokenType)).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired tokens and returns the count.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM auth_tokens WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanToken scans a single row into a Token.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *TokenRepository) scanToken(row pgx.Row) (*auth.Token, error) {
	var (
		tokenHash string
		email     string
		tokenType string
		expiresAt time.Time
		createdAt time.Time
	)

	err := row.Scan(&tokenHash, &email, &tokenType, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("TOKEN_SCAN_FAILED").
			With("operation", "scan token").
			Wrap(err)
	}

	return &auth.Token{
		TokenHash: tokenHash,
		Email:     email,
		Type:      auth.TokenType(tokenType),
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.TokenRepository = (*TokenRepository)(nil)
