// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// TokenType distinguishes what a single-use token authorizes.
type TokenType string

// Supported token types.
const (
	TokenTypeEmailVerification TokenType = "email_verification"
	TokenTypePasswordReset     TokenType = "password_reset"
)

// Token configuration.
const (
	// TokenBytes is the entropy of a token secret. 32 bytes = 64 hex chars.
	TokenBytes = 32

	// DefaultVerificationTTL is the default lifetime of an
	// email-verification token.
	DefaultVerificationTTL = 24 * time.Hour

	// DefaultResetTTL is the default lifetime of a password-reset token.
	DefaultResetTTL = time.Hour
)

// Token represents a single-use, expiring grant bound to an email address.
// Only the SHA-256 hash of the secret is stored; the plaintext exists just
// long enough to be mailed to the owner.
//
// At most one live token exists per (email, type) pair. Issuing a new token
// for the pair supersedes any prior one.
type Token struct {
	TokenHash string
	Email     string
	Type      TokenType
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewToken creates a validated Token from a secret hash.
func NewToken(email string, tokenType TokenType, tokenHash string, expiresAt time.Time) (*Token, error) {
	if email == "" {
		return nil, oops.Code("TOKEN_INVALID_EMAIL").Errorf("token email cannot be empty")
	}
	if tokenType != TokenTypeEmailVerification && tokenType != TokenTypePasswordReset {
		return nil, oops.Code("TOKEN_INVALID_TYPE").
			With("type", string(tokenType)).
			Errorf("unknown token type")
	}
	if tokenHash == "" {
		return nil, oops.Code("TOKEN_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &Token{
		TokenHash: tokenHash,
		Email:     email,
		Type:      tokenType,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpired returns true if the token has expired.
func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsExpiredAt returns true if the token would be expired at the given time.
// Useful for testing with deterministic time values.
func (t *Token) IsExpiredAt(at time.Time) bool {
	return at.After(t.ExpiresAt)
}

// GenerateToken creates a secure random token secret and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the user; the hash is stored in the database.
func GenerateToken() (token, hash string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashToken(token)

	return token, hash, nil
}

// HashToken computes the SHA-256 hash of a token secret.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashToken(token)
	// Both are hex-encoded SHA256 hashes (64 chars), use constant-time compare
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// TokenRepository manages single-use token persistence.
//
// Uniqueness on (email, type) is the store's job and is what serializes
// concurrent issuance across instances; no in-process locking is involved.
type TokenRepository interface {
	// Upsert inserts a token, replacing any existing token for the same
	// (email, type) pair in a single atomic statement.
	Upsert(ctx context.Context, token *Token) error

	// GetByTokenHash retrieves a token by its secret hash without
	// consuming it.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Token, error)

	// Consume atomically claims and deletes a token by its secret hash.
	// When two redemptions race, at most one observes the token; the
	// other gets a wrapped ErrNotFound.
	Consume(ctx context.Context, tokenHash string) (*Token, error)

	// Delete removes a token by its secret hash. Deleting an absent token
	// is not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteByEmail removes all tokens of the given type for an email.
	DeleteByEmail(ctx context.Context, email string, tokenType TokenType) error

	// DeleteExpired removes all expired tokens and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
