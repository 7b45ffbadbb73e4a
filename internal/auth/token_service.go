// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// TokenTTLs configures per-type token lifetimes.
type TokenTTLs struct {
	EmailVerification time.Duration
	PasswordReset     time.Duration
}

// DefaultTokenTTLs returns the default token lifetimes.
func DefaultTokenTTLs() TokenTTLs {
	return TokenTTLs{
		EmailVerification: DefaultVerificationTTL,
		PasswordReset:     DefaultResetTTL,
	}
}

// TokenService manages the lifecycle of single-use tokens.
//
// Per (email, type) pair a token moves NONE -> ISSUED and from ISSUED to one
// of consumed, expired, or superseded; all three are terminal for that token
// instance. Issue always wins over an existing live token (supersede), so a
// "resend" request is never blocked.
type TokenService struct {
	users  UserRepository
	tokens TokenRepository
	hasher PasswordHasher
	ttls   TokenTTLs
}

// NewTokenService creates a new TokenService.
func NewTokenService(users UserRepository, tokens TokenRepository, hasher PasswordHasher, ttls TokenTTLs) (*TokenService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("token repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("password hasher is required")
	}
	if ttls.EmailVerification <= 0 {
		ttls.EmailVerification = DefaultVerificationTTL
	}
	if ttls.PasswordReset <= 0 {
		ttls.PasswordReset = DefaultResetTTL
	}
	return &TokenService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		ttls:   ttls,
	}, nil
}

// ttl returns the configured lifetime for a token type.
func (s *TokenService) ttl(tokenType TokenType) time.Duration {
	if tokenType == TokenTypePasswordReset {
		return s.ttls.PasswordReset
	}
	return s.ttls.EmailVerification
}

// Issue generates a token for the given email and type, superseding any
// existing token for the same pair. Returns the plaintext secret (for the
// mail collaborator) and the stored token record.
//
// No token is persisted when the email has no account. Concurrent issues for
// the same pair are serialized by the store's (email, type) uniqueness
// constraint: exactly one row survives.
func (s *TokenService) Issue(ctx context.Context, email string, tokenType TokenType) (string, *Token, error) {
	email = normalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, oops.Code("TOKEN_USER_NOT_FOUND").
				With("email", email).
				Wrap(err)
		}
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	secret, hash, err := GenerateToken()
	if err != nil {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	token, err := NewToken(email, tokenType, hash, time.Now().Add(s.ttl(tokenType)))
	if err != nil {
		return "", nil, err
	}

	if err := s.tokens.Upsert(ctx, token); err != nil {
		return "", nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "upsert token").
			With("type", string(tokenType)).
			Wrap(err)
	}

	return secret, token, nil
}

// Redemption is the successful outcome of redeeming a token.
type Redemption struct {
	Type  TokenType
	Email string
}

// Redeem validates the presented token secret and applies its effect.
//
// Email-verification tokens are consumed here: the token is atomically
// claimed (at most one racer succeeds) and the owner's email-verified
// timestamp is set; if the user write fails the claim is compensated by
// restoring the token, so the two writes are never observable as half done.
//
// Password-reset tokens are validated but left in place; the caller collects
// the new password and completes the flow with ResetPassword, which deletes
// the token only after the password is updated.
//
// Expired tokens are deleted on sight so a later attempt reports not-found
// rather than expired.
func (s *TokenService) Redeem(ctx context.Context, secret string) (*Redemption, error) {
	if secret == "" {
		return nil, oops.Code("TOKEN_NOT_FOUND").Errorf("token cannot be empty")
	}

	hash := HashToken(secret)

	token, err := s.tokens.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_NOT_FOUND").Errorf("invalid token")
		}
		return nil, oops.Code("TOKEN_REDEEM_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}

	if token.IsExpired() {
		// Terminal outcome: remove the token so it cannot be retried.
		_ = s.tokens.Delete(ctx, hash) //nolint:errcheck // Best effort, expiry already decided
		return nil, oops.Code("TOKEN_EXPIRED").Errorf("token has expired")
	}

	if token.Type == TokenTypePasswordReset {
		return &Redemption{Type: token.Type, Email: token.Email}, nil
	}

	return s.consumeEmailVerification(ctx, hash, token)
}

func (s *TokenService) consumeEmailVerification(ctx context.Context, hash string, token *Token) (*Redemption, error) {
	user, err := s.users.GetByEmail(ctx, token.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_USER_NOT_FOUND").
				With("email", token.Email).
				Wrap(err)
		}
		return nil, oops.Code("TOKEN_REDEEM_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	// Claim the token first; the store's delete-if-exists semantics let at
	// most one of two racing redemptions observe success.
	claimed, err := s.tokens.Consume(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_NOT_FOUND").Errorf("invalid token")
		}
		return nil, oops.Code("TOKEN_REDEEM_FAILED").
			With("operation", "consume token").
			Wrap(err)
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID, time.Now()); err != nil {
		// Compensate: restore the claimed token so the redemption can be
		// retried. Upsert is the supersede primitive, so the restore is
		// itself race-safe.
		_ = s.tokens.Upsert(ctx, claimed) //nolint:errcheck // Best effort restore
		return nil, oops.Code("TOKEN_REDEEM_FAILED").
			With("operation", "mark email verified").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return &Redemption{Type: token.Type, Email: token.Email}, nil
}

// ValidateReset validates a password-reset token without consuming it and
// returns the owning email.
func (s *TokenService) ValidateReset(ctx context.Context, secret string) (string, error) {
	redemption, err := s.Redeem(ctx, secret)
	if err != nil {
		return "", err
	}
	if redemption.Type != TokenTypePasswordReset {
		return "", oops.Code("TOKEN_NOT_FOUND").Errorf("invalid token")
	}
	return redemption.Email, nil
}

// ResetPassword completes the password-reset flow: validates the token,
// writes the new password hash, then removes every reset token for the
// email. The token is deleted only after the password update succeeds; a
// failed update leaves the token live so the user can retry.
func (s *TokenService) ResetPassword(ctx context.Context, secret, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	email, err := s.ValidateReset(ctx, secret)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("TOKEN_USER_NOT_FOUND").
				With("email", email).
				Wrap(err)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	// Cleanup - if it fails, the password was still updated successfully.
	//nolint:errcheck // Cleanup failure is acceptable; password was already updated
	s.tokens.DeleteByEmail(ctx, email, TokenTypePasswordReset)

	return nil
}
