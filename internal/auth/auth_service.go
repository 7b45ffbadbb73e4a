// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides registration, login, and session operations.
type Service struct {
	users      UserRepository
	sessions   WebSessionRepository
	hasher     PasswordHasher
	sessionTTL time.Duration
}

// NewService creates a Service with the default session lifetime.
func NewService(users UserRepository, sessions WebSessionRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithSessionTTL(users, sessions, hasher, SessionTokenExpiry)
}

// NewServiceWithSessionTTL creates a Service whose web sessions expire after
// sessionTTL. A zero TTL uses the default lifetime.
func NewServiceWithSessionTTL(users UserRepository, sessions WebSessionRepository, hasher PasswordHasher, sessionTTL time.Duration) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("session repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("password hasher is required")
	}
	if sessionTTL < 0 {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("session TTL cannot be negative")
	}
	if sessionTTL == 0 {
		sessionTTL = SessionTokenExpiry
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		sessionTTL: sessionTTL,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new account with a hashed password.
// The email must not already be registered; the duplicate check is backed by
// the store's uniqueness constraint, so concurrent registrations for the same
// email cannot both succeed.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, oops.Code("AUTH_USER_EXISTS").
			With("email", email).
			Errorf("user already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(name, email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The pre-check races with concurrent registrations; the store's
		// unique constraint is authoritative.
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code("AUTH_USER_EXISTS").
				With("email", email).
				Errorf("user already exists")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return user, nil
}

// Login authenticates a user and creates a web session.
// Returns the session, plaintext token, and any error.
// Uses constant-time operations to prevent timing-based email enumeration:
// the caller cannot tell an unknown email from a wrong password, by error
// content or by response time.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*WebSession, string, error) {
	if email == "" || password == "" {
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	targetHash := dummyPasswordHash
	userExists := false

	switch {
	case lookupErr == nil:
		userExists = true
		if user.PasswordHash != nil {
			targetHash = *user.PasswordHash
		}
		// External-identity accounts have no hash; the dummy keeps the
		// verification running and the outcome is a credential failure.
	case errors.Is(lookupErr, ErrNotFound):
		// Use dummy hash - still perform verification to maintain constant time
	default:
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
		}
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If user doesn't exist OR password invalid, return same error
	if !userExists || !valid || user.PasswordHash == nil {
		if userExists {
			// Record failure only for existing accounts
			user.RecordFailure()
			_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort
		}
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	// Check lockout AFTER password verification to maintain constant time
	if user.IsLocked() {
		return nil, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", user.LockedUntil).
			Errorf("account is temporarily locked")
	}

	// Success - reset failure counter
	user.RecordSuccess()

	// Check if password needs upgrade (e.g., from a legacy scheme)
	if s.hasher.NeedsUpgrade(*user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			user.PasswordHash = &newHash
		}
	}

	// Update user with reset failure count (and possibly upgraded hash)
	// Ignore errors - login should succeed even if update fails
	_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort, login succeeds regardless

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	session, err := NewWebSession(user.ID, tokenHash, userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create web session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

// Logout invalidates a web session.
func (s *Service) Logout(ctx context.Context, sessionID ulid.ULID) error {
	err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("SESSION_NOT_FOUND").
				With("session_id", sessionID.String()).
				Wrap(err)
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	return nil
}

// ValidateSession validates a session token and returns the session if valid.
// Also updates the LastSeenAt timestamp.
func (s *Service) ValidateSession(ctx context.Context, token string) (*WebSession, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		return nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	// Update last seen timestamp (non-blocking, ignore errors)
	now := time.Now()
	_ = s.sessions.UpdateLastSeen(ctx, session.ID, now) //nolint:errcheck // Best effort, validation succeeds regardless

	return session, nil
}

// normalizeEmail lowercases an email for comparison and storage keys.
// Lookups are case-insensitive at the store; this keeps mail and token
// bookkeeping consistent with them.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
