// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchbook-app/matchbook/internal/auth"
	"github.com/matchbook-app/matchbook/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("creates valid user", func(t *testing.T) {
		user, err := auth.NewUser("Ada Lovelace", "ada@example.com", "$argon2id$hash")
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", user.Name)
		assert.Equal(t, "ada@example.com", user.Email)
		require.NotNil(t, user.PasswordHash)
		assert.Equal(t, "$argon2id$hash", *user.PasswordHash)
		assert.Nil(t, user.EmailVerified)
		assert.Zero(t, user.FailedAttempts)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("empty password hash means external identity", func(t *testing.T) {
		user, err := auth.NewUser("Ada Lovelace", "ada@example.com", "")
		require.NoError(t, err)
		assert.Nil(t, user.PasswordHash)
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		user1, err := auth.NewUser("Ada Lovelace", "ada@example.com", "hash")
		require.NoError(t, err)
		user2, err := auth.NewUser("Grace Hopper", "grace@example.com", "hash")
		require.NoError(t, err)
		assert.NotEqual(t, user1.ID, user2.ID)
	})

	t.Run("rejects invalid name", func(t *testing.T) {
		_, err := auth.NewUser("A", "ada@example.com", "hash")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_NAME")
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		_, err := auth.NewUser("Ada Lovelace", "nope", "hash")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_EMAIL")
	})
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"valid name", "Ada Lovelace", false},
		{"minimum length", "Ad", false},
		{"maximum length", strings.Repeat("a", auth.MaxNameLength), false},
		{"empty", "", true},
		{"too short", "A", true},
		{"too long", strings.Repeat("a", auth.MaxNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateName(tt.input)
			if tt.wantError {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "AUTH_INVALID_NAME")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"valid email", "ada@example.com", false},
		{"subdomain", "ada@mail.example.co.uk", false},
		{"plus addressing", "ada+test@example.com", false},
		{"empty", "", true},
		{"no at sign", "ada.example.com", true},
		{"no domain", "ada@", true},
		{"no tld", "ada@example", true},
		{"spaces", "ada lovelace@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateEmail(tt.input)
			if tt.wantError {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "AUTH_INVALID_EMAIL")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"valid password", "password123", false},
		{"minimum length", "123456", false},
		{"maximum length", strings.Repeat("p", auth.MaxPasswordLength), false},
		{"empty", "", true},
		{"too short", "12345", true},
		{"too long", strings.Repeat("p", auth.MaxPasswordLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePassword(tt.input)
			if tt.wantError {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUser_RecordFailure(t *testing.T) {
	t.Run("increments counter without lockout below threshold", func(t *testing.T) {
		user := &auth.User{FailedAttempts: 0}
		user.RecordFailure()
		assert.Equal(t, 1, user.FailedAttempts)
		assert.Nil(t, user.LockedUntil)
	})

	t.Run("locks at threshold", func(t *testing.T) {
		user := &auth.User{FailedAttempts: auth.LockoutThreshold - 1}
		user.RecordFailure()
		assert.Equal(t, auth.LockoutThreshold, user.FailedAttempts)
		require.NotNil(t, user.LockedUntil)
		assert.True(t, user.IsLocked())
	})
}

func TestUser_RecordSuccess(t *testing.T) {
	lockedUntil := time.Now().Add(time.Hour)
	user := &auth.User{FailedAttempts: auth.LockoutThreshold, LockedUntil: &lockedUntil}

	user.RecordSuccess()

	assert.Zero(t, user.FailedAttempts)
	assert.Nil(t, user.LockedUntil)
	assert.False(t, user.IsLocked())
}
