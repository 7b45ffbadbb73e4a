// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package mail_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchbook-app/matchbook/internal/mail"
	"github.com/matchbook-app/matchbook/pkg/errutil"
)

func TestNewLinkBuilder(t *testing.T) {
	t.Run("accepts absolute URL", func(t *testing.T) {
		builder, err := mail.NewLinkBuilder("https://matchbook.test")
		require.NoError(t, err)
		assert.NotNil(t, builder)
	})

	t.Run("rejects relative URL", func(t *testing.T) {
		_, err := mail.NewLinkBuilder("/just/a/path")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_INVALID_BASE_URL")
	})

	t.Run("rejects URL without scheme", func(t *testing.T) {
		_, err := mail.NewLinkBuilder("matchbook.test")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_INVALID_BASE_URL")
	})
}

func TestLinkBuilder_Links(t *testing.T) {
	builder, err := mail.NewLinkBuilder("https://matchbook.test")
	require.NoError(t, err)

	t.Run("verification link", func(t *testing.T) {
		link := builder.VerificationLink("secret123")
		assert.Equal(t, "https://matchbook.test/verify-email?token=secret123", link)
	})

	t.Run("reset link", func(t *testing.T) {
		link := builder.ResetLink("secret123")
		assert.Equal(t, "https://matchbook.test/auth/reset-password?token=secret123", link)
	})

	t.Run("token is query-escaped", func(t *testing.T) {
		link := builder.VerificationLink("a b&c")
		assert.Contains(t, link, "token=a+b%26c")
	})
}

func TestConsoleSender(t *testing.T) {
	ctx := context.Background()

	newLoggedSender := func() (*mail.ConsoleSender, *bytes.Buffer) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		return mail.NewConsoleSender(logger), &buf
	}

	t.Run("logs verification email", func(t *testing.T) {
		sender, buf := newLoggedSender()

		err := sender.SendVerificationEmail(ctx, "ada@example.com", "https://matchbook.test/verify-email?token=s")
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "ada@example.com", entry["to"])
		assert.Contains(t, entry["link"], "/verify-email")
	})

	t.Run("logs reset email", func(t *testing.T) {
		sender, buf := newLoggedSender()

		err := sender.SendPasswordResetEmail(ctx, "ada@example.com", "https://matchbook.test/auth/reset-password?token=s")
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "ada@example.com", entry["to"])
		assert.Contains(t, entry["link"], "/auth/reset-password")
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		sender := mail.NewConsoleSender(nil)
		assert.NotNil(t, sender)
	})
}
