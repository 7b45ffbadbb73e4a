// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

// Package mail delivers account emails. The auth layer hands it a plaintext
// token link; everything about transport and templating stays here.
package mail

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/samber/oops"
)

// Sender delivers account lifecycle emails. Applications provide their own
// implementation; ConsoleSender covers development and tests.
type Sender interface {
	// SendVerificationEmail sends an email-verification link.
	SendVerificationEmail(ctx context.Context, to, verificationLink string) error

	// SendPasswordResetEmail sends a password-reset link.
	SendPasswordResetEmail(ctx context.Context, to, resetLink string) error
}

// LinkBuilder builds user-facing token links from a base URL.
type LinkBuilder struct {
	base *url.URL
}

// NewLinkBuilder parses the application base URL.
func NewLinkBuilder(baseURL string) (*LinkBuilder, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, oops.Code("MAIL_INVALID_BASE_URL").
			With("base_url", baseURL).
			Wrap(err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, oops.Code("MAIL_INVALID_BASE_URL").
			With("base_url", baseURL).
			Errorf("base URL must be absolute")
	}
	return &LinkBuilder{base: base}, nil
}

// VerificationLink returns the email-verification URL for a token secret.
func (b *LinkBuilder) VerificationLink(token string) string {
	return b.link("/verify-email", token)
}

// ResetLink returns the password-reset URL for a token secret.
func (b *LinkBuilder) ResetLink(token string) string {
	return b.link("/auth/reset-password", token)
}

func (b *LinkBuilder) link(path, token string) string {
	u := *b.base
	u.Path = path
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConsoleSender logs emails instead of delivering them. Development only.
type ConsoleSender struct {
	logger *slog.Logger
}

// NewConsoleSender creates a ConsoleSender. A nil logger uses slog.Default.
func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSender{logger: logger}
}

// SendVerificationEmail logs the verification link.
func (c *ConsoleSender) SendVerificationEmail(ctx context.Context, to, verificationLink string) error {
	c.logger.InfoContext(ctx, "email: verify your email address",
		"to", to,
		"link", verificationLink,
	)
	return nil
}

// SendPasswordResetEmail logs the reset link.
func (c *ConsoleSender) SendPasswordResetEmail(ctx context.Context, to, resetLink string) error {
	c.logger.InfoContext(ctx, "email: reset your password",
		"to", to,
		"link", resetLink,
	)
	return nil
}
