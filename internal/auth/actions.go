// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/matchbook-app/matchbook/internal/mail"
	"github.com/matchbook-app/matchbook/pkg/errutil"
)

// Status discriminates action outcomes for presentation layers.
type Status string

// Action statuses.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// FieldError attributes a validation failure to a specific input field.
type FieldError struct {
	Field   string
	Message string
}

// Result is the uniform outcome of an action. On success Data is set; on
// error Message holds a user-facing string and Fields holds any per-field
// validation failures. Infrastructure details never leak into Message.
type Result[T any] struct {
	Status  Status
	Data    T
	Message string
	Fields  []FieldError
}

// Ok reports whether the action succeeded.
func (r Result[T]) Ok() bool {
	return r.Status == StatusSuccess
}

func success[T any](data T, message string) Result[T] {
	return Result[T]{Status: StatusSuccess, Data: data, Message: message}
}

func failure[T any](message string, fields ...FieldError) Result[T] {
	return Result[T]{Status: StatusError, Message: message, Fields: fields}
}

// User-facing messages. Credential failures are deliberately identical for
// unknown emails and wrong passwords; reset requests are the one place an
// unknown email is reported explicitly.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgAccountLocked      = "Account is temporarily locked, try again later"
	msgUserExists         = "User already exists"
	msgEmailNotFound      = "Email not found"
	msgInvalidToken       = "Invalid token"
	msgExpiredToken       = "Token has expired"
	msgSomethingWrong     = "Something went wrong"
)

// SignInData is the payload of a successful sign-in.
type SignInData struct {
	Session *WebSession
	// Token is the plaintext session secret for the caller's cookie. It is
	// never persisted.
	Token string
}

// Recorder counts auth outcomes. The observability package provides the
// Prometheus-backed implementation.
type Recorder interface {
	RecordLogin(status string)
	RecordRegistration(status string)
	RecordTokenIssued(tokenType string)
	RecordTokenRedeemed(tokenType, status string)
}

// nopRecorder is used when no Recorder is configured.
type nopRecorder struct{}

func (nopRecorder) RecordLogin(string)                 {}
func (nopRecorder) RecordRegistration(string)          {}
func (nopRecorder) RecordTokenIssued(string)           {}
func (nopRecorder) RecordTokenRedeemed(string, string) {}

// Actions is the application-facing facade over the auth services. Every
// method returns a Result instead of an error: expected failures become
// user-facing messages, infrastructure failures are logged here and
// collapsed to an opaque message.
type Actions struct {
	auth     *Service
	tokens   *TokenService
	mailer   mail.Sender
	links    *mail.LinkBuilder
	logger   *slog.Logger
	recorder Recorder
}

// NewActions creates the action facade.
func NewActions(auth *Service, tokens *TokenService, mailer mail.Sender, links *mail.LinkBuilder, logger *slog.Logger) (*Actions, error) {
	if auth == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("auth service is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("token service is required")
	}
	if mailer == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("mail sender is required")
	}
	if links == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("link builder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Actions{
		auth:     auth,
		tokens:   tokens,
		mailer:   mailer,
		links:    links,
		logger:   logger,
		recorder: nopRecorder{},
	}, nil
}

// NewActionsWithRecorder creates the action facade with outcome metrics.
func NewActionsWithRecorder(auth *Service, tokens *TokenService, mailer mail.Sender, links *mail.LinkBuilder, logger *slog.Logger, recorder Recorder) (*Actions, error) {
	a, err := NewActions(auth, tokens, mailer, links, logger)
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		return nil, oops.Code("AUTH_BAD_DEPENDENCY").Errorf("recorder is required")
	}
	a.recorder = recorder
	return a, nil
}

// errCode extracts the oops code from an error chain, or "".
func errCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}

// SignInUser authenticates credentials and opens a web session.
func (a *Actions) SignInUser(ctx context.Context, email, password, userAgent, ipAddress string) Result[*SignInData] {
	session, token, err := a.auth.Login(ctx, email, password, userAgent, ipAddress)
	if err != nil {
		switch errCode(err) {
		case "AUTH_INVALID_CREDENTIALS":
			a.recorder.RecordLogin("invalid_credentials")
			return failure[*SignInData](msgInvalidCredentials)
		case "AUTH_ACCOUNT_LOCKED":
			a.recorder.RecordLogin("locked")
			return failure[*SignInData](msgAccountLocked)
		default:
			a.recorder.RecordLogin("error")
			errutil.LogError(a.logger, "sign in failed", err)
			return failure[*SignInData](msgSomethingWrong)
		}
	}
	a.recorder.RecordLogin("success")
	return success(&SignInData{Session: session, Token: token}, "Logged in")
}

// SignOutUser ends a web session.
func (a *Actions) SignOutUser(ctx context.Context, sessionID ulid.ULID) Result[string] {
	if err := a.auth.Logout(ctx, sessionID); err != nil {
		// An already-gone session is a successful sign-out.
		if errCode(err) != "SESSION_NOT_FOUND" {
			errutil.LogError(a.logger, "sign out failed", err)
			return failure[string](msgSomethingWrong)
		}
	}
	return success("", "Logged out")
}

// RegisterUser creates an account and sends the verification email. Input
// problems come back as per-field errors so forms can annotate each input.
func (a *Actions) RegisterUser(ctx context.Context, name, email, password string) Result[*User] {
	var fields []FieldError
	if err := ValidateName(name); err != nil {
		fields = append(fields, FieldError{Field: "name", Message: err.Error()})
	}
	if err := ValidateEmail(email); err != nil {
		fields = append(fields, FieldError{Field: "email", Message: err.Error()})
	}
	if err := ValidatePassword(password); err != nil {
		fields = append(fields, FieldError{Field: "password", Message: err.Error()})
	}
	if len(fields) > 0 {
		return failure[*User]("Validation failed", fields...)
	}

	user, err := a.auth.Register(ctx, name, email, password)
	if err != nil {
		if errCode(err) == "AUTH_USER_EXISTS" {
			a.recorder.RecordRegistration("exists")
			return failure[*User](msgUserExists, FieldError{Field: "email", Message: msgUserExists})
		}
		a.recorder.RecordRegistration("error")
		errutil.LogError(a.logger, "registration failed", err)
		return failure[*User](msgSomethingWrong)
	}
	a.recorder.RecordRegistration("success")

	// The account exists either way; a failed delivery is recoverable via
	// the resend flow, so it does not fail the registration.
	if err := a.sendVerification(ctx, user.Email); err != nil {
		errutil.LogError(a.logger, "verification email failed after registration", err)
	}

	return success(user, "Account created, check your email to verify it")
}

// ResendVerificationEmail issues a fresh verification token, superseding any
// previous one, and mails it.
func (a *Actions) ResendVerificationEmail(ctx context.Context, email string) Result[string] {
	if err := a.sendVerification(ctx, email); err != nil {
		if errCode(err) == "TOKEN_USER_NOT_FOUND" {
			return failure[string](msgEmailNotFound)
		}
		errutil.LogError(a.logger, "resend verification failed", err)
		return failure[string](msgSomethingWrong)
	}
	return success("", "Verification email sent")
}

func (a *Actions) sendVerification(ctx context.Context, email string) error {
	secret, token, err := a.tokens.Issue(ctx, email, TokenTypeEmailVerification)
	if err != nil {
		return err
	}
	a.recorder.RecordTokenIssued(string(TokenTypeEmailVerification))
	return a.mailer.SendVerificationEmail(ctx, token.Email, a.links.VerificationLink(secret))
}

// VerifyEmail redeems an email-verification token. Unknown failures are
// reported as a result, never raised: the verify page always renders an
// outcome.
func (a *Actions) VerifyEmail(ctx context.Context, token string) Result[string] {
	verificationType := string(TokenTypeEmailVerification)
	redemption, err := a.tokens.Redeem(ctx, token)
	if err != nil {
		switch errCode(err) {
		case "TOKEN_NOT_FOUND":
			a.recorder.RecordTokenRedeemed(verificationType, "not_found")
			return failure[string](msgInvalidToken)
		case "TOKEN_EXPIRED":
			a.recorder.RecordTokenRedeemed(verificationType, "expired")
			return failure[string](msgExpiredToken)
		default:
			a.recorder.RecordTokenRedeemed(verificationType, "error")
			errutil.LogError(a.logger, "email verification failed", err)
			return failure[string](msgSomethingWrong)
		}
	}
	if redemption.Type != TokenTypeEmailVerification {
		a.recorder.RecordTokenRedeemed(verificationType, "not_found")
		return failure[string](msgInvalidToken)
	}
	a.recorder.RecordTokenRedeemed(verificationType, "success")
	return success("", "Email verified, you can now log in")
}

// GenerateResetPasswordEmail issues a password-reset token and mails it.
// Unknown emails are reported explicitly here.
func (a *Actions) GenerateResetPasswordEmail(ctx context.Context, email string) Result[string] {
	secret, token, err := a.tokens.Issue(ctx, email, TokenTypePasswordReset)
	if err != nil {
		if errCode(err) == "TOKEN_USER_NOT_FOUND" {
			return failure[string](msgEmailNotFound)
		}
		errutil.LogError(a.logger, "reset email generation failed", err)
		return failure[string](msgSomethingWrong)
	}
	a.recorder.RecordTokenIssued(string(TokenTypePasswordReset))

	if err := a.mailer.SendPasswordResetEmail(ctx, token.Email, a.links.ResetLink(secret)); err != nil {
		errutil.LogError(a.logger, "reset email delivery failed", err)
		return failure[string](msgSomethingWrong)
	}

	return success("", "Password reset email has been sent")
}

// ResetPassword completes the reset flow with a token and a new password.
func (a *Actions) ResetPassword(ctx context.Context, token, newPassword string) Result[string] {
	resetType := string(TokenTypePasswordReset)
	if err := a.tokens.ResetPassword(ctx, token, newPassword); err != nil {
		switch errCode(err) {
		case "AUTH_INVALID_PASSWORD":
			return failure[string](err.Error(), FieldError{Field: "password", Message: err.Error()})
		case "TOKEN_NOT_FOUND":
			a.recorder.RecordTokenRedeemed(resetType, "not_found")
			return failure[string](msgInvalidToken)
		case "TOKEN_EXPIRED":
			a.recorder.RecordTokenRedeemed(resetType, "expired")
			return failure[string](msgExpiredToken)
		default:
			a.recorder.RecordTokenRedeemed(resetType, "error")
			errutil.LogError(a.logger, "password reset failed", err)
			return failure[string](msgSomethingWrong)
		}
	}
	a.recorder.RecordTokenRedeemed(resetType, "success")
	return success("", "Password has been reset")
}

// AuthUserID returns the authenticated user ID from the context, failing
// closed when none is present.
func (a *Actions) AuthUserID(ctx context.Context) (ulid.ULID, error) {
	return CurrentUserID(ctx)
}
