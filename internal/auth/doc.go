// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

// Package auth provides the authentication and token-lifecycle core for
// Matchbook.
//
// # Domain Types
//
// Domain types (User, Token, WebSession) should be created using their
// respective constructors:
//   - NewUser - creates a User with validated name, email, and password hash
//   - NewToken - creates a single-use Token bound to an email, type, and expiry
//   - NewWebSession - creates a WebSession with validated user and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, login, logout, session validation
//   - TokenService - token issue, redemption, and the password reset flow
//
// The Actions type wraps both services in the result-typed API consumed by
// the application layer. Identity for the current request travels in the
// context; CurrentUserID fails closed when it is absent.
package auth
