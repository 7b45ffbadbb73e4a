// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

type contextKey int

const identityKey contextKey = iota

// WithUserID returns a context carrying the authenticated user's ID.
// The surrounding request layer calls this after ValidateSession succeeds.
func WithUserID(ctx context.Context, userID ulid.ULID) context.Context {
	return context.WithValue(ctx, identityKey, userID)
}

// CurrentUserID returns the authenticated user ID carried by the context.
// It fails closed: a context without a valid identity yields
// AUTH_UNAUTHORIZED, never a zero or default identity.
func CurrentUserID(ctx context.Context) (ulid.ULID, error) {
	id, ok := ctx.Value(identityKey).(ulid.ULID)
	if !ok || id.Compare(ulid.ULID{}) == 0 {
		return ulid.ULID{}, oops.Code("AUTH_UNAUTHORIZED").Errorf("no authenticated user")
	}
	return id, nil
}
