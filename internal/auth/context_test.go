// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchbook-app/matchbook/internal/auth"
	"github.com/matchbook-app/matchbook/pkg/errutil"
)

func TestCurrentUserID(t *testing.T) {
	t.Run("round-trips through the context", func(t *testing.T) {
		userID := ulid.Make()
		ctx := auth.WithUserID(context.Background(), userID)

		got, err := auth.CurrentUserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("fails closed on empty context", func(t *testing.T) {
		_, err := auth.CurrentUserID(context.Background())
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_UNAUTHORIZED")
	})

	t.Run("fails closed on zero identity", func(t *testing.T) {
		ctx := auth.WithUserID(context.Background(), ulid.ULID{})
		_, err := auth.CurrentUserID(ctx)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_UNAUTHORIZED")
	})
}
