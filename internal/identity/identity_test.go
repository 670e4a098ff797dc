// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlor-social/parlor/internal/identity"
)

func TestUserIDContext(t *testing.T) {
	t.Run("round trips through context", func(t *testing.T) {
		ctx := identity.WithUserID(context.Background(), 42)

		id, ok := identity.UserID(ctx)
		assert.True(t, ok)
		assert.Equal(t, int64(42), id)
	})

	t.Run("absent identity reports false", func(t *testing.T) {
		id, ok := identity.UserID(context.Background())
		assert.False(t, ok)
		assert.Zero(t, id)
	})
}

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("returns configured roles", func(t *testing.T) {
		p := identity.NewStaticProvider(map[int64]identity.Role{
			1: identity.RoleAdmin,
			2: identity.RoleModerator,
		})

		role, err := p.RoleOf(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleAdmin, role)

		role, err = p.RoleOf(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleModerator, role)
	})

	t.Run("unknown user defaults to member", func(t *testing.T) {
		p := identity.NewStaticProvider(nil)

		role, err := p.RoleOf(ctx, 999)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleMember, role)
	})

	t.Run("Grant updates the role", func(t *testing.T) {
		p := identity.NewStaticProvider(nil)
		p.Grant(7, identity.RoleAdmin)

		role, err := p.RoleOf(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleAdmin, role)
	})
}
