// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/parlor-social/parlor/internal/identity"
)

// RoleProvider implements identity.RoleProvider from the shared users table.
type RoleProvider struct {
	pool Querier
}

// NewRoleProvider creates a role provider backed by the users table.
func NewRoleProvider(pool Querier) *RoleProvider {
	return &RoleProvider{pool: pool}
}

// RoleOf returns the user's role. Unknown users get the base member role.
func (p *RoleProvider) RoleOf(ctx context.Context, userID int64) (identity.Role, error) {
	var role string
	err := p.pool.QueryRow(ctx,
		`SELECT role FROM users WHERE id = $1`,
		userID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.RoleMember, nil
	}
	if err != nil {
		return identity.RoleMember, oops.With("operation", "get role").With("user_id", userID).Wrap(err)
	}
	return identity.Role(role), nil
}
