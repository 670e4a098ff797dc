// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

// Package identity carries the caller's identity through context and resolves
// identities to roles for authorization.
package identity

import "context"

// Role is a caller's permission level.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// RoleProvider resolves a user ID to a role. Implementations that cannot
// resolve the user should return RoleMember, the base role.
type RoleProvider interface {
	RoleOf(ctx context.Context, userID int64) (Role, error)
}

type userIDKey struct{}

// WithUserID returns a context carrying the caller's user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID extracts the caller's user ID from the context.
// The second return is false if no identity was bound.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}
