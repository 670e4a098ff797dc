// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package identity

import (
	"context"
	"sync"
)

// StaticProvider is an in-memory RoleProvider backed by a fixed map.
// Unknown users resolve to RoleMember. Useful for tests and for deployments
// that configure elevated roles statically.
type StaticProvider struct {
	mu    sync.RWMutex
	roles map[int64]Role
}

// NewStaticProvider creates a provider from an initial role map. The map is
// copied; nil is allowed.
func NewStaticProvider(roles map[int64]Role) *StaticProvider {
	copied := make(map[int64]Role, len(roles))
	for id, r := range roles {
		copied[id] = r
	}
	return &StaticProvider{roles: copied}
}

// RoleOf returns the configured role for userID, or RoleMember if unknown.
func (p *StaticProvider) RoleOf(_ context.Context, userID int64) (Role, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if r, ok := p.roles[userID]; ok {
		return r, nil
	}
	return RoleMember, nil
}

// Grant sets the role for userID.
func (p *StaticProvider) Grant(userID int64, role Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[userID] = role
}
