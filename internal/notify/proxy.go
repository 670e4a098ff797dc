// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/parlor-social/parlor/internal/identity"
	"github.com/parlor-social/parlor/internal/observability"
)

// Policy maps an operation name or glob pattern to the roles allowed to call
// it. An exact entry for an operation takes precedence over any pattern
// entry; with neither, the operation is denied for everyone.
type Policy map[string][]identity.Role

// DefaultPolicy returns the standard permission table: every member may use
// the notification operations, while system-wide broadcast and synthetic
// welcome events require the admin role.
func DefaultPolicy() Policy {
	return Policy{
		OpBroadcastSystem: {identity.RoleAdmin},
		OpWelcome:         {identity.RoleAdmin},
		"notification.*":  {identity.RoleMember, identity.RoleModerator, identity.RoleAdmin},
	}
}

type globRule struct {
	matcher glob.Glob
	roles   []identity.Role
}

type compiledPolicy struct {
	exact map[string][]identity.Role
	globs []globRule
}

func compilePolicy(p Policy) (compiledPolicy, error) {
	cp := compiledPolicy{exact: make(map[string][]identity.Role)}
	for pattern, roles := range p {
		if !isGlobPattern(pattern) {
			cp.exact[pattern] = slices.Clone(roles)
			continue
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return compiledPolicy{}, oops.Code("POLICY_COMPILE_FAILED").
				With("pattern", pattern).
				Wrap(err)
		}
		cp.globs = append(cp.globs, globRule{matcher: g, roles: slices.Clone(roles)})
	}
	return cp, nil
}

func isGlobPattern(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// allows reports whether role may call op. Deny by default.
func (cp compiledPolicy) allows(op string, role identity.Role) bool {
	if roles, ok := cp.exact[op]; ok {
		return slices.Contains(roles, role)
	}
	for _, rule := range cp.globs {
		if rule.matcher.Match(op) && slices.Contains(rule.roles, role) {
			return true
		}
	}
	return false
}

// Proxy gates every operation of the wrapped (possibly decorated) service
// behind role authorization, per-user rate limiting, and audit logging. A
// denied call never reaches the wrapped service.
type Proxy struct {
	next    Service
	roles   identity.RoleProvider
	limiter *RateLimiter
	audit   *AuditLog
	policy  compiledPolicy
	logger  *slog.Logger
}

// NewProxy creates an access-control proxy around next. The policy is
// compiled once here; substitute an alternate Policy in tests rather than
// mutating shared state.
func NewProxy(next Service, roles identity.RoleProvider, limiter *RateLimiter, audit *AuditLog, policy Policy, logger *slog.Logger) (*Proxy, error) {
	if next == nil {
		return nil, oops.Errorf("wrapped service is required")
	}
	if roles == nil {
		return nil, oops.Errorf("role provider is required")
	}
	if limiter == nil {
		return nil, oops.Errorf("rate limiter is required")
	}
	if audit == nil {
		return nil, oops.Errorf("audit log is required")
	}
	compiled, err := compilePolicy(policy)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		next:    next,
		roles:   roles,
		limiter: limiter,
		audit:   audit,
		policy:  compiled,
		logger:  logger,
	}, nil
}

// authorize runs the authorization and rate-limit checks for op and records
// the decision. Returns the caller's user ID on success.
func (p *Proxy) authorize(ctx context.Context, op string) (int64, error) {
	userID, _ := identity.UserID(ctx)

	role, err := p.roles.RoleOf(ctx, userID)
	if err != nil || role == "" {
		// Unknown callers fall back to the base role.
		role = identity.RoleMember
	}

	allowed := p.policy.allows(op, role)
	p.audit.Append(AccessEntry{
		UserID:    userID,
		Operation: op,
		Allowed:   allowed,
		At:        time.Now().UTC(),
	})
	observability.RecordAccessDecision(op, allowed)

	if !allowed {
		p.logger.Warn("operation denied", "operation", op, "user_id", userID, "role", string(role))
		return 0, oops.Code("ACCESS_DENIED").
			With("operation", op).
			With("user_id", userID).
			With("role", string(role)).
			Wrap(ErrUnauthorized)
	}

	if !p.limiter.Allow(userID) {
		observability.RecordRateLimited()
		return 0, oops.Code("RATE_LIMITED").
			With("operation", op).
			With("user_id", userID).
			Wrap(ErrRateLimited)
	}

	return userID, nil
}

func (p *Proxy) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	if _, err := p.authorize(ctx, OpCreate); err != nil {
		return nil, err
	}
	return p.next.Create(ctx, req)
}

func (p *Proxy) List(ctx context.Context, recipientID int64) ([]*Notification, error) {
	if _, err := p.authorize(ctx, OpList); err != nil {
		return nil, err
	}
	return p.next.List(ctx, recipientID)
}

func (p *Proxy) ListDisplay(ctx context.Context, recipientID int64) ([]DisplayNotification, error) {
	if _, err := p.authorize(ctx, OpListDisplay); err != nil {
		return nil, err
	}
	return p.next.ListDisplay(ctx, recipientID)
}

func (p *Proxy) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	if _, err := p.authorize(ctx, OpCountUnread); err != nil {
		return 0, err
	}
	return p.next.CountUnread(ctx, recipientID)
}

func (p *Proxy) MarkRead(ctx context.Context, recipientID int64, id ulid.ULID) error {
	if _, err := p.authorize(ctx, OpMarkRead); err != nil {
		return err
	}
	return p.next.MarkRead(ctx, recipientID, id)
}

func (p *Proxy) MarkAllRead(ctx context.Context, recipientID int64) error {
	if _, err := p.authorize(ctx, OpMarkAllRead); err != nil {
		return err
	}
	return p.next.MarkAllRead(ctx, recipientID)
}

func (p *Proxy) BroadcastSystem(ctx context.Context, message string) (int, error) {
	if _, err := p.authorize(ctx, OpBroadcastSystem); err != nil {
		return 0, err
	}
	return p.next.BroadcastSystem(ctx, message)
}

func (p *Proxy) Welcome(ctx context.Context, recipientID int64) (*Notification, error) {
	if _, err := p.authorize(ctx, OpWelcome); err != nil {
		return nil, err
	}
	return p.next.Welcome(ctx, recipientID)
}
