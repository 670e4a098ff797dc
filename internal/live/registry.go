// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package live

import (
	"log/slog"
	"sync"

	"github.com/parlor-social/parlor/internal/observability"
)

// Conn is the outbound delivery primitive bound to one live session.
// Implementations must be safe for concurrent Send calls.
type Conn interface {
	// Send writes one text frame to the session. Returns an error if the
	// transport is closed or broken.
	Send(payload []byte) error
	// Close tears the transport down. Safe to call more than once.
	Close() error
}

// Registry maps a live identity to its open delivery channel.
//
// At most one entry per identity is retained: a new Register for the same
// identity replaces the prior entry (last-connect-wins) and closes its
// channel. Multi-device fan-out is intentionally not supported.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]Conn
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]Conn),
	}
}

// Register stores the channel for userID, replacing and closing any prior
// entry for the same identity.
func (r *Registry) Register(userID int64, conn Conn) {
	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = conn
	count := len(r.sessions)
	r.mu.Unlock()

	if prev != nil {
		slog.Debug("replacing live session", "user_id", userID)
		if err := prev.Close(); err != nil {
			slog.Debug("close of replaced session failed", "user_id", userID, "error", err)
		}
	}
	observability.SetLiveSessions(count)
}

// Unregister removes the entry for userID. No-op if absent or if the
// registered channel is not conn (a replacement already happened).
func (r *Registry) Unregister(userID int64, conn Conn) {
	r.mu.Lock()
	current, ok := r.sessions[userID]
	if ok && (conn == nil || current == conn) {
		delete(r.sessions, userID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetLiveSessions(count)
}

// IsLive reports whether userID has an open delivery channel.
func (r *Registry) IsLive(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// CountLive returns the number of live sessions.
func (r *Registry) CountLive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SendTo delivers payload to userID if live. Unknown identities and closed
// channels are soft failures: logged, never surfaced to the caller, since
// sessions close at any time.
func (r *Registry) SendTo(userID int64, payload []byte) {
	r.mu.RLock()
	conn, ok := r.sessions[userID]
	r.mu.RUnlock()

	if !ok {
		slog.Debug("push skipped: recipient offline", "user_id", userID)
		observability.RecordDeliveryFailure("offline")
		return
	}
	if err := conn.Send(payload); err != nil {
		slog.Warn("push failed: channel broken", "user_id", userID, "error", err)
		observability.RecordDeliveryFailure("send")
	}
}

// BroadcastExcept delivers payload to every live channel except the excluded
// identity. Used to avoid echoing a sender's own action back to itself.
// Delivery failures affect only the one recipient.
func (r *Registry) BroadcastExcept(payload []byte, excludedUserID int64) {
	r.mu.RLock()
	targets := make(map[int64]Conn, len(r.sessions))
	for id, conn := range r.sessions {
		if id == excludedUserID {
			continue
		}
		targets[id] = conn
	}
	r.mu.RUnlock()

	for id, conn := range targets {
		if err := conn.Send(payload); err != nil {
			slog.Warn("broadcast delivery failed", "user_id", id, "error", err)
			observability.RecordDeliveryFailure("send")
		}
	}
}
