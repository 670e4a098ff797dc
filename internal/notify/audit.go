// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify

import (
	"sync"
	"time"
)

// AccessEntry records one authorization decision.
type AccessEntry struct {
	UserID    int64
	Operation string
	Allowed   bool
	At        time.Time
}

// AuditLog is a bounded in-memory record of authorization decisions. Once
// the log grows past its cap it is cleared wholesale — a backpressure valve,
// not a durable audit trail.
type AuditLog struct {
	cap int

	mu      sync.Mutex
	entries []AccessEntry
}

// NewAuditLog creates a log cleared wholesale once it exceeds capacity.
func NewAuditLog(capacity int) *AuditLog {
	return &AuditLog{
		cap:     capacity,
		entries: make([]AccessEntry, 0, capacity),
	}
}

// Append records one decision, clearing the log first if it is full.
func (a *AuditLog) Append(entry AccessEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) >= a.cap {
		a.entries = a.entries[:0]
	}
	a.entries = append(a.entries, entry)
}

// Entries returns a copy of the current entries, oldest first.
func (a *AuditLog) Entries() []AccessEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AccessEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the current entry count.
func (a *AuditLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
