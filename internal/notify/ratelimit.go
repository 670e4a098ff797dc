// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify

import (
	"sync"
	"time"
)

// RateLimiter counts requests per identity within a fixed window. The
// counter resets when the window elapses. This is a soft limit, not a
// security boundary: a boundary race may admit one extra request.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[int64]*requestWindow
}

type requestWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter admitting limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[int64]*requestWindow),
	}
}

// Allow records one request for userID and reports whether it is admitted.
func (r *RateLimiter) Allow(userID int64) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[userID]
	if !ok || now.Sub(w.start) >= r.window {
		r.windows[userID] = &requestWindow{start: now, count: 1}
		return true
	}
	if w.count >= r.limit {
		return false
	}
	w.count++
	return true
}

// Remaining reports how many requests userID may still make in the current
// window.
func (r *RateLimiter) Remaining(userID int64) int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[userID]
	if !ok || now.Sub(w.start) >= r.window {
		return r.limit
	}
	if w.count >= r.limit {
		return 0
	}
	return r.limit - w.count
}
