// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/parlor-social/parlor/internal/observability"
)

// CacheTTLs configures per-operation expiry. Counts change rapidly and get a
// short TTL; list snapshots tolerate a longer one.
type CacheTTLs struct {
	List        time.Duration
	ListDisplay time.Duration
	CountUnread time.Duration
}

// DefaultCacheTTLs returns the standard TTL set.
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		List:        30 * time.Second,
		ListDisplay: 30 * time.Second,
		CountUnread: 5 * time.Second,
	}
}

// CacheStats is an introspection snapshot of the cache.
type CacheStats struct {
	Entries int
	Valid   int
	Expired int
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// CachingService is a decorator that caches read-operation results keyed by
// (operation, recipient). Writes call through first, then invalidate every
// key for the affected recipient — best-effort even when the call fails, so
// the cache never retains a value implying a write that succeeded when it
// did not.
//
// A read-then-fill is deliberately not atomic: two concurrent misses for the
// same key may both call through and both fill. Reads are idempotent and the
// last write wins.
type CachingService struct {
	next Service
	ttls CacheTTLs
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCachingService wraps next with a read-through cache.
func NewCachingService(next Service, ttls CacheTTLs) *CachingService {
	return &CachingService{
		next:    next,
		ttls:    ttls,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(op string, recipientID int64) string {
	return fmt.Sprintf("%s:%d", op, recipientID)
}

func (c *CachingService) lookup(op string, recipientID int64) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(op, recipientID)]
	c.mu.RUnlock()

	hit := ok && c.now().Before(entry.expiresAt)
	observability.RecordCacheLookup(op, hit)
	if !hit {
		return nil, false
	}
	return entry.value, true
}

func (c *CachingService) fill(op string, recipientID int64, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[cacheKey(op, recipientID)] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

// invalidate removes every cached key for the recipient.
func (c *CachingService) invalidate(recipientID int64) {
	c.mu.Lock()
	for _, op := range readOps {
		delete(c.entries, cacheKey(op, recipientID))
	}
	c.mu.Unlock()
}

// Clear drops every cache entry. Operational escape hatch.
func (c *CachingService) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Stats reports entry counts for operational visibility.
func (c *CachingService) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{Entries: len(c.entries)}
	now := c.now()
	for _, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			stats.Valid++
		} else {
			stats.Expired++
		}
	}
	return stats
}

// Create calls through, then invalidates the recipient's cached reads.
func (c *CachingService) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	n, err := c.next.Create(ctx, req)
	c.invalidate(req.RecipientID)
	return n, err
}

// List returns the cached snapshot when fresh, otherwise reads through.
func (c *CachingService) List(ctx context.Context, recipientID int64) ([]*Notification, error) {
	if v, ok := c.lookup(OpList, recipientID); ok {
		if items, ok := v.([]*Notification); ok {
			return items, nil
		}
	}
	items, err := c.next.List(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	c.fill(OpList, recipientID, items, c.ttls.List)
	return items, nil
}

// ListDisplay returns the cached snapshot when fresh, otherwise reads through.
func (c *CachingService) ListDisplay(ctx context.Context, recipientID int64) ([]DisplayNotification, error) {
	if v, ok := c.lookup(OpListDisplay, recipientID); ok {
		if items, ok := v.([]DisplayNotification); ok {
			return items, nil
		}
	}
	items, err := c.next.ListDisplay(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	c.fill(OpListDisplay, recipientID, items, c.ttls.ListDisplay)
	return items, nil
}

// CountUnread returns the cached count when fresh, otherwise reads through.
func (c *CachingService) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	if v, ok := c.lookup(OpCountUnread, recipientID); ok {
		if count, ok := v.(int); ok {
			return count, nil
		}
	}
	count, err := c.next.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	c.fill(OpCountUnread, recipientID, count, c.ttls.CountUnread)
	return count, nil
}

// MarkRead calls through, then invalidates the recipient's cached reads.
func (c *CachingService) MarkRead(ctx context.Context, recipientID int64, id ulid.ULID) error {
	err := c.next.MarkRead(ctx, recipientID, id)
	c.invalidate(recipientID)
	return err
}

// MarkAllRead calls through, then invalidates the recipient's cached reads.
func (c *CachingService) MarkAllRead(ctx context.Context, recipientID int64) error {
	err := c.next.MarkAllRead(ctx, recipientID)
	c.invalidate(recipientID)
	return err
}

// BroadcastSystem passes through. Nothing is persisted, so no cached read
// can go stale.
func (c *CachingService) BroadcastSystem(ctx context.Context, message string) (int, error) {
	return c.next.BroadcastSystem(ctx, message)
}

// Welcome calls through, then invalidates the recipient's cached reads.
func (c *CachingService) Welcome(ctx context.Context, recipientID int64) (*Notification, error) {
	n, err := c.next.Welcome(ctx, recipientID)
	c.invalidate(recipientID)
	return n, err
}
