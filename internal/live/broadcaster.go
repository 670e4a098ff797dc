// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package live

import (
	"log/slog"
	"sync"

	"github.com/parlor-social/parlor/internal/observability"
)

// Subscriber is a delivery callback registered for a topic. A returned error
// marks that one delivery as failed; it never affects other subscribers or
// the publisher.
type Subscriber func(payload []byte) error

// Broadcaster distributes payloads to topic subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string][]Subscriber),
	}
}

// Subscribe appends fn to the topic's subscriber set.
func (b *Broadcaster) Subscribe(topic string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], fn)
}

// Unsubscribe removes every subscriber registered for the topic. This is a
// deliberate coarse-grained teardown: callers must not assume per-subscriber
// removal.
func (b *Broadcaster) Unsubscribe(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, topic)
}

// SubscriberCount returns the number of subscribers currently registered for
// the topic.
func (b *Broadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish invokes every current subscriber of the topic exactly once.
//
// Iteration runs over a point-in-time snapshot, so a concurrent Subscribe or
// Unsubscribe cannot corrupt it; a subscriber added mid-publish may or may
// not receive that specific publish. A failing subscriber is logged and does
// not prevent the remaining subscribers from running.
func (b *Broadcaster) Publish(topic string, payload []byte) {
	b.mu.RLock()
	snapshot := make([]Subscriber, len(b.subs[topic]))
	copy(snapshot, b.subs[topic])
	b.mu.RUnlock()

	observability.RecordPublish(topic)

	for _, fn := range snapshot {
		if err := fn(payload); err != nil {
			slog.Warn("subscriber callback failed", "topic", topic, "error", err)
			observability.RecordDeliveryFailure("callback")
		}
	}
}
