// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/parlor-social/parlor/internal/live"
)

const (
	// writeWait is the deadline for a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long to wait for a pong before declaring the peer dead.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// sendBuffer bounds the per-session outbound queue.
	sendBuffer = 256
	// maxFrameSize bounds inbound frames.
	maxFrameSize = 32 * 1024
)

// client is one live websocket session. It implements live.Conn, so the
// session registry can push frames to it.
type client struct {
	userID int64
	ws     *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// joined tracks the topics this session currently wants delivery for.
	// The broadcaster only supports coarse per-topic teardown, so leaving a
	// room is expressed here and checked in the subscriber callback.
	mu         sync.Mutex
	joined     map[string]struct{}
	subscribed map[string]struct{}
}

func newClient(userID int64, ws *websocket.Conn) *client {
	return &client{
		userID:     userID,
		ws:         ws,
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		joined:     make(map[string]struct{}),
		subscribed: make(map[string]struct{}),
	}
}

// Send enqueues one frame for the write pump. Returns an error if the
// session is closed or its buffer is saturated; the registry treats either
// as a soft failure.
func (c *client) Send(payload []byte) error {
	select {
	case <-c.done:
		return oops.Errorf("session closed")
	case c.send <- payload:
		return nil
	default:
		return oops.Errorf("session send buffer full")
	}
}

// Close signals both pumps to stop. Safe to call multiple times.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *client) join(topic string) {
	c.mu.Lock()
	c.joined[topic] = struct{}{}
	c.mu.Unlock()
}

func (c *client) leave(topic string) {
	c.mu.Lock()
	delete(c.joined, topic)
	c.mu.Unlock()
}

func (c *client) hasJoined(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[topic]
	return ok
}

// markSubscribed records that a broadcaster callback exists for topic.
// Returns false if one was already registered, so re-joining a room does not
// stack duplicate callbacks.
func (c *client) markSubscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribed[topic]; ok {
		return false
	}
	c.subscribed[topic] = struct{}{}
	return true
}

// envelopeSender is the minimal view of an envelope needed for sender
// exclusion in topic callbacks.
type envelopeSender struct {
	From int64 `json:"from"`
}

// topicCallback builds the broadcaster subscriber for this session and
// topic. It no-ops once the session closes or leaves the topic, and it never
// echoes a sender's own activity back to them.
func (c *client) topicCallback(topic string) live.Subscriber {
	return func(payload []byte) error {
		if c.isClosed() || !c.hasJoined(topic) {
			return nil
		}
		var hdr envelopeSender
		if err := json.Unmarshal(payload, &hdr); err == nil && hdr.From == c.userID {
			return nil
		}
		return c.Send(payload)
	}
}

// writePump moves frames from the send queue to the socket and keeps the
// connection alive with pings. It owns all writes.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		//nolint:errcheck // socket is going away regardless
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			//nolint:errcheck // best-effort close frame
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case payload := <-c.send:
			//nolint:errcheck // deadline errors surface on the write itself
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				slog.Debug("ws write failed", "user_id", c.userID, "error", err)
				return
			}
		case <-ticker.C:
			//nolint:errcheck // deadline errors surface on the write itself
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
