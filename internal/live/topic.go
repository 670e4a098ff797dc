// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

// Package live provides the realtime delivery core: the session registry,
// the topic broadcaster, and the wire envelope pushed to connected clients.
//
// Topic keys follow a prefixed string format:
//   - "user:42"  — a recipient's personal notification stream
//   - "room:7"   — a group chat room
//   - "dm:3:9"   — a two-party conversation, smaller user ID first
package live

import "fmt"

// UserTopic returns the topic key for a user's personal notification stream.
func UserTopic(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// RoomTopic returns the topic key for a group chat room.
func RoomTopic(roomID int64) string {
	return fmt.Sprintf("room:%d", roomID)
}

// PairTopic returns the canonical topic key for a two-party conversation.
// The smaller user ID always comes first, so PairTopic(a, b) == PairTopic(b, a).
func PairTopic(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}
