// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

// Package chat models chat messages, rooms, and memberships, and publishes
// chat activity to the live delivery core. Room and membership lifecycle is
// owned by a collaborator; this package consumes it only to scope broadcast
// topics.
package chat

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message belongs to exactly one room and one sender.
type Message struct {
	ID        ulid.ULID
	RoomID    int64
	SenderID  int64
	Body      string
	CreatedAt time.Time
}

// Room is a group conversation.
type Room struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// MessageRepository is the storage collaborator for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListByRoom(ctx context.Context, roomID int64, limit int) ([]*Message, error)
}

// MembershipRepository resolves room membership. Creation and removal of
// memberships is managed elsewhere.
type MembershipRepository interface {
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	MemberIDs(ctx context.Context, roomID int64) ([]int64, error)
}
