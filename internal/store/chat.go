// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package store

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/parlor-social/parlor/internal/chat"
)

// ChatMessageRepository implements chat.MessageRepository using PostgreSQL.
type ChatMessageRepository struct {
	pool Querier
}

// NewChatMessageRepository creates a new ChatMessageRepository.
func NewChatMessageRepository(pool Querier) *ChatMessageRepository {
	return &ChatMessageRepository{pool: pool}
}

// Create stores a chat message. Direct messages carry room ID zero, stored
// as NULL.
func (r *ChatMessageRepository) Create(ctx context.Context, m *chat.Message) error {
	var roomArg any
	if m.RoomID > 0 {
		roomArg = m.RoomID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID.String(), roomArg, m.SenderID, m.Body, m.CreatedAt,
	)
	if err != nil {
		return oops.With("operation", "insert chat message").Wrap(err)
	}
	return nil
}

// ListByRoom returns the most recent messages in a room, newest first.
func (r *ChatMessageRepository) ListByRoom(ctx context.Context, roomID int64, limit int) ([]*chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, sender_id, body, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, oops.With("operation", "list chat messages").Wrap(err)
	}
	defer rows.Close()

	var items []*chat.Message
	for rows.Next() {
		var (
			m     chat.Message
			rawID string
		)
		if err := rows.Scan(&rawID, &m.RoomID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, oops.With("operation", "scan chat message row").Wrap(err)
		}
		id, parseErr := ulid.Parse(rawID)
		if parseErr != nil {
			return nil, oops.With("operation", "parse message id").With("id", rawID).Wrap(parseErr)
		}
		m.ID = id
		items = append(items, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate chat messages").Wrap(err)
	}
	return items, nil
}

// MembershipRepository implements chat.MembershipRepository using PostgreSQL.
type MembershipRepository struct {
	pool Querier
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(pool Querier) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// IsMember reports whether userID belongs to roomID.
func (r *MembershipRepository) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&exists)
	if err != nil {
		return false, oops.With("operation", "check membership").Wrap(err)
	}
	return exists, nil
}

// MemberIDs returns all member user IDs of a room.
func (r *MembershipRepository) MemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM room_members WHERE room_id = $1`,
		roomID,
	)
	if err != nil {
		return nil, oops.With("operation", "list members").Wrap(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, oops.With("operation", "scan member row").Wrap(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate members").Wrap(err)
	}
	return ids, nil
}
