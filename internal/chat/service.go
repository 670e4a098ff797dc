// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package chat

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/parlor-social/parlor/internal/live"
)

// ErrNotMember is returned when a sender does not belong to the target room.
var ErrNotMember = errors.New("not a member of room")

// Publisher pushes a payload to a topic's subscribers.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Service persists chat messages and publishes chat activity envelopes to
// room and pair topics.
type Service struct {
	messages    MessageRepository
	memberships MembershipRepository
	publisher   Publisher
}

// NewService creates the chat service. All dependencies are required.
func NewService(messages MessageRepository, memberships MembershipRepository, publisher Publisher) (*Service, error) {
	if messages == nil {
		return nil, oops.Errorf("message repository is required")
	}
	if memberships == nil {
		return nil, oops.Errorf("membership repository is required")
	}
	if publisher == nil {
		return nil, oops.Errorf("publisher is required")
	}
	return &Service{
		messages:    messages,
		memberships: memberships,
		publisher:   publisher,
	}, nil
}

type messageBody struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// SendToRoom persists the message and publishes a new_message envelope to
// the room topic. The sender must be a member of the room.
func (s *Service) SendToRoom(ctx context.Context, roomID, senderID int64, body string) (*Message, error) {
	ok, err := s.memberships.IsMember(ctx, roomID, senderID)
	if err != nil {
		return nil, oops.Code("CHAT_MEMBERSHIP_CHECK_FAILED").
			With("room_id", roomID).
			With("sender_id", senderID).
			Wrap(err)
	}
	if !ok {
		return nil, oops.Code("CHAT_NOT_MEMBER").
			With("room_id", roomID).
			With("sender_id", senderID).
			Wrap(ErrNotMember)
	}

	m := &Message{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader),
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, oops.Code("CHAT_MESSAGE_CREATE_FAILED").
			With("room_id", roomID).
			Wrap(err)
	}

	s.publishMessage(live.RoomTopic(roomID), m)
	return m, nil
}

// SendDirect persists the message and publishes it to the canonical pair
// topic for the two users. Direct messages use room ID zero.
func (s *Service) SendDirect(ctx context.Context, senderID, recipientID int64, body string) (*Message, error) {
	m := &Message{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader),
		SenderID:  senderID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, oops.Code("CHAT_MESSAGE_CREATE_FAILED").
			With("sender_id", senderID).
			With("recipient_id", recipientID).
			Wrap(err)
	}

	s.publishMessage(live.PairTopic(senderID, recipientID), m)
	return m, nil
}

func (s *Service) publishMessage(topic string, m *Message) {
	body, err := json.Marshal(messageBody{ID: m.ID.String(), Body: m.Body})
	if err != nil {
		return
	}
	env := live.Envelope{
		Type:   live.EnvelopeNewMessage,
		From:   m.SenderID,
		RoomID: m.RoomID,
		Body:   body,
	}
	payload, err := env.Encode()
	if err != nil {
		return
	}
	s.publisher.Publish(topic, payload)
}

// MarkRead publishes a message_read envelope to the room topic so other
// members can update read receipts. Best-effort, nothing persisted here.
func (s *Service) MarkRead(_ context.Context, roomID, readerID int64, messageID ulid.ULID) {
	body, err := json.Marshal(messageBody{ID: messageID.String()})
	if err != nil {
		return
	}
	env := live.Envelope{
		Type:   live.EnvelopeMessageRead,
		From:   readerID,
		RoomID: roomID,
		Body:   body,
	}
	payload, err := env.Encode()
	if err != nil {
		return
	}
	s.publisher.Publish(live.RoomTopic(roomID), payload)
}

// Typing publishes an ephemeral typing indicator to the room topic.
func (s *Service) Typing(_ context.Context, roomID, typistID int64) {
	env := live.Envelope{
		Type:   live.EnvelopeTyping,
		From:   typistID,
		RoomID: roomID,
	}
	payload, err := env.Encode()
	if err != nil {
		return
	}
	s.publisher.Publish(live.RoomTopic(roomID), payload)
}

// History returns the most recent messages in a room, newest first, gated on
// membership.
func (s *Service) History(ctx context.Context, roomID, userID int64, limit int) ([]*Message, error) {
	ok, err := s.memberships.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, oops.Code("CHAT_MEMBERSHIP_CHECK_FAILED").
			With("room_id", roomID).
			With("user_id", userID).
			Wrap(err)
	}
	if !ok {
		return nil, oops.Code("CHAT_NOT_MEMBER").
			With("room_id", roomID).
			With("user_id", userID).
			Wrap(ErrNotMember)
	}

	msgs, err := s.messages.ListByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, oops.Code("CHAT_HISTORY_FAILED").
			With("room_id", roomID).
			Wrap(err)
	}
	return msgs, nil
}

// IsMember reports whether userID belongs to roomID.
func (s *Service) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	ok, err := s.memberships.IsMember(ctx, roomID, userID)
	if err != nil {
		return false, oops.Code("CHAT_MEMBERSHIP_CHECK_FAILED").
			With("room_id", roomID).
			With("user_id", userID).
			Wrap(err)
	}
	return ok, nil
}
