// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/parlor-social/parlor/internal/live"
)

// Operation names. They double as authorization, cache, and audit keys.
const (
	OpCreate          = "notification.create"
	OpList            = "notification.list"
	OpListDisplay     = "notification.list_display"
	OpCountUnread     = "notification.count_unread"
	OpMarkRead        = "notification.mark_read"
	OpMarkAllRead     = "notification.mark_all_read"
	OpBroadcastSystem = "notification.broadcast_system"
	OpWelcome         = "notification.welcome"
)

// readOps lists operations whose results the caching decorator may retain.
var readOps = []string{OpList, OpListDisplay, OpCountUnread}

// Service is the notification capability. The core service, both decorators,
// and the access-control proxy all implement it, so the pipeline composes in
// any order at assembly time.
type Service interface {
	// Create persists a notification and pushes it to the recipient's topic.
	// Returns the persisted record with its assigned ID and timestamp.
	Create(ctx context.Context, req CreateRequest) (*Notification, error)
	// List returns the recipient's notifications, newest first.
	List(ctx context.Context, recipientID int64) ([]*Notification, error)
	// ListDisplay returns flattened display records with sender names resolved.
	ListDisplay(ctx context.Context, recipientID int64) ([]DisplayNotification, error)
	// CountUnread returns the number of unread notifications.
	CountUnread(ctx context.Context, recipientID int64) (int, error)
	// MarkRead marks one notification read. Idempotent.
	MarkRead(ctx context.Context, recipientID int64, id ulid.ULID) error
	// MarkAllRead marks all of the recipient's notifications read. Idempotent.
	MarkAllRead(ctx context.Context, recipientID int64) error
	// BroadcastSystem pushes an ephemeral system announcement to every live
	// session and returns how many sessions were targeted. Administrative.
	BroadcastSystem(ctx context.Context, message string) (int, error)
	// Welcome creates a welcome notification for a new member. Administrative.
	Welcome(ctx context.Context, recipientID int64) (*Notification, error)
}

// Repository is the storage collaborator. Calls are synchronous with no
// internal retry; unknown-entity validation is delegated here.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipientID int64) ([]*Notification, error)
	CountUnread(ctx context.Context, recipientID int64) (int, error)
	MarkRead(ctx context.Context, recipientID int64, id ulid.ULID) error
	MarkAllRead(ctx context.Context, recipientID int64) error
}

// UserDirectory resolves user IDs to display names.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// Publisher pushes a payload to a topic's subscribers.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// SystemPusher delivers a payload to every live session except one.
type SystemPusher interface {
	BroadcastExcept(payload []byte, excludedUserID int64)
	CountLive() int
}

// CoreService is the business-logic implementation of Service.
type CoreService struct {
	repo      Repository
	directory UserDirectory
	publisher Publisher
	pusher    SystemPusher
}

// NewCoreService creates the core notification service. All dependencies are
// required.
func NewCoreService(repo Repository, directory UserDirectory, publisher Publisher, pusher SystemPusher) (*CoreService, error) {
	if repo == nil {
		return nil, oops.Errorf("notification repository is required")
	}
	if directory == nil {
		return nil, oops.Errorf("user directory is required")
	}
	if publisher == nil {
		return nil, oops.Errorf("publisher is required")
	}
	if pusher == nil {
		return nil, oops.Errorf("system pusher is required")
	}
	return &CoreService{
		repo:      repo,
		directory: directory,
		publisher: publisher,
		pusher:    pusher,
	}, nil
}

// Create persists the notification and pushes it to the recipient's personal
// topic. A push that reaches nobody is not an error; the persisted record is
// retrievable by a pull-style read when the recipient reconnects.
func (s *CoreService) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	message := req.Message
	if message == "" {
		var senderName string
		if req.SenderID != nil {
			name, err := s.directory.DisplayName(ctx, *req.SenderID)
			if err == nil {
				senderName = name
			}
		}
		message = defaultMessage(req.Type, senderName)
	}

	n := &Notification{
		ID:          ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader),
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Type:        req.Type,
		Message:     message,
		EntityID:    req.EntityID,
		EntityType:  req.EntityType,
		Link:        req.Link,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, oops.Code("NOTIFICATION_CREATE_FAILED").
			With("type", string(req.Type)).
			With("recipient_id", req.RecipientID).
			Wrap(err)
	}

	s.push(n)
	return n, nil
}

// push publishes the notification envelope to the recipient's topic.
// Best-effort: encode failures are logged inside Envelope handling upstream;
// delivery failures are absorbed by the broadcaster.
func (s *CoreService) push(n *Notification) {
	display := DisplayNotification{
		ID:        n.ID.String(),
		Type:      n.Type,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	body, err := encodeBody(display)
	if err != nil {
		return
	}
	env := live.Envelope{
		Type: live.EnvelopeNotification,
		To:   n.RecipientID,
		Body: body,
	}
	if n.SenderID != nil {
		env.From = *n.SenderID
	}
	payload, err := env.Encode()
	if err != nil {
		return
	}
	s.publisher.Publish(live.UserTopic(n.RecipientID), payload)
}

// List returns the recipient's notifications, newest first.
func (s *CoreService) List(ctx context.Context, recipientID int64) ([]*Notification, error) {
	items, err := s.repo.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, oops.Code("NOTIFICATION_LIST_FAILED").
			With("recipient_id", recipientID).
			Wrap(err)
	}
	return items, nil
}

// ListDisplay returns flattened display records with sender names resolved.
func (s *CoreService) ListDisplay(ctx context.Context, recipientID int64) ([]DisplayNotification, error) {
	items, err := s.repo.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, oops.Code("NOTIFICATION_LIST_FAILED").
			With("recipient_id", recipientID).
			Wrap(err)
	}

	// Resolve each distinct sender once per call.
	names := make(map[int64]string)
	display := make([]DisplayNotification, 0, len(items))
	for _, n := range items {
		d := DisplayNotification{
			ID:        n.ID.String(),
			Type:      n.Type,
			Message:   n.Message,
			Link:      n.Link,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
		if n.SenderID != nil {
			name, ok := names[*n.SenderID]
			if !ok {
				resolved, err := s.directory.DisplayName(ctx, *n.SenderID)
				if err != nil {
					resolved = ""
				}
				names[*n.SenderID] = resolved
				name = resolved
			}
			d.SenderName = name
		}
		display = append(display, d)
	}
	return display, nil
}

// CountUnread returns the number of unread notifications for the recipient.
func (s *CoreService) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, oops.Code("NOTIFICATION_COUNT_FAILED").
			With("recipient_id", recipientID).
			Wrap(err)
	}
	return count, nil
}

// MarkRead marks one notification read. Marking an already-read notification
// is a no-op, not an error.
func (s *CoreService) MarkRead(ctx context.Context, recipientID int64, id ulid.ULID) error {
	if err := s.repo.MarkRead(ctx, recipientID, id); err != nil {
		return oops.Code("NOTIFICATION_MARK_READ_FAILED").
			With("recipient_id", recipientID).
			With("notification_id", id.String()).
			Wrap(err)
	}
	return nil
}

// MarkAllRead marks all of the recipient's notifications read. Idempotent.
func (s *CoreService) MarkAllRead(ctx context.Context, recipientID int64) error {
	if err := s.repo.MarkAllRead(ctx, recipientID); err != nil {
		return oops.Code("NOTIFICATION_MARK_ALL_READ_FAILED").
			With("recipient_id", recipientID).
			Wrap(err)
	}
	return nil
}

// BroadcastSystem pushes an ephemeral system announcement to every live
// session. Nothing is persisted; offline users never see it.
func (s *CoreService) BroadcastSystem(_ context.Context, message string) (int, error) {
	body, err := encodeBody(map[string]string{"message": message})
	if err != nil {
		return 0, err
	}
	env := live.Envelope{
		Type: live.EnvelopeNotification,
		Body: body,
	}
	payload, err := env.Encode()
	if err != nil {
		return 0, err
	}
	targeted := s.pusher.CountLive()
	s.pusher.BroadcastExcept(payload, 0)
	return targeted, nil
}

// Welcome creates a persisted welcome notification for a new member.
func (s *CoreService) Welcome(ctx context.Context, recipientID int64) (*Notification, error) {
	return s.Create(ctx, CreateRequest{
		RecipientID: recipientID,
		Type:        TypeWelcome,
	})
}
