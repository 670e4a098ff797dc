// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

// Package notify contains the notification service and the layered pipeline
// around it: caching and logging decorators plus the access-control proxy.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Type identifies the kind of notification.
type Type string

const (
	TypeLike          Type = "like"
	TypeComment       Type = "comment"
	TypeReply         Type = "reply"
	TypeFriendRequest Type = "friend_request"
	TypeFriendAccept  Type = "friend_accept"
	TypeFriendReject  Type = "friend_reject"
	TypeFriendCancel  Type = "friend_cancel"
	TypeMention       Type = "mention"
	TypeSystem        Type = "system"
	TypeWelcome       Type = "welcome"
)

// Notification is a persisted event addressed to one recipient.
// The read flag is monotonic: once true it never reverts.
type Notification struct {
	ID          ulid.ULID
	RecipientID int64
	SenderID    *int64 // nil for system-originated notifications
	Type        Type
	Message     string
	EntityID    *int64 // related entity (post, comment, user), if any
	EntityType  string
	Link        string // deep link into the client, if any
	Read        bool
	CreatedAt   time.Time
}

// DisplayNotification is a flattened read model with the sender name
// resolved, suitable for handing straight to a client.
type DisplayNotification struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	SenderName string    `json:"sender_name,omitempty"`
	Message    string    `json:"message"`
	Link       string    `json:"link,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateRequest describes a notification to create. Message, when empty, is
// filled from the canonical template for the type.
type CreateRequest struct {
	RecipientID int64
	SenderID    *int64
	Type        Type
	Message     string
	EntityID    *int64
	EntityType  string
	Link        string
}

// Typed constructors are the seams domain logic (likes, comments, friend
// actions, mentions) calls into.

// NewLike builds a "post liked" notification request.
func NewLike(recipientID, senderID, postID int64) CreateRequest {
	return CreateRequest{
		RecipientID: recipientID,
		SenderID:    &senderID,
		Type:        TypeLike,
		EntityID:    &postID,
		EntityType:  "post",
		Link:        fmt.Sprintf("/posts/%d", postID),
	}
}

// NewComment builds a "commented on your post" notification request.
func NewComment(recipientID, senderID, postID int64) CreateRequest {
	return CreateRequest{
		RecipientID: recipientID,
		SenderID:    &senderID,
		Type:        TypeComment,
		EntityID:    &postID,
		EntityType:  "post",
		Link:        fmt.Sprintf("/posts/%d", postID),
	}
}

// NewReply builds a "replied to your comment" notification request.
func NewReply(recipientID, senderID, commentID int64) CreateRequest {
	return CreateRequest{
		RecipientID: recipientID,
		SenderID:    &senderID,
		Type:        TypeReply,
		EntityID:    &commentID,
		EntityType:  "comment",
	}
}

// NewMention builds a "mentioned you" notification request.
func NewMention(recipientID, senderID, postID int64) CreateRequest {
	return CreateRequest{
		RecipientID: recipientID,
		SenderID:    &senderID,
		Type:        TypeMention,
		EntityID:    &postID,
		EntityType:  "post",
		Link:        fmt.Sprintf("/posts/%d", postID),
	}
}

// NewFriendAction builds a friend-lifecycle notification request. typ must be
// one of the friend_* types.
func NewFriendAction(typ Type, recipientID, senderID int64) CreateRequest {
	return CreateRequest{
		RecipientID: recipientID,
		SenderID:    &senderID,
		Type:        typ,
		EntityID:    &senderID,
		EntityType:  "user",
		Link:        fmt.Sprintf("/users/%d", senderID),
	}
}

// messageTemplates holds the canonical default message per type. %s is the
// sender's display name where one applies.
var messageTemplates = map[Type]string{
	TypeLike:          "%s liked your post",
	TypeComment:       "%s commented on your post",
	TypeReply:         "%s replied to your comment",
	TypeFriendRequest: "%s sent you a friend request",
	TypeFriendAccept:  "%s accepted your friend request",
	TypeFriendReject:  "%s declined your friend request",
	TypeFriendCancel:  "%s cancelled their friend request",
	TypeMention:       "%s mentioned you",
	TypeSystem:        "System announcement",
	TypeWelcome:       "Welcome to Parlor!",
}

// encodeBody marshals an envelope body payload.
func encodeBody(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, oops.Code("BODY_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}

// defaultMessage renders the canonical template for typ. senderName is
// ignored for sender-less types.
func defaultMessage(typ Type, senderName string) string {
	tmpl, ok := messageTemplates[typ]
	if !ok {
		return string(typ)
	}
	if typ == TypeSystem || typ == TypeWelcome {
		return tmpl
	}
	if senderName == "" {
		senderName = "Someone"
	}
	return fmt.Sprintf(tmpl, senderName)
}
