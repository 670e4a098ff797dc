// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package live

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// EnvelopeType identifies the kind of wire message.
type EnvelopeType string

const (
	EnvelopeConnected    EnvelopeType = "connected"
	EnvelopeJoinRoom     EnvelopeType = "join_room"
	EnvelopeLeaveRoom    EnvelopeType = "leave_room"
	EnvelopeMessageRead  EnvelopeType = "message_read"
	EnvelopeNewMessage   EnvelopeType = "new_message"
	EnvelopeNotification EnvelopeType = "notification"
	EnvelopeUserOnline   EnvelopeType = "user_online"
	EnvelopeUserOffline  EnvelopeType = "user_offline"
	EnvelopeTyping       EnvelopeType = "typing"
)

// Envelope is the JSON wire message exchanged with connected clients.
// From/To/RoomID carry enough identity and room context to route the
// message; Body holds the type-specific payload.
type Envelope struct {
	Type   EnvelopeType    `json:"type"`
	From   int64           `json:"from,omitempty"`
	To     int64           `json:"to,omitempty"`
	RoomID int64           `json:"room_id,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	SentAt time.Time       `json:"sent_at,omitzero"`
}

// Encode marshals the envelope, stamping SentAt if unset.
func (e Envelope) Encode() ([]byte, error) {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, oops.Code("ENVELOPE_ENCODE_FAILED").
			With("type", string(e.Type)).
			Wrap(err)
	}
	return data, nil
}

// DecodeEnvelope parses a wire message received from a client.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, oops.Code("ENVELOPE_DECODE_FAILED").Wrap(err)
	}
	if e.Type == "" {
		return Envelope{}, oops.Code("ENVELOPE_DECODE_FAILED").Errorf("envelope missing type")
	}
	return e, nil
}
