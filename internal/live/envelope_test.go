// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package live_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlor-social/parlor/internal/live"
)

func TestEnvelope_Encode(t *testing.T) {
	t.Run("stamps sent_at when unset", func(t *testing.T) {
		env := live.Envelope{Type: live.EnvelopeTyping, From: 3, RoomID: 7}

		data, err := env.Encode()
		require.NoError(t, err)

		var decoded live.Envelope
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.False(t, decoded.SentAt.IsZero())
	})

	t.Run("preserves explicit sent_at", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		env := live.Envelope{Type: live.EnvelopeNewMessage, SentAt: at}

		data, err := env.Encode()
		require.NoError(t, err)

		decoded, err := live.DecodeEnvelope(data)
		require.NoError(t, err)
		assert.True(t, decoded.SentAt.Equal(at))
	})

	t.Run("omits zero routing fields", func(t *testing.T) {
		data, err := live.Envelope{Type: live.EnvelopeConnected}.Encode()
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.NotContains(t, raw, "from")
		assert.NotContains(t, raw, "to")
		assert.NotContains(t, raw, "room_id")
		assert.NotContains(t, raw, "body")
	})
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		env := live.Envelope{
			Type:   live.EnvelopeNewMessage,
			From:   3,
			To:     9,
			Body:   json.RawMessage(`{"text":"hi"}`),
			SentAt: time.Now().UTC().Truncate(time.Second),
		}
		data, err := env.Encode()
		require.NoError(t, err)

		decoded, err := live.DecodeEnvelope(data)
		require.NoError(t, err)
		assert.Equal(t, env.Type, decoded.Type)
		assert.Equal(t, env.From, decoded.From)
		assert.Equal(t, env.To, decoded.To)
		assert.JSONEq(t, string(env.Body), string(decoded.Body))
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := live.DecodeEnvelope([]byte(`{not json`))
		assert.Error(t, err)
	})

	t.Run("rejects missing type", func(t *testing.T) {
		_, err := live.DecodeEnvelope([]byte(`{"from":3}`))
		assert.Error(t, err)
	})
}
