// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlor-social/parlor/internal/gateway"
	"github.com/parlor-social/parlor/internal/identity"
	"github.com/parlor-social/parlor/internal/notify"
)

// stubNotifyService returns canned values and records the bound identity.
type stubNotifyService struct {
	err        error
	lastCaller int64
	lastReq    notify.CreateRequest
	markedID   ulid.ULID
}

func (s *stubNotifyService) caller(ctx context.Context) {
	s.lastCaller, _ = identity.UserID(ctx)
}

func (s *stubNotifyService) Create(ctx context.Context, req notify.CreateRequest) (*notify.Notification, error) {
	s.caller(ctx)
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &notify.Notification{ID: ulid.Make(), RecipientID: req.RecipientID, Type: req.Type}, nil
}

func (s *stubNotifyService) List(ctx context.Context, _ int64) ([]*notify.Notification, error) {
	s.caller(ctx)
	return nil, s.err
}

func (s *stubNotifyService) ListDisplay(ctx context.Context, _ int64) ([]notify.DisplayNotification, error) {
	s.caller(ctx)
	if s.err != nil {
		return nil, s.err
	}
	return []notify.DisplayNotification{{Message: "carol liked your post", CreatedAt: time.Now()}}, nil
}

func (s *stubNotifyService) CountUnread(ctx context.Context, _ int64) (int, error) {
	s.caller(ctx)
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

func (s *stubNotifyService) MarkRead(ctx context.Context, _ int64, id ulid.ULID) error {
	s.caller(ctx)
	s.markedID = id
	return s.err
}

func (s *stubNotifyService) MarkAllRead(ctx context.Context, _ int64) error {
	s.caller(ctx)
	return s.err
}

func (s *stubNotifyService) BroadcastSystem(ctx context.Context, _ string) (int, error) {
	s.caller(ctx)
	if s.err != nil {
		return 0, s.err
	}
	return 5, nil
}

func (s *stubNotifyService) Welcome(ctx context.Context, recipientID int64) (*notify.Notification, error) {
	s.caller(ctx)
	if s.err != nil {
		return nil, s.err
	}
	return &notify.Notification{ID: ulid.Make(), RecipientID: recipientID, Type: notify.TypeWelcome}, nil
}

func newAPIServer(t *testing.T, svc notify.Service) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	gateway.NewAPI(svc).Mount(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, userID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_IdentityBinding(t *testing.T) {
	svc := &stubNotifyService{}
	srv := newAPIServer(t, svc)

	t.Run("missing header is rejected", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/notifications", "", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("non-numeric header is rejected", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/notifications", "carol", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("identity reaches the service context", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/notifications", "42", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(42), svc.lastCaller)
	})
}

func TestAPI_List(t *testing.T) {
	srv := newAPIServer(t, &stubNotifyService{})

	resp := doRequest(t, srv, http.MethodGet, "/notifications", "42", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []notify.DisplayNotification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "carol liked your post", items[0].Message)
}

func TestAPI_Create(t *testing.T) {
	svc := &stubNotifyService{}
	srv := newAPIServer(t, svc)

	t.Run("creates from a valid payload", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/notifications", "3",
			`{"recipient_id":42,"sender_id":3,"type":"like","entity_id":100,"entity_type":"post"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		assert.Equal(t, int64(42), svc.lastReq.RecipientID)
		assert.Equal(t, notify.TypeLike, svc.lastReq.Type)
		require.NotNil(t, svc.lastReq.SenderID)
		assert.Equal(t, int64(3), *svc.lastReq.SenderID)
	})

	t.Run("rejects a payload without a recipient", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/notifications", "3", `{"type":"like"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_CountUnread(t *testing.T) {
	srv := newAPIServer(t, &stubNotifyService{})

	resp := doRequest(t, srv, http.MethodGet, "/notifications/unread_count", "42", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body["unread"])
}

func TestAPI_MarkRead(t *testing.T) {
	svc := &stubNotifyService{}
	srv := newAPIServer(t, svc)

	t.Run("marks by ULID path segment", func(t *testing.T) {
		id := ulid.Make()
		resp := doRequest(t, srv, http.MethodPost, "/notifications/"+id.String()+"/read", "42", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, id, svc.markedID)
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/notifications/not-a-ulid/read", "42", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unauthorized maps to 403", notify.ErrUnauthorized, http.StatusForbidden},
		{"rate limited maps to 429", notify.ErrRateLimited, http.StatusTooManyRequests},
		{"not found maps to 404", notify.ErrNotFound, http.StatusNotFound},
		{"anything else maps to 500", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newAPIServer(t, &stubNotifyService{err: tc.err})
			resp := doRequest(t, srv, http.MethodGet, "/notifications", "42", "")
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestAPI_AdminEndpoints(t *testing.T) {
	t.Run("broadcast returns the targeted count", func(t *testing.T) {
		srv := newAPIServer(t, &stubNotifyService{})
		resp := doRequest(t, srv, http.MethodPost, "/admin/broadcast", "1", `{"message":"maintenance"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]int
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 5, body["targeted"])
	})

	t.Run("broadcast without a message is rejected", func(t *testing.T) {
		srv := newAPIServer(t, &stubNotifyService{})
		resp := doRequest(t, srv, http.MethodPost, "/admin/broadcast", "1", `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("welcome creates a notification", func(t *testing.T) {
		srv := newAPIServer(t, &stubNotifyService{})
		resp := doRequest(t, srv, http.MethodPost, "/admin/welcome", "1", `{"recipient_id":42}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NotEmpty(t, body["id"])
	})

	t.Run("denial surfaces as 403", func(t *testing.T) {
		srv := newAPIServer(t, &stubNotifyService{err: notify.ErrUnauthorized})
		resp := doRequest(t, srv, http.MethodPost, "/admin/broadcast", "42", `{"message":"hi"}`)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
