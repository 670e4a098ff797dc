// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parlor-social/parlor/internal/identity"
	"github.com/parlor-social/parlor/internal/notify"
)

// API exposes the notification pipeline over HTTP. This is the seam the
// forum's domain logic (likes, comments, friend actions) and admin tooling
// call into; every request passes through the full proxy/decorator chain.
//
// The caller's identity arrives in the X-User-ID header and is trusted
// as-is, the same boundary contract as the websocket handshake.
type API struct {
	notifications notify.Service
}

// NewAPI creates the HTTP API around the (decorated, proxied) service.
func NewAPI(notifications notify.Service) *API {
	return &API{notifications: notifications}
}

// Mount registers the API routes on mux.
func (a *API) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /notifications", a.handleCreate)
	mux.HandleFunc("GET /notifications", a.handleList)
	mux.HandleFunc("GET /notifications/unread_count", a.handleCountUnread)
	mux.HandleFunc("POST /notifications/{id}/read", a.handleMarkRead)
	mux.HandleFunc("POST /notifications/read_all", a.handleMarkAllRead)
	mux.HandleFunc("POST /admin/broadcast", a.handleBroadcast)
	mux.HandleFunc("POST /admin/welcome", a.handleWelcome)
}

// bind extracts the caller identity from the request.
func bind(r *http.Request) (*http.Request, int64, bool) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || userID <= 0 {
		return r, 0, false
	}
	return r.WithContext(identity.WithUserID(r.Context(), userID)), userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}

// writeError maps the pipeline's error taxonomy onto HTTP statuses. Denials
// are explicit rejections, not generic failures.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, notify.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, notify.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, notify.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type createPayload struct {
	RecipientID int64       `json:"recipient_id"`
	SenderID    *int64      `json:"sender_id,omitempty"`
	Type        notify.Type `json:"type"`
	Message     string      `json:"message,omitempty"`
	EntityID    *int64      `json:"entity_id,omitempty"`
	EntityType  string      `json:"entity_type,omitempty"`
	Link        string      `json:"link,omitempty"`
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	r, _, ok := bind(r)
	if !ok {
		http.Error(w, "missing or invalid X-User-ID", http.StatusBadRequest)
		return
	}
	var p createPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.RecipientID <= 0 || p.Type == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	n, err := a.notifications.Create(r.Context(), notify.CreateRequest{
		RecipientID: p.RecipientID,
		SenderID:    p.SenderID,
		Type:        p.Type,
		Message:     p.Message,
		EntityID:    p.EntityID,
		EntityType:  p.EntityType,
		Link:        p.Link,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": n.ID.String()})
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	r, userID, ok := bind(r)
	if !ok {
		http.Error(w, "missing or invalid X-User-ID", http.StatusBadRequest)
		return
	}
	items, err := a.notifications.ListDisplay(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []notify.DisplayNotification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleCountUnread(w http.ResponseWriter, r *http.Request) {
	r, userID, ok := bind(r)
	if !ok {
		http.Error(w, "missing or invalid X-User-ID", http.StatusBadRequest)
		return
	}
	count, err := a.notifications.CountUnread(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	r, userID, ok := bind(r)
	if !ok {
		http.Error(w, "missing or invalid X-User-ID", http.StatusBadRequest)
		return
	}
	id, err := parseULID(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid notification id", http.StatusBadRequest)
		return
	}
	if err := a.notifications.MarkRead(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	r, userID, ok := bind(r)
	if !ok {
		http.Error(w, "missing or invalid X-User-ID", http.StatusBadRequest)
		return
	}
	if err := a.notifications.MarkAllRead(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	r, _, ok := bind(r)
	if !ok {
		http.Error(w, "missing or invalid X-User-ID", http.StatusBadRequest)
		return
	}
	var p struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Message == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	targeted, err := a.notifications.BroadcastSystem(r.Context(), p.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"targeted": targeted})
}

func (a *API) handleWelcome(w http.ResponseWriter, r *http.Request) {
	r, _, ok := bind(r)
	if !ok {
		http.Error(w, "missing or invalid X-User-ID", http.StatusBadRequest)
		return
	}
	var p struct {
		RecipientID int64 `json:"recipient_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.RecipientID <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	n, err := a.notifications.Welcome(r.Context(), p.RecipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": n.ID.String()})
}
