// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

// Package gateway terminates websocket sessions and bridges them onto the
// live delivery core.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/parlor-social/parlor/internal/chat"
	"github.com/parlor-social/parlor/internal/identity"
	"github.com/parlor-social/parlor/internal/live"
)

// Server upgrades HTTP requests to websocket sessions and runs their pumps.
type Server struct {
	addr        string
	registry    *live.Registry
	broadcaster *live.Broadcaster
	chats       *chat.Service
	api         *API
	upgrader    websocket.Upgrader

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a gateway server. api may be nil for websocket-only
// deployments; everything else is required.
func NewServer(addr string, registry *live.Registry, broadcaster *live.Broadcaster, chats *chat.Service, api *API) (*Server, error) {
	if registry == nil {
		return nil, oops.Errorf("session registry is required")
	}
	if broadcaster == nil {
		return nil, oops.Errorf("broadcaster is required")
	}
	if chats == nil {
		return nil, oops.Errorf("chat service is required")
	}
	return &Server{
		addr:        addr,
		registry:    registry,
		broadcaster: broadcaster,
		chats:       chats,
		api:         api,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway sits behind the platform edge, which enforces
			// origin policy. Tighten this when exposing it directly.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Start begins accepting websocket connections on /ws.
// It returns an error channel in the same shape as the observability server.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("gateway already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	if s.api != nil {
		s.api.Mount(mux)
	}

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("gateway server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("gateway started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the gateway down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_gateway").Wrap(err)
		}
	}
	slog.Info("gateway stopped")
	return nil
}

// Addr returns the listen address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleWS binds the connecting identity, upgrades the transport, and runs
// the session until it drops.
//
// The identity arrives as a connection-time query parameter and is trusted
// as-is: verifying it belongs to an authentication collaborator in front of
// this core.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "missing or invalid user_id", http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	c := newClient(userID, ws)
	s.registry.Register(userID, c)
	slog.Info("session opened", "user_id", userID, "live", s.registry.CountLive())

	// Personal notification stream. The callback guards on the session's
	// closed flag because the broadcaster only tears topics down wholesale.
	if c.markSubscribed(live.UserTopic(userID)) {
		c.join(live.UserTopic(userID))
		s.broadcaster.Subscribe(live.UserTopic(userID), func(payload []byte) error {
			if c.isClosed() {
				return nil
			}
			return c.Send(payload)
		})
	} else {
		c.join(live.UserTopic(userID))
	}

	s.sendConnected(c)
	s.announcePresence(live.EnvelopeUserOnline, userID)

	go c.writePump()
	s.readPump(r.Context(), c)

	// Session over: eagerly unregister, then announce. There is no pending
	// work to cancel; undelivered pushes are simply dropped.
	s.registry.Unregister(userID, c)
	//nolint:errcheck // Close never fails
	c.Close()
	s.announcePresence(live.EnvelopeUserOffline, userID)
	slog.Info("session closed", "user_id", userID, "live", s.registry.CountLive())
}

func (s *Server) sendConnected(c *client) {
	env := live.Envelope{Type: live.EnvelopeConnected, To: c.userID}
	payload, err := env.Encode()
	if err != nil {
		return
	}
	//nolint:errcheck // soft failure, session may already be gone
	c.Send(payload)
}

func (s *Server) announcePresence(typ live.EnvelopeType, userID int64) {
	env := live.Envelope{Type: typ, From: userID}
	payload, err := env.Encode()
	if err != nil {
		return
	}
	s.registry.BroadcastExcept(payload, userID)
}

// readPump consumes frames from the socket until it closes.
func (s *Server) readPump(ctx context.Context, c *client) {
	defer func() {
		//nolint:errcheck // socket is going away regardless
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxFrameSize)
	//nolint:errcheck // deadline errors surface on the read itself
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		//nolint:errcheck // deadline errors surface on the read itself
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx = identity.WithUserID(ctx, c.userID)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws read failed", "user_id", c.userID, "error", err)
			}
			return
		}

		env, err := live.DecodeEnvelope(data)
		if err != nil {
			slog.Debug("bad frame", "user_id", c.userID, "error", err)
			continue
		}
		s.handleEnvelope(ctx, c, env)
	}
}

func parseULID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.With("ulid", s).Wrap(err)
	}
	return id, nil
}

// handleEnvelope routes one inbound client frame.
func (s *Server) handleEnvelope(ctx context.Context, c *client, env live.Envelope) {
	switch env.Type {
	case live.EnvelopeJoinRoom:
		s.handleJoin(ctx, c, env)

	case live.EnvelopeLeaveRoom:
		if env.RoomID > 0 {
			c.leave(live.RoomTopic(env.RoomID))
		} else if env.To > 0 {
			c.leave(live.PairTopic(c.userID, env.To))
		}

	case live.EnvelopeNewMessage:
		s.handleNewMessage(ctx, c, env)

	case live.EnvelopeMessageRead:
		if env.RoomID <= 0 {
			return
		}
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return
		}
		msgID, err := parseULID(body.ID)
		if err != nil {
			return
		}
		s.chats.MarkRead(ctx, env.RoomID, c.userID, msgID)

	case live.EnvelopeTyping:
		if env.RoomID > 0 && c.hasJoined(live.RoomTopic(env.RoomID)) {
			s.chats.Typing(ctx, env.RoomID, c.userID)
		}

	default:
		slog.Debug("unhandled frame type", "type", string(env.Type), "user_id", c.userID)
	}
}

// handleJoin subscribes the session to a room topic (after a membership
// check) or, when To is set, to the canonical pair topic for a direct
// conversation.
func (s *Server) handleJoin(ctx context.Context, c *client, env live.Envelope) {
	var topic string
	switch {
	case env.RoomID > 0:
		ok, err := s.chats.IsMember(ctx, env.RoomID, c.userID)
		if err != nil || !ok {
			slog.Debug("join refused", "user_id", c.userID, "room_id", env.RoomID, "error", err)
			return
		}
		topic = live.RoomTopic(env.RoomID)
	case env.To > 0:
		topic = live.PairTopic(c.userID, env.To)
	default:
		return
	}

	c.join(topic)
	if c.markSubscribed(topic) {
		s.broadcaster.Subscribe(topic, c.topicCallback(topic))
	}
}

func (s *Server) handleNewMessage(ctx context.Context, c *client, env live.Envelope) {
	var body struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(env.Body, &body); err != nil || body.Body == "" {
		return
	}

	switch {
	case env.RoomID > 0:
		if _, err := s.chats.SendToRoom(ctx, env.RoomID, c.userID, body.Body); err != nil {
			slog.Debug("room message rejected", "user_id", c.userID, "room_id", env.RoomID, "error", err)
		}
	case env.To > 0:
		if _, err := s.chats.SendDirect(ctx, c.userID, env.To, body.Body); err != nil {
			slog.Debug("direct message rejected", "user_id", c.userID, "to", env.To, "error", err)
		}
	}
}
