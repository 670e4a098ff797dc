// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlor-social/parlor/internal/notify"
)

// failingService returns a fixed error from every operation.
type failingService struct {
	err error
}

func (s *failingService) Create(context.Context, notify.CreateRequest) (*notify.Notification, error) {
	return nil, s.err
}

func (s *failingService) List(context.Context, int64) ([]*notify.Notification, error) {
	return nil, s.err
}

func (s *failingService) ListDisplay(context.Context, int64) ([]notify.DisplayNotification, error) {
	return nil, s.err
}

func (s *failingService) CountUnread(context.Context, int64) (int, error) { return 0, s.err }

func (s *failingService) MarkRead(context.Context, int64, ulid.ULID) error { return s.err }

func (s *failingService) MarkAllRead(context.Context, int64) error { return s.err }

func (s *failingService) BroadcastSystem(context.Context, string) (int, error) { return 0, s.err }

func (s *failingService) Welcome(context.Context, int64) (*notify.Notification, error) {
	return nil, s.err
}

// logLine is a parsed JSON log entry.
type logLine struct {
	Level       string  `json:"level"`
	Msg         string  `json:"msg"`
	Error       string  `json:"error"`
	Code        string  `json:"code"`
	RecipientID int64   `json:"recipient_id"`
	DurationMS  float64 `json:"duration_ms"`
	Count       int     `json:"count"`
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func parseLines(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()
	var lines []logLine
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line logLine
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestLoggingService_Success(t *testing.T) {
	next := newRecordingService()
	logger, buf := captureLogger()
	svc := notify.NewLoggingService(next, logger)

	_, err := svc.List(context.Background(), 42)
	require.NoError(t, err)

	lines := parseLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "DEBUG", lines[0].Level)
	assert.Equal(t, notify.OpList, lines[0].Msg)
	assert.Equal(t, int64(42), lines[0].RecipientID)
}

func TestLoggingService_Failure(t *testing.T) {
	failure := oops.Code("NOTIFICATION_LIST_FAILED").Errorf("db down")
	logger, buf := captureLogger()
	svc := notify.NewLoggingService(&failingService{err: failure}, logger)

	_, err := svc.List(context.Background(), 42)
	assert.ErrorIs(t, err, failure)

	lines := parseLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ERROR", lines[0].Level)
	assert.Contains(t, lines[0].Msg, notify.OpList)
	assert.Contains(t, lines[0].Msg, "failed")
	assert.Contains(t, lines[0].Error, "db down")
	assert.Equal(t, "NOTIFICATION_LIST_FAILED", lines[0].Code)
}

func TestLoggingService_CoversEveryOperation(t *testing.T) {
	next := newRecordingService()
	logger, buf := captureLogger()
	svc := notify.NewLoggingService(next, logger)
	ctx := context.Background()

	_, _ = svc.Create(ctx, notify.CreateRequest{RecipientID: 1, Type: notify.TypeLike})
	_, _ = svc.List(ctx, 1)
	_, _ = svc.ListDisplay(ctx, 1)
	_, _ = svc.CountUnread(ctx, 1)
	_ = svc.MarkRead(ctx, 1, ulid.Make())
	_ = svc.MarkAllRead(ctx, 1)
	_, _ = svc.BroadcastSystem(ctx, "hi")
	_, _ = svc.Welcome(ctx, 1)

	lines := parseLines(t, buf)
	require.Len(t, lines, 8)

	seen := make(map[string]bool)
	for _, line := range lines {
		seen[line.Msg] = true
	}
	for _, op := range []string{
		notify.OpCreate, notify.OpList, notify.OpListDisplay, notify.OpCountUnread,
		notify.OpMarkRead, notify.OpMarkAllRead, notify.OpBroadcastSystem, notify.OpWelcome,
	} {
		assert.True(t, seen[op], "missing log for %s", op)
	}
}
