// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/parlor-social/parlor/pkg/errutil"
)

// LoggingService is a decorator that records every operation with its
// elapsed time and outcome. Errors are logged and always re-raised; this
// layer never swallows anything.
type LoggingService struct {
	next   Service
	logger *slog.Logger
}

// NewLoggingService wraps next with operation logging.
func NewLoggingService(next Service, logger *slog.Logger) *LoggingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingService{next: next, logger: logger}
}

func (l *LoggingService) observe(op string, start time.Time, err error, attrs ...any) {
	elapsed := time.Since(start)
	if err != nil {
		errutil.LogError(l.logger, op+" failed", err)
		return
	}
	attrs = append(attrs, "duration_ms", elapsed.Milliseconds())
	l.logger.Debug(op, attrs...)
}

func (l *LoggingService) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	start := time.Now()
	n, err := l.next.Create(ctx, req)
	if n != nil {
		l.observe(OpCreate, start, err, "notification_id", n.ID.String(), "type", string(n.Type))
	} else {
		l.observe(OpCreate, start, err)
	}
	return n, err
}

func (l *LoggingService) List(ctx context.Context, recipientID int64) ([]*Notification, error) {
	start := time.Now()
	items, err := l.next.List(ctx, recipientID)
	l.observe(OpList, start, err, "recipient_id", recipientID, "count", len(items))
	return items, err
}

func (l *LoggingService) ListDisplay(ctx context.Context, recipientID int64) ([]DisplayNotification, error) {
	start := time.Now()
	items, err := l.next.ListDisplay(ctx, recipientID)
	l.observe(OpListDisplay, start, err, "recipient_id", recipientID, "count", len(items))
	return items, err
}

func (l *LoggingService) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	start := time.Now()
	count, err := l.next.CountUnread(ctx, recipientID)
	l.observe(OpCountUnread, start, err, "recipient_id", recipientID, "count", count)
	return count, err
}

func (l *LoggingService) MarkRead(ctx context.Context, recipientID int64, id ulid.ULID) error {
	start := time.Now()
	err := l.next.MarkRead(ctx, recipientID, id)
	l.observe(OpMarkRead, start, err, "recipient_id", recipientID, "notification_id", id.String())
	return err
}

func (l *LoggingService) MarkAllRead(ctx context.Context, recipientID int64) error {
	start := time.Now()
	err := l.next.MarkAllRead(ctx, recipientID)
	l.observe(OpMarkAllRead, start, err, "recipient_id", recipientID)
	return err
}

func (l *LoggingService) BroadcastSystem(ctx context.Context, message string) (int, error) {
	start := time.Now()
	targeted, err := l.next.BroadcastSystem(ctx, message)
	l.observe(OpBroadcastSystem, start, err, "targeted", targeted)
	return targeted, err
}

func (l *LoggingService) Welcome(ctx context.Context, recipientID int64) (*Notification, error) {
	start := time.Now()
	n, err := l.next.Welcome(ctx, recipientID)
	l.observe(OpWelcome, start, err, "recipient_id", recipientID)
	return n, err
}
