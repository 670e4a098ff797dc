// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/parlor-social/parlor/internal/notify"
)

// NotificationRepository implements notify.Repository using PostgreSQL.
type NotificationRepository struct {
	pool Querier
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool Querier) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create stores a new notification. A foreign-key violation (unknown
// recipient or sender) surfaces as notify.ErrNotFound, since recipient
// validation is delegated to storage.
func (r *NotificationRepository) Create(ctx context.Context, n *notify.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (
			id, recipient_id, sender_id, type, message,
			entity_id, entity_type, link, read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID.String(),
		n.RecipientID,
		n.SenderID,
		string(n.Type),
		n.Message,
		n.EntityID,
		n.EntityType,
		n.Link,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return oops.Code("NOTIFICATION_RECIPIENT_UNKNOWN").
				With("recipient_id", n.RecipientID).
				Wrap(notify.ErrNotFound)
		}
		return oops.With("operation", "insert notification").Wrap(err)
	}
	return nil
}

// ListByRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID int64) ([]*notify.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, sender_id, type, message,
		       entity_id, entity_type, link, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC`,
		recipientID,
	)
	if err != nil {
		return nil, oops.With("operation", "list notifications").Wrap(err)
	}
	defer rows.Close()

	var items []*notify.Notification
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate notifications").Wrap(err)
	}
	return items, nil
}

func scanNotification(row pgx.Row) (*notify.Notification, error) {
	var (
		n       notify.Notification
		rawID   string
		rawType string
	)
	if err := row.Scan(
		&rawID, &n.RecipientID, &n.SenderID, &rawType, &n.Message,
		&n.EntityID, &n.EntityType, &n.Link, &n.Read, &n.CreatedAt,
	); err != nil {
		return nil, oops.With("operation", "scan notification row").Wrap(err)
	}

	id, err := ulid.Parse(rawID)
	if err != nil {
		return nil, oops.With("operation", "parse notification id").With("id", rawID).Wrap(err)
	}
	n.ID = id
	n.Type = notify.Type(rawType)
	return &n, nil
}

// CountUnread returns the number of unread notifications for the recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT read`,
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, oops.With("operation", "count unread").Wrap(err)
	}
	return count, nil
}

// MarkRead marks one notification read. The read flag is monotonic: marking
// an already-read notification changes nothing and is not an error. An
// unknown notification is notify.ErrNotFound.
func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID int64, id ulid.ULID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`,
		id.String(), recipientID,
	)
	if err != nil {
		return oops.With("operation", "mark read").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("notification_id", id.String()).
			With("recipient_id", recipientID).
			Wrap(notify.ErrNotFound)
	}
	return nil
}

// MarkAllRead marks every notification of the recipient read. Idempotent.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND NOT read`,
		recipientID,
	)
	if err != nil {
		return oops.With("operation", "mark all read").Wrap(err)
	}
	return nil
}

// UserDirectory resolves display names from the shared users table.
type UserDirectory struct {
	pool Querier
}

// NewUserDirectory creates a directory backed by the users table.
func NewUserDirectory(pool Querier) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// DisplayName returns the user's display name, or notify.ErrNotFound.
func (d *UserDirectory) DisplayName(ctx context.Context, userID int64) (string, error) {
	var name string
	err := d.pool.QueryRow(ctx,
		`SELECT display_name FROM users WHERE id = $1`,
		userID,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.With("user_id", userID).Wrap(notify.ErrNotFound)
	}
	if err != nil {
		return "", oops.With("operation", "get display name").Wrap(err)
	}
	return name, nil
}
