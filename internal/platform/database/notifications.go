package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/vortechron/nightwatch-testing/internal/domain"
)

const notificationsTable = "notifications"

// NotificationChannel persists notifications in the notifications table.
type NotificationChannel struct {
	db *DB
}

// NewNotificationChannel creates a NotificationChannel.
func NewNotificationChannel(db *DB) *NotificationChannel {
	return &NotificationChannel{db: db}
}

// Notify stores n for user.
func (c *NotificationChannel) Notify(ctx context.Context, user *domain.User, n domain.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	_, err = c.db.Goqu.Insert(notificationsTable).
		Rows(goqu.Record{
			"id":            n.ID.String(),
			"type":          n.Type,
			"notifiable_id": user.ID,
			"data":          string(data),
			"created_at":    n.CreatedAt,
		}).
		Prepared(true).
		Executor().
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", MapError(err))
	}
	return nil
}

// CountFor returns how many notifications user has.
func (c *NotificationChannel) CountFor(ctx context.Context, userID int64) (int64, error) {
	n, err := c.db.Goqu.From(notificationsTable).
		Where(goqu.C("notifiable_id").Eq(userID)).
		Prepared(true).
		CountContext(ctx)
	return n, MapError(err)
}
