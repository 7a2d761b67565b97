package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationTypeTest identifies notifications produced by the harness.
const NotificationTypeTest = "nightwatch_test"

// Notification is a single record delivered through the database channel.
type Notification struct {
	ID           uuid.UUID         `json:"id"`
	Type         string            `json:"type"`
	NotifiableID int64             `json:"notifiable_id"`
	Data         map[string]string `json:"data"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewTestNotification builds the harness notification for the given user.
func NewTestNotification(userID int64, message string, now time.Time) Notification {
	return Notification{
		ID:           uuid.New(),
		Type:         NotificationTypeTest,
		NotifiableID: userID,
		Data: map[string]string{
			"message":      message,
			"triggered_at": now.UTC().Format(time.RFC3339),
		},
		CreatedAt: now.UTC(),
	}
}
