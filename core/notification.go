package core

import (
	"context"
	"time"
)

type (
	// Notification is a generic domain event addressed to one user: bid
	// accepted, payment released, profile updated and so on. It is persisted
	// and pushed live independently; neither effect waits for the other.
	Notification struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		Title     string    `json:"title,omitempty"`
		Message   string    `json:"message,omitempty"`
		Type      string    `json:"type"` // "info" | "success" | "warning" | "error"
		Link      string    `json:"link,omitempty"`
		Read      bool      `json:"isRead"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// NotificationPreferences holds a user's opt-outs, checked per category
	// before pushing the live event. A missing record means everything is
	// allowed.
	NotificationPreferences struct {
		UserID   string `json:"userId"`
		ShowChat bool   `json:"showChat"`
	}

	NotificationStore interface {
		// CreateNotification persists a notification, assigning ID and
		// CreatedAt on the passed value.
		CreateNotification(ctx context.Context, n *Notification) error

		// ListNotifications returns the user's notifications, newest first.
		ListNotifications(ctx context.Context, userID string) ([]*Notification, error)

		// MarkNotificationRead marks a single notification read and purges
		// it. A notification owned by someone else is ErrNotFound.
		MarkNotificationRead(ctx context.Context, notificationID, userID string) error

		// MarkAllNotificationsRead marks all of the user's notifications
		// read and purges them.
		MarkAllNotificationsRead(ctx context.Context, userID string) error

		// Preferences returns the user's notification preferences, or nil
		// when none have been stored.
		Preferences(ctx context.Context, userID string) (*NotificationPreferences, error)

		// SavePreferences creates or replaces the user's preferences.
		SavePreferences(ctx context.Context, prefs *NotificationPreferences) error
	}
)
