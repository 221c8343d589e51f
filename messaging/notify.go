package messaging

import (
	"context"

	"gigchat/core"

	"github.com/sirupsen/logrus"
)

// NotificationPayload is what unrelated domain flows (bid lifecycle, payment
// release, profile updates) hand over to reach a user, with no knowledge of
// chat rooms.
type NotificationPayload struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type"`
	Link    string `json:"link,omitempty"`
}

// Notify persists the notification and pushes it live to the user's private
// channel. The two effects are deliberately not transactional: a crash in
// between leaves a persisted-but-undelivered notification, which the client
// reconciles from the pull API on reconnect.
func (s *Service) Notify(ctx context.Context, userID string, payload NotificationPayload) (*core.Notification, error) {
	n := &core.Notification{
		UserID:  userID,
		Title:   payload.Title,
		Message: payload.Message,
		Type:    payload.Type,
		Link:    payload.Link,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	s.emitter.ToUser(userID, EventUserNotification, payload)
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    payload.Type,
	}).Debug("Notification dispatched")
	return n, nil
}

// NotifyProfileUpdate pushes the live-only profile update event. Nothing is
// persisted; the profile service owns that record.
func (s *Service) NotifyProfileUpdate(userID, message string) {
	s.emitter.ToUser(userID, EventProfileUpdate, map[string]any{
		"title":   "Profile Updated",
		"message": message,
	})
}
