package notifications

import (
	"encoding/json"
	"errors"
	"net/http"

	"gigchat/core"
	"gigchat/messaging"
	"gigchat/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type notifyRequest struct {
	UserID  string `json:"userId"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type"`
	Link    string `json:"link,omitempty"`
}

func callerClaims(w http.ResponseWriter, r *http.Request) (userID, role string, ok bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return "", "", false
	}
	return claims.UserID, claims.Role, true
}

// HandleList returns the caller's notification history, newest first. This
// is the pull API clients reconcile against after a reconnect.
func HandleList(store core.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, ok := callerClaims(w, r)
		if !ok {
			return
		}

		notifications, err := store.ListNotifications(r.Context(), userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "userID": userID}).Error("Failed to list notifications")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list notifications"})
			return
		}
		render.JSON(w, r, map[string]any{"data": notifications})
	}
}

// HandleMarkRead acknowledges a single notification, which also purges it.
func HandleMarkRead(store core.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, ok := callerClaims(w, r)
		if !ok {
			return
		}

		err := store.MarkNotificationRead(r.Context(), chi.URLParam(r, "notificationID"), userID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Notification not found"})
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to mark notification read"})
			return
		}
		render.JSON(w, r, map[string]any{"success": true})
	}
}

// HandleMarkAllRead acknowledges and purges everything the caller has.
func HandleMarkAllRead(store core.NotificationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, ok := callerClaims(w, r)
		if !ok {
			return
		}

		if err := store.MarkAllNotificationsRead(r.Context(), userID); err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to mark notifications read"})
			return
		}
		render.JSON(w, r, map[string]any{"success": true})
	}
}

// HandleNotify lets trusted backend flows (bid lifecycle, payments, profile)
// persist-and-push a notification to any user. Regular users may only
// address themselves.
func HandleNotify(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, role, ok := callerClaims(w, r)
		if !ok {
			return
		}

		var req notifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Type == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "userId and type are required"})
			return
		}
		if req.UserID != callerID && role != "admin" && role != "service" {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Not allowed to notify other users"})
			return
		}

		n, err := service.Notify(r.Context(), req.UserID, messaging.NotificationPayload{
			Title:   req.Title,
			Message: req.Message,
			Type:    req.Type,
			Link:    req.Link,
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "userID": req.UserID}).Error("Failed to dispatch notification")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to dispatch notification"})
			return
		}
		render.JSON(w, r, map[string]any{"data": n})
	}
}
