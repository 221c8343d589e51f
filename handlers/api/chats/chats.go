package chats

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gigchat/core"
	"gigchat/messaging"
	"gigchat/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type sendMessageRequest struct {
	Message     string            `json:"message"`
	Attachments []core.Attachment `json:"attachments,omitempty"`
}

type updateMessageRequest struct {
	Message string `json:"message"`
}

type createChatRequest struct {
	UserID string `json:"userId"`
}

func renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Chat not found or access denied"})
	case errors.Is(err, core.ErrNotAuthorized):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, map[string]string{"error": "Chat not found or access denied"})
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Internal server error"})
	}
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return "", false
	}
	return claims.UserID, true
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// HandleCreateChat opens (or returns) the conversation between the caller
// and another user.
func HandleCreateChat(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		var req createChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "userId is required"})
			return
		}
		if req.UserID == userID {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Cannot open a chat with yourself"})
			return
		}

		chat, err := service.CreateChat(r.Context(), userID, req.UserID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "One or both users not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "userID": userID}).Error("Failed to create chat")
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{"data": chat})
	}
}

// HandleListChats returns the caller's conversation list with last message
// and unread counters.
func HandleListChats(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		summaries, err := service.ListChats(r.Context(), userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "userID": userID}).Error("Failed to list chats")
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{"data": summaries})
	}
}

// HandleGetChat returns the chat and the other participant's profile.
func HandleGetChat(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		chat, other, err := service.ChatDetails(r.Context(), userID, chi.URLParam(r, "chatID"))
		if err != nil {
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{
			"id":        chat.ID,
			"otherUser": other,
			"createdAt": chat.CreatedAt,
			"updatedAt": chat.UpdatedAt,
		})
	}
}

// HandleListMessages returns a page of a chat's history, newest first.
func HandleListMessages(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		page, pageSize := pagination(r)
		messages, total, err := service.ChatMessages(r.Context(), userID, chi.URLParam(r, "chatID"), page, pageSize)
		if err != nil {
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{
			"data": messages,
			"meta": map[string]any{
				"total":      total,
				"page":       page,
				"pageSize":   pageSize,
				"totalPages": (total + pageSize - 1) / pageSize,
			},
		})
	}
}

// HandleSendMessage runs the dispatch pipeline over HTTP. Attachments arrive
// as already-uploaded metadata; the upload service is a separate concern.
func HandleSendMessage(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		message, err := service.SendMessage(r.Context(), userID, chi.URLParam(r, "chatID"), req.Message, req.Attachments)
		if err != nil {
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{
			"data":    message,
			"message": "Message sent successfully",
		})
	}
}

// HandleUpdateMessage edits a message the caller sent.
func HandleUpdateMessage(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		var req updateMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		updated, err := service.UpdateMessage(r.Context(), userID, chi.URLParam(r, "chatID"), chi.URLParam(r, "messageID"), req.Message)
		if err != nil {
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{
			"data":    updated,
			"message": "Message updated successfully",
		})
	}
}

// HandleDeleteMessage soft-deletes a message the caller sent.
func HandleDeleteMessage(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		if err := service.DeleteMessage(r.Context(), userID, chi.URLParam(r, "messageID")); err != nil {
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{
			"success": true,
			"message": "Message deleted successfully",
		})
	}
}

// HandleMarkRead marks the chat read for the caller and syncs their devices.
func HandleMarkRead(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		if err := service.MarkMessagesAsRead(r.Context(), chi.URLParam(r, "chatID"), userID); err != nil {
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{"success": true})
	}
}

// HandleUnreadCount returns the caller's unread counter for one chat.
func HandleUnreadCount(service *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		count, err := service.UnreadCount(r.Context(), chi.URLParam(r, "chatID"), userID)
		if err != nil {
			renderServiceError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{"unreadCount": count})
	}
}
