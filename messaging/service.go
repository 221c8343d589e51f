package messaging

import (
	"context"
	"time"

	"gigchat/core"

	"github.com/sirupsen/logrus"
)

// Store is the union of persistence collaborators the service talks to.
type Store interface {
	core.ChatStore
	core.MessageStore
	core.NotificationStore
	core.UserStore
}

// Service orchestrates the message dispatch pipeline, read-receipt
// synchronization and notification fan-out. Persistence always completes
// before any socket event goes out; emit failures never roll anything back.
type Service struct {
	store   Store
	emitter Emitter
}

func NewService(store Store, emitter Emitter) *Service {
	return &Service{store: store, emitter: emitter}
}

// participantChat loads a live chat and verifies userID belongs to it.
func (s *Service) participantChat(ctx context.Context, chatID, userID string) (*core.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.Participant(userID) {
		return nil, core.ErrNotAuthorized
	}
	return chat, nil
}

// Authorize verifies the user participates in a live chat. The socket layer
// calls this before any room join, since rooms themselves know nothing about
// chat ownership.
func (s *Service) Authorize(ctx context.Context, chatID, userID string) error {
	_, err := s.participantChat(ctx, chatID, userID)
	return err
}

// CreateChat returns the chat between the two users, creating it if needed.
// Both users must exist.
func (s *Service) CreateChat(ctx context.Context, user1ID, user2ID string) (*core.Chat, error) {
	for _, id := range []string{user1ID, user2ID} {
		if _, err := s.store.GetUser(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.store.CreateChat(ctx, user1ID, user2ID)
}

// SendMessage runs the dispatch pipeline: authorize, persist, then fan out.
// Any failure before or during persistence aborts with no events emitted.
func (s *Service) SendMessage(ctx context.Context, senderID, chatID, body string, attachments []core.Attachment) (*core.Message, error) {
	chat, err := s.participantChat(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}

	if len(attachments) > core.MaxAttachmentsPerMessage {
		attachments = attachments[:core.MaxAttachmentsPerMessage]
	}

	message := &core.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Body:        body,
		Attachments: attachments,
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		logrus.WithFields(logrus.Fields{
			"chat_id":   chatID,
			"sender_id": senderID,
			"error":     err,
		}).Error("Failed to persist message")
		return nil, err
	}

	// Everyone currently viewing the conversation, sender included.
	s.emitter.ToRoom(chatID, EventNewMessage, map[string]any{"message": message})

	recipientID := chat.OtherParticipant(senderID)
	if s.chatNotificationsAllowed(ctx, recipientID) {
		senderName := "User"
		if sender, err := s.store.GetUser(ctx, senderID); err == nil {
			senderName = sender.DisplayName()
		}
		s.emitter.ToUser(recipientID, EventChatNotification, map[string]any{
			"message":     message,
			"recipientId": recipientID,
			"senderId":    senderID,
			"senderName":  senderName,
		})
	}

	// The conversation list must reflect truth regardless of notification
	// opt-outs, so latestMessage is unconditional and goes to both sides.
	s.pushLatestMessage(chat, message)
	s.pushChatUpdated(ctx, chat, senderID, message)

	return message, nil
}

// chatNotificationsAllowed checks the recipient's per-category opt-out. No
// stored preferences means allow; a preference read failure also falls back
// to allow rather than silently dropping the notification.
func (s *Service) chatNotificationsAllowed(ctx context.Context, userID string) bool {
	prefs, err := s.store.Preferences(ctx, userID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err}).
			Warn("Failed to load notification preferences")
		return true
	}
	return prefs == nil || prefs.ShowChat
}

// pushLatestMessage refreshes both participants' conversation sidebars. A nil
// message means the chat has no messages left.
func (s *Service) pushLatestMessage(chat *core.Chat, message *core.Message) {
	payload := map[string]any{"chatId": chat.ID, "message": message}
	// Untyped nil so the JSON payload carries null rather than a zero struct.
	if message == nil {
		payload["message"] = nil
	}
	s.emitter.ToUser(chat.User1ID, EventLatestMessage, payload)
	s.emitter.ToUser(chat.User2ID, EventLatestMessage, payload)
}

// pushChatUpdated sends unread-counter updates to both participants: the
// recipient's real counter, zero for the sender who just wrote.
func (s *Service) pushChatUpdated(ctx context.Context, chat *core.Chat, senderID string, message *core.Message) {
	recipientID := chat.OtherParticipant(senderID)
	unread, err := s.store.UnreadCount(ctx, chat.ID, recipientID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"chat_id": chat.ID, "error": err}).
			Warn("Failed to compute unread count for chat update")
		return
	}

	update := map[string]any{
		"chatId":        chat.ID,
		"lastMessage":   message.Body,
		"lastMessageAt": message.CreatedAt,
		"senderId":      senderID,
	}

	recipientUpdate := make(map[string]any, len(update)+1)
	senderUpdate := make(map[string]any, len(update)+1)
	for k, v := range update {
		recipientUpdate[k] = v
		senderUpdate[k] = v
	}
	recipientUpdate["unreadCount"] = unread
	senderUpdate["unreadCount"] = 0

	s.emitter.ToUser(recipientID, EventChatUpdated, recipientUpdate)
	s.emitter.ToUser(senderID, EventChatUpdated, senderUpdate)
}

// UpdateMessage edits a message's body. Only the sender may edit. If the
// edited message is the chat's most recent one, both sidebars get refreshed.
func (s *Service) UpdateMessage(ctx context.Context, userID, chatID, messageID, body string) (*core.Message, error) {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.ChatID != chatID || message.Deleted {
		return nil, core.ErrNotFound
	}
	if message.SenderID != userID {
		return nil, core.ErrNotAuthorized
	}

	updated, err := s.store.UpdateMessageBody(ctx, messageID, body)
	if err != nil {
		return nil, err
	}

	s.emitter.ToRoom(chatID, EventMessageUpdated, map[string]any{"message": updated})

	latest, err := s.store.LatestMessage(ctx, chatID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"chat_id": chatID, "error": err}).
			Warn("Failed to resolve latest message after update")
		return updated, nil
	}
	if latest != nil && latest.ID == updated.ID {
		if chat, err := s.store.GetChat(ctx, chatID); err == nil {
			s.pushLatestMessage(chat, updated)
		}
	}
	return updated, nil
}

// DeleteMessage soft-deletes a message. Only the sender may delete. Deleting
// the chat's most recent message re-pushes the new latest one, which may be
// null when nothing is left.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.Deleted {
		return core.ErrNotFound
	}
	if message.SenderID != userID {
		return core.ErrNotAuthorized
	}

	// Decide latest-ness before the flag flips; afterwards the row is
	// invisible to LatestMessage.
	latest, latestErr := s.store.LatestMessage(ctx, message.ChatID)
	wasLatest := latestErr == nil && latest != nil && latest.ID == messageID

	if _, err := s.store.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}

	s.emitter.ToRoom(message.ChatID, EventMessageDeleted, map[string]any{
		"chatId":    message.ChatID,
		"messageId": messageID,
	})

	if wasLatest {
		chat, err := s.store.GetChat(ctx, message.ChatID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"chat_id": message.ChatID, "error": err}).
				Warn("Failed to load chat for latest-message recompute")
			return nil
		}
		newLatest, err := s.store.LatestMessage(ctx, message.ChatID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"chat_id": message.ChatID, "error": err}).
				Warn("Failed to recompute latest message after delete")
			return nil
		}
		s.pushLatestMessage(chat, newLatest)
	}
	return nil
}

// MarkMessagesAsRead flips every unread message from the other participant
// and tells all of the reader's devices. Safe to call repeatedly: the second
// call flips nothing but still re-emits the zero-unread state.
func (s *Service) MarkMessagesAsRead(ctx context.Context, chatID, readerID string) error {
	if _, err := s.participantChat(ctx, chatID, readerID); err != nil {
		return err
	}

	affected, err := s.store.MarkMessagesRead(ctx, chatID, readerID)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"chat_id":   chatID,
		"reader_id": readerID,
		"affected":  affected,
	}).Debug("Marked messages as read")

	s.emitter.ToUser(readerID, EventMessagesRead, map[string]any{
		"chatId":      chatID,
		"unreadCount": 0,
		"lastReadAt":  time.Now(),
	})
	return nil
}

// UnreadCount counts messages in the chat the user has not read yet.
func (s *Service) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return 0, err
	}
	return s.store.UnreadCount(ctx, chatID, userID)
}

// ChatMessages returns a page of the chat's history, newest first.
func (s *Service) ChatMessages(ctx context.Context, userID, chatID string, page, pageSize int) ([]*core.Message, int, error) {
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return nil, 0, err
	}
	return s.store.ListMessages(ctx, chatID, page, pageSize)
}

// ChatDetails returns the chat and the other participant's profile.
func (s *Service) ChatDetails(ctx context.Context, userID, chatID string) (*core.Chat, *core.User, error) {
	chat, err := s.participantChat(ctx, chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	other, err := s.store.GetUser(ctx, chat.OtherParticipant(userID))
	if err != nil {
		return nil, nil, err
	}
	return chat, other, nil
}

// ListChats builds the caller's conversation list: other participant, newest
// non-deleted message and the unread counter per chat.
func (s *Service) ListChats(ctx context.Context, userID string) ([]*core.ChatSummary, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*core.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := &core.ChatSummary{Chat: chat}

		if other, err := s.store.GetUser(ctx, chat.OtherParticipant(userID)); err == nil {
			summary.OtherUser = other
		}
		last, err := s.store.LatestMessage(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		summary.LastMessage = last
		unread, err := s.store.UnreadCount(ctx, chat.ID, userID)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = unread

		summaries = append(summaries, summary)
	}
	return summaries, nil
}
