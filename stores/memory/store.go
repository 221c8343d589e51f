package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gigchat/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore keeps every collaborator's data in plain maps. It is the default
// backend and doubles as the fixture for service and handler tests.
type memStore struct {
	mu            sync.RWMutex
	chats         map[string]*core.Chat
	messages      map[string]*core.Message
	notifications map[string]*core.Notification
	preferences   map[string]*core.NotificationPreferences
	users         map[string]*core.User
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		chats:         make(map[string]*core.Chat),
		messages:      make(map[string]*core.Message),
		notifications: make(map[string]*core.Notification),
		preferences:   make(map[string]*core.NotificationPreferences),
		users:         make(map[string]*core.User),
	}
}

func copyMessage(m *core.Message) *core.Message {
	c := *m
	if m.Attachments != nil {
		c.Attachments = append([]core.Attachment(nil), m.Attachments...)
	}
	return &c
}

// CreateChat returns the existing chat between the pair if one is live,
// otherwise creates it. Part of the ChatStore interface.
func (s *memStore) CreateChat(ctx context.Context, user1ID, user2ID string) (*core.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chat := range s.chats {
		if chat.Deleted {
			continue
		}
		if (chat.User1ID == user1ID && chat.User2ID == user2ID) ||
			(chat.User1ID == user2ID && chat.User2ID == user1ID) {
			return chat, nil
		}
	}

	now := time.Now()
	chat := &core.Chat{
		ID:        ulid.Make().String(),
		User1ID:   user1ID,
		User2ID:   user2ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chats[chat.ID] = chat
	logrus.WithFields(logrus.Fields{
		"chat_id":  chat.ID,
		"user1_id": user1ID,
		"user2_id": user2ID,
	}).Info("Chat created")
	return chat, nil
}

// GetChat returns a chat by id. Part of the ChatStore interface.
func (s *memStore) GetChat(ctx context.Context, chatID string) (*core.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[chatID]
	if !ok || chat.Deleted {
		return nil, core.ErrNotFound
	}
	return chat, nil
}

// ListChats returns the user's chats, most recently updated first. Part of
// the ChatStore interface.
func (s *memStore) ListChats(ctx context.Context, userID string) ([]*core.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := []*core.Chat{}
	for _, chat := range s.chats {
		if !chat.Deleted && chat.Participant(userID) {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

// CreateMessage persists a message and touches the owning chat's UpdatedAt.
// Part of the MessageStore interface.
func (s *memStore) CreateMessage(ctx context.Context, message *core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	message.ID = ulid.Make().String()
	message.CreatedAt = now
	message.UpdatedAt = now
	s.messages[message.ID] = copyMessage(message)

	if chat, ok := s.chats[message.ChatID]; ok {
		chat.UpdatedAt = now
	}
	return nil
}

// GetMessage returns a message by id, deleted or not. Part of the
// MessageStore interface.
func (s *memStore) GetMessage(ctx context.Context, messageID string) (*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	message, ok := s.messages[messageID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyMessage(message), nil
}

func (s *memStore) chatMessagesLocked(chatID string) []*core.Message {
	messages := []*core.Message{}
	for _, message := range s.messages {
		if message.ChatID == chatID {
			messages = append(messages, message)
		}
	}
	// ULIDs are lexicographically ordered by creation time; sorting by ID
	// keeps same-millisecond messages in a stable order.
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ID > messages[j].ID
	})
	return messages
}

// ListMessages returns a page of the chat's messages, newest first. Part of
// the MessageStore interface.
func (s *memStore) ListMessages(ctx context.Context, chatID string, page, pageSize int) ([]*core.Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.chatMessagesLocked(chatID)
	total := len(all)

	start := (page - 1) * pageSize
	if start >= total {
		return []*core.Message{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	pageOut := make([]*core.Message, 0, end-start)
	for _, message := range all[start:end] {
		pageOut = append(pageOut, copyMessage(message))
	}
	return pageOut, total, nil
}

// UpdateMessageBody replaces a message's text. Part of the MessageStore
// interface.
func (s *memStore) UpdateMessageBody(ctx context.Context, messageID, body string) (*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[messageID]
	if !ok {
		return nil, core.ErrNotFound
	}
	message.Body = body
	message.UpdatedAt = time.Now()
	return copyMessage(message), nil
}

// SoftDeleteMessage flags a message deleted. Part of the MessageStore
// interface.
func (s *memStore) SoftDeleteMessage(ctx context.Context, messageID string) (*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[messageID]
	if !ok {
		return nil, core.ErrNotFound
	}
	now := time.Now()
	message.Deleted = true
	message.DeletedAt = &now
	return copyMessage(message), nil
}

// LatestMessage returns the chat's newest non-deleted message, or nil. Part
// of the MessageStore interface.
func (s *memStore) LatestMessage(ctx context.Context, chatID string) (*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, message := range s.chatMessagesLocked(chatID) {
		if !message.Deleted {
			return copyMessage(message), nil
		}
	}
	return nil, nil
}

// MarkMessagesRead flips the other participant's unread messages. Part of the
// MessageStore interface.
func (s *memStore) MarkMessagesRead(ctx context.Context, chatID, readerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	affected := 0
	for _, message := range s.messages {
		if message.ChatID == chatID && message.SenderID != readerID && !message.Read && !message.Deleted {
			message.Read = true
			message.ReadAt = &now
			affected++
		}
	}
	return affected, nil
}

// UnreadCount counts unread, non-deleted messages not sent by userID. Part of
// the MessageStore interface.
func (s *memStore) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, message := range s.messages {
		if message.ChatID == chatID && message.SenderID != userID && !message.Read && !message.Deleted {
			count++
		}
	}
	return count, nil
}

// CreateNotification persists a notification. Part of the NotificationStore
// interface.
func (s *memStore) CreateNotification(ctx context.Context, n *core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = ulid.Make().String()
	n.CreatedAt = time.Now()
	stored := *n
	s.notifications[n.ID] = &stored
	return nil
}

// ListNotifications returns the user's notifications, newest first. Part of
// the NotificationStore interface.
func (s *memStore) ListNotifications(ctx context.Context, userID string) ([]*core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notifications := []*core.Notification{}
	for _, n := range s.notifications {
		if n.UserID == userID {
			stored := *n
			notifications = append(notifications, &stored)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].ID > notifications[j].ID
	})
	return notifications, nil
}

// MarkNotificationRead marks one notification read and purges it. Part of the
// NotificationStore interface.
func (s *memStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[notificationID]
	if !ok || n.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.notifications, notificationID)
	return nil
}

// MarkAllNotificationsRead purges all of the user's notifications. Part of
// the NotificationStore interface.
func (s *memStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.notifications {
		if n.UserID == userID {
			delete(s.notifications, id)
		}
	}
	return nil
}

// Preferences returns stored preferences or nil. Part of the
// NotificationStore interface.
func (s *memStore) Preferences(ctx context.Context, userID string) (*core.NotificationPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, ok := s.preferences[userID]
	if !ok {
		return nil, nil
	}
	stored := *prefs
	return &stored, nil
}

// SavePreferences creates or replaces preferences. Part of the
// NotificationStore interface.
func (s *memStore) SavePreferences(ctx context.Context, prefs *core.NotificationPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *prefs
	s.preferences[prefs.UserID] = &stored
	return nil
}

// GetUser returns a user by id. Part of the UserStore interface.
func (s *memStore) GetUser(ctx context.Context, userID string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	stored := *user
	return &stored, nil
}

// SaveUser creates or replaces a user record. Part of the UserStore
// interface.
func (s *memStore) SaveUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}
