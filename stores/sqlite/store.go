package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"gigchat/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT,
			name TEXT,
			role TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			user1_id TEXT NOT NULL,
			user2_id TEXT NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			body TEXT,
			attachments TEXT,
			is_read INTEGER NOT NULL DEFAULT 0,
			read_at DATETIME,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			deleted_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages (chat_id, id);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT,
			message TEXT,
			type TEXT,
			link TEXT,
			is_read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id TEXT PRIMARY KEY,
			show_chat INTEGER NOT NULL DEFAULT 1
		);`,
	}
	for _, stmt := range stmts {
		if _, err = db.Exec(stmt); err != nil {
			log.Fatalf("failed to initialize sqlite schema: %v", err)
		}
	}

	return &sqliteStore{db}
}

func marshalAttachments(attachments []core.Attachment) ([]byte, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	return json.Marshal(attachments)
}

func scanMessage(scan func(dest ...any) error) (*core.Message, error) {
	var (
		m           core.Message
		attachments []byte
		readAt      sql.NullTime
		deletedAt   sql.NullTime
	)
	err := scan(&m.ID, &m.ChatID, &m.SenderID, &m.Body, &attachments,
		&m.Read, &readAt, &m.Deleted, &deletedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if readAt.Valid {
		m.ReadAt = &readAt.Time
	}
	if deletedAt.Valid {
		m.DeletedAt = &deletedAt.Time
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

const messageColumns = "id, chat_id, sender_id, body, attachments, is_read, read_at, is_deleted, deleted_at, created_at, updated_at"

// ChatStore implementation

func (s *sqliteStore) CreateChat(ctx context.Context, user1ID, user2ID string) (*core.Chat, error) {
	var chat core.Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user1_id, user2_id, created_at, updated_at FROM chats
		 WHERE is_deleted = 0 AND ((user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?))`,
		user1ID, user2ID, user2ID, user1ID,
	).Scan(&chat.ID, &chat.User1ID, &chat.User2ID, &chat.CreatedAt, &chat.UpdatedAt)
	if err == nil {
		return &chat, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now()
	chat = core.Chat{
		ID:        ulid.Make().String(),
		User1ID:   user1ID,
		User2ID:   user2ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO chats (id, user1_id, user2_id, is_deleted, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)",
		chat.ID, chat.User1ID, chat.User2ID, now, now)
	if err != nil {
		logrus.WithError(err).Error("Failed to create chat")
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"chat_id":  chat.ID,
		"user1_id": user1ID,
		"user2_id": user2ID,
	}).Info("Chat created")
	return &chat, nil
}

func (s *sqliteStore) GetChat(ctx context.Context, chatID string) (*core.Chat, error) {
	var chat core.Chat
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user1_id, user2_id, created_at, updated_at FROM chats WHERE id = ? AND is_deleted = 0",
		chatID,
	).Scan(&chat.ID, &chat.User1ID, &chat.User2ID, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (s *sqliteStore) ListChats(ctx context.Context, userID string) ([]*core.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user1_id, user2_id, created_at, updated_at FROM chats
		 WHERE is_deleted = 0 AND (user1_id = ? OR user2_id = ?)
		 ORDER BY updated_at DESC`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []*core.Chat{}
	for rows.Next() {
		var chat core.Chat
		if err := rows.Scan(&chat.ID, &chat.User1ID, &chat.User2ID, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, &chat)
	}
	return chats, rows.Err()
}

// MessageStore implementation

func (s *sqliteStore) CreateMessage(ctx context.Context, message *core.Message) error {
	now := time.Now()
	message.ID = ulid.Make().String()
	message.CreatedAt = now
	message.UpdatedAt = now

	attachments, err := marshalAttachments(message.Attachments)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, body, attachments, is_read, is_deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		message.ID, message.ChatID, message.SenderID, message.Body, attachments, now, now)
	if err != nil {
		logrus.WithError(err).Error("Failed to create message")
		return err
	}
	if _, err = tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", now, message.ChatID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) GetMessage(ctx context.Context, messageID string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", messageID)
	message, err := scanMessage(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return message, nil
}

func (s *sqliteStore) ListMessages(ctx context.Context, chatID string, page, pageSize int) ([]*core.Message, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		chatID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := []*core.Message{}
	for rows.Next() {
		message, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}
	return messages, total, rows.Err()
}

func (s *sqliteStore) UpdateMessageBody(ctx context.Context, messageID, body string) (*core.Message, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET body = ?, updated_at = ? WHERE id = ?", body, now, messageID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, core.ErrNotFound
	}
	return s.GetMessage(ctx, messageID)
}

func (s *sqliteStore) SoftDeleteMessage(ctx context.Context, messageID string) (*core.Message, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET is_deleted = 1, deleted_at = ? WHERE id = ?", now, messageID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, core.ErrNotFound
	}
	return s.GetMessage(ctx, messageID)
}

func (s *sqliteStore) LatestMessage(ctx context.Context, chatID string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE chat_id = ? AND is_deleted = 0 ORDER BY id DESC LIMIT 1",
		chatID)
	message, err := scanMessage(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return message, nil
}

func (s *sqliteStore) MarkMessagesRead(ctx context.Context, chatID, readerID string) (int, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1, read_at = ?
		 WHERE chat_id = ? AND sender_id != ? AND is_read = 0 AND is_deleted = 0`,
		now, chatID, readerID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *sqliteStore) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages
		 WHERE chat_id = ? AND sender_id != ? AND is_read = 0 AND is_deleted = 0`,
		chatID, userID).Scan(&count)
	return count, err
}

// NotificationStore implementation

func (s *sqliteStore) CreateNotification(ctx context.Context, n *core.Notification) error {
	n.ID = ulid.Make().String()
	n.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, message, type, link, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Link, n.CreatedAt)
	if err != nil {
		logrus.WithError(err).Error("Failed to create notification")
	}
	return err
}

func (s *sqliteStore) ListNotifications(ctx context.Context, userID string) ([]*core.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, message, type, link, is_read, created_at FROM notifications
		 WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []*core.Notification{}
	for rows.Next() {
		var n core.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

func (s *sqliteStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND user_id = ?", notificationID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *sqliteStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID)
	return err
}

func (s *sqliteStore) Preferences(ctx context.Context, userID string) (*core.NotificationPreferences, error) {
	var prefs core.NotificationPreferences
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, show_chat FROM notification_preferences WHERE user_id = ?",
		userID).Scan(&prefs.UserID, &prefs.ShowChat)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &prefs, nil
}

func (s *sqliteStore) SavePreferences(ctx context.Context, prefs *core.NotificationPreferences) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id, show_chat) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET show_chat = excluded.show_chat`,
		prefs.UserID, prefs.ShowChat)
	return err
}

// UserStore implementation

func (s *sqliteStore) GetUser(ctx context.Context, userID string) (*core.User, error) {
	var user core.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, name, role, created_at FROM users WHERE id = ?",
		userID).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *sqliteStore) SaveUser(ctx context.Context, user *core.User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name, role = excluded.role`,
		user.ID, user.Email, user.Name, user.Role, user.CreatedAt)
	return err
}
