package core

import (
	"context"
	"time"
)

// MaxAttachmentsPerMessage caps how many attachment records a single message
// may carry. Uploads happen elsewhere; only the resulting metadata is stored.
const MaxAttachmentsPerMessage = 5

type (
	// Chat is a conversation between exactly two users.
	Chat struct {
		ID        string    `json:"id"`
		User1ID   string    `json:"user1Id"`
		User2ID   string    `json:"user2Id"`
		Deleted   bool      `json:"-"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Attachment is metadata for a file that was already uploaded by the
	// caller. The chat core never touches the bytes behind URL.
	Attachment struct {
		URL      string `json:"url"`
		Kind     string `json:"type"` // "image" or "file"
		Filename string `json:"filename"`
		MimeType string `json:"mimetype"`
		Size     int64  `json:"fileSize"`
	}

	// Message belongs to one chat. Deletion is soft: the row stays, the
	// Deleted flag hides it from listings and unread counts.
	Message struct {
		ID          string       `json:"id"`
		ChatID      string       `json:"chatId"`
		SenderID    string       `json:"senderId"`
		Body        string       `json:"message"`
		Attachments []Attachment `json:"attachments,omitempty"`
		Read        bool         `json:"isRead"`
		ReadAt      *time.Time   `json:"readAt,omitempty"`
		Deleted     bool         `json:"isDeleted"`
		DeletedAt   *time.Time   `json:"deletedAt,omitempty"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
	}

	// ChatSummary is one row of a user's conversation list: the chat, the
	// other participant, the newest non-deleted message and the caller's
	// unread counter.
	ChatSummary struct {
		Chat        *Chat    `json:"chat"`
		OtherUser   *User    `json:"otherUser"`
		LastMessage *Message `json:"lastMessage"`
		UnreadCount int      `json:"unreadCount"`
	}

	// ChatStore is the persistence collaborator for conversations.
	ChatStore interface {
		// CreateChat returns the existing non-deleted chat between the two
		// users if there is one, otherwise creates it. Order of the two ids
		// does not matter.
		CreateChat(ctx context.Context, user1ID, user2ID string) (*Chat, error)

		// GetChat returns a chat by id. Soft-deleted chats are reported as
		// ErrNotFound.
		GetChat(ctx context.Context, chatID string) (*Chat, error)

		// ListChats returns all non-deleted chats the user participates in,
		// most recently updated first.
		ListChats(ctx context.Context, userID string) ([]*Chat, error)
	}

	// MessageStore is the persistence collaborator for messages.
	MessageStore interface {
		// CreateMessage persists a new message, assigning ID and timestamps
		// on the passed value.
		CreateMessage(ctx context.Context, message *Message) error

		// GetMessage returns a message by id, deleted or not, so callers can
		// inspect the Deleted flag themselves.
		GetMessage(ctx context.Context, messageID string) (*Message, error)

		// ListMessages returns a page of a chat's messages, newest first,
		// along with the total count. Pages are 1-based.
		ListMessages(ctx context.Context, chatID string, page, pageSize int) ([]*Message, int, error)

		// UpdateMessageBody replaces the body text and bumps UpdatedAt.
		UpdateMessageBody(ctx context.Context, messageID, body string) (*Message, error)

		// SoftDeleteMessage marks the message deleted and returns it.
		SoftDeleteMessage(ctx context.Context, messageID string) (*Message, error)

		// LatestMessage returns the newest non-deleted message of a chat, or
		// nil when the chat has none left.
		LatestMessage(ctx context.Context, chatID string) (*Message, error)

		// MarkMessagesRead marks every unread, non-deleted message in the
		// chat that was NOT sent by readerID as read. Returns the number of
		// messages actually flipped, so a repeat call reports zero.
		MarkMessagesRead(ctx context.Context, chatID, readerID string) (int, error)

		// UnreadCount counts messages in the chat not sent by userID that
		// are unread and not deleted.
		UnreadCount(ctx context.Context, chatID, userID string) (int, error)
	}
)

// Participant reports whether userID is one of the chat's two users.
func (c *Chat) Participant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the chat member that is not userID.
func (c *Chat) OtherParticipant(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}
