package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gigchat/core"
)

func setupStore(t *testing.T) *sqliteStore {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "test.db"))
}

func TestCreateChat_ReusesExistingPair(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("CreateChat() failed: %v", err)
	}
	again, err := s.CreateChat(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("CreateChat() failed: %v", err)
	}
	if again.ID != chat.ID {
		t.Errorf("CreateChat() for the reversed pair = %s, want %s", again.ID, chat.ID)
	}
}

func TestGetChat_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetChat(context.Background(), "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetChat() error = %v, want ErrNotFound", err)
	}
}

func TestMessages_RoundtripWithAttachments(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	chat, _ := s.CreateChat(ctx, "alice", "bob")
	message := &core.Message{
		ChatID:   chat.ID,
		SenderID: "alice",
		Body:     "see attached",
		Attachments: []core.Attachment{
			{URL: "https://cdn.example.com/brief.pdf", Kind: "file", Filename: "brief.pdf", MimeType: "application/pdf", Size: 1024},
		},
	}
	if err := s.CreateMessage(ctx, message); err != nil {
		t.Fatalf("CreateMessage() failed: %v", err)
	}
	if message.ID == "" {
		t.Fatal("CreateMessage() should assign an id")
	}

	got, err := s.GetMessage(ctx, message.ID)
	if err != nil {
		t.Fatalf("GetMessage() failed: %v", err)
	}
	if got.Body != "see attached" {
		t.Errorf("GetMessage() body = %q", got.Body)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "brief.pdf" {
		t.Errorf("GetMessage() attachments = %+v, want the stored file", got.Attachments)
	}
}

func TestListMessages_NewestFirstPaged(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	chat, _ := s.CreateChat(ctx, "alice", "bob")
	for _, body := range []string{"one", "two", "three"} {
		if err := s.CreateMessage(ctx, &core.Message{ChatID: chat.ID, SenderID: "alice", Body: body}); err != nil {
			t.Fatalf("CreateMessage() failed: %v", err)
		}
	}

	page, total, err := s.ListMessages(ctx, chat.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListMessages() failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page) != 2 || page[0].Body != "three" || page[1].Body != "two" {
		t.Errorf("first page = %+v, want newest first", page)
	}

	last, _, err := s.ListMessages(ctx, chat.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListMessages() failed: %v", err)
	}
	if len(last) != 1 || last[0].Body != "one" {
		t.Errorf("last page = %+v, want the oldest message alone", last)
	}
}

func TestLatestMessage_SkipsDeleted(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	chat, _ := s.CreateChat(ctx, "alice", "bob")
	first := &core.Message{ChatID: chat.ID, SenderID: "alice", Body: "first"}
	second := &core.Message{ChatID: chat.ID, SenderID: "alice", Body: "second"}
	for _, m := range []*core.Message{first, second} {
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage() failed: %v", err)
		}
	}

	deleted, err := s.SoftDeleteMessage(ctx, second.ID)
	if err != nil {
		t.Fatalf("SoftDeleteMessage() failed: %v", err)
	}
	if !deleted.Deleted || deleted.DeletedAt == nil {
		t.Errorf("SoftDeleteMessage() = %+v, want deleted flag and timestamp", deleted)
	}

	latest, err := s.LatestMessage(ctx, chat.ID)
	if err != nil {
		t.Fatalf("LatestMessage() failed: %v", err)
	}
	if latest == nil || latest.ID != first.ID {
		t.Errorf("LatestMessage() = %+v, want the surviving message", latest)
	}

	if _, err := s.SoftDeleteMessage(ctx, first.ID); err != nil {
		t.Fatalf("SoftDeleteMessage() failed: %v", err)
	}
	latest, err = s.LatestMessage(ctx, chat.ID)
	if err != nil {
		t.Fatalf("LatestMessage() failed: %v", err)
	}
	if latest != nil {
		t.Errorf("LatestMessage() with everything deleted = %+v, want nil", latest)
	}
}

func TestMarkMessagesRead_OnlyOtherSide(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	chat, _ := s.CreateChat(ctx, "alice", "bob")
	for _, m := range []*core.Message{
		{ChatID: chat.ID, SenderID: "alice", Body: "from alice 1"},
		{ChatID: chat.ID, SenderID: "alice", Body: "from alice 2"},
		{ChatID: chat.ID, SenderID: "bob", Body: "from bob"},
	} {
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage() failed: %v", err)
		}
	}

	affected, err := s.MarkMessagesRead(ctx, chat.ID, "bob")
	if err != nil {
		t.Fatalf("MarkMessagesRead() failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("MarkMessagesRead() affected = %d, want 2", affected)
	}

	count, err := s.UnreadCount(ctx, chat.ID, "alice")
	if err != nil {
		t.Fatalf("UnreadCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("UnreadCount() for alice = %d, want 1", count)
	}

	affected, err = s.MarkMessagesRead(ctx, chat.ID, "bob")
	if err != nil {
		t.Fatalf("repeat MarkMessagesRead() failed: %v", err)
	}
	if affected != 0 {
		t.Errorf("repeat MarkMessagesRead() affected = %d, want 0", affected)
	}
}

func TestUpdateMessageBody_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.UpdateMessageBody(context.Background(), "missing", "body")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateMessageBody() error = %v, want ErrNotFound", err)
	}
}

func TestNotifications_ReadPurges(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, n := range []*core.Notification{
		{UserID: "alice", Type: "info", Message: "first"},
		{UserID: "alice", Type: "success", Message: "second"},
		{UserID: "bob", Type: "info", Message: "not yours"},
	} {
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification() failed: %v", err)
		}
	}

	list, err := s.ListNotifications(ctx, "alice")
	if err != nil {
		t.Fatalf("ListNotifications() failed: %v", err)
	}
	if len(list) != 2 || list[0].Message != "second" {
		t.Errorf("ListNotifications() = %+v, want alice's two, newest first", list)
	}

	err = s.MarkNotificationRead(ctx, list[0].ID, "bob")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("MarkNotificationRead() cross-user error = %v, want ErrNotFound", err)
	}

	if err := s.MarkAllNotificationsRead(ctx, "alice"); err != nil {
		t.Fatalf("MarkAllNotificationsRead() failed: %v", err)
	}
	list, _ = s.ListNotifications(ctx, "alice")
	if len(list) != 0 {
		t.Errorf("after read-all alice still has %+v", list)
	}
	remaining, _ := s.ListNotifications(ctx, "bob")
	if len(remaining) != 1 {
		t.Errorf("bob's notifications were touched: %+v", remaining)
	}
}

func TestPreferences_Upsert(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	prefs, err := s.Preferences(ctx, "alice")
	if err != nil {
		t.Fatalf("Preferences() failed: %v", err)
	}
	if prefs != nil {
		t.Errorf("Preferences() for a fresh user = %+v, want nil", prefs)
	}

	if err := s.SavePreferences(ctx, &core.NotificationPreferences{UserID: "alice", ShowChat: false}); err != nil {
		t.Fatalf("SavePreferences() failed: %v", err)
	}
	if err := s.SavePreferences(ctx, &core.NotificationPreferences{UserID: "alice", ShowChat: true}); err != nil {
		t.Fatalf("second SavePreferences() failed: %v", err)
	}

	prefs, err = s.Preferences(ctx, "alice")
	if err != nil {
		t.Fatalf("Preferences() failed: %v", err)
	}
	if prefs == nil || !prefs.ShowChat {
		t.Errorf("Preferences() = %+v, want the upserted value", prefs)
	}
}

func TestSaveUser_Upsert(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	user := &core.User{Name: "Alice", Email: "alice@example.com", Role: "freelancer"}
	if err := s.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser() failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("SaveUser() should assign an id when missing")
	}

	user.Name = "Alice B."
	if err := s.SaveUser(ctx, user); err != nil {
		t.Fatalf("second SaveUser() failed: %v", err)
	}

	got, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if got.Name != "Alice B." {
		t.Errorf("GetUser() name = %q, want the updated one", got.Name)
	}
}
