package chats

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gigchat/core"
	"gigchat/handlers/auth"
	authMiddleware "gigchat/middleware"
	"gigchat/messaging"
	"gigchat/stores/memory"

	"github.com/go-chi/chi/v5"
)

// nopEmitter satisfies the socket fan-out dependency; delivery is covered by
// the messaging and ws test suites.
type nopEmitter struct{}

func (nopEmitter) ToRoom(chatID, event string, payload any) {}
func (nopEmitter) ToUser(userID, event string, payload any) {}
func (nopEmitter) Broadcast(event string, payload any)      {}

type fixture struct {
	router     *chi.Mux
	service    *messaging.Service
	aliceToken string
	bobToken   string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	auth.InitAuth()

	store := memory.NewStore()
	ctx := context.Background()
	alice := &core.User{ID: "alice", Name: "Alice", Email: "alice@example.com"}
	bob := &core.User{ID: "bob", Name: "Bob", Email: "bob@example.com"}
	for _, u := range []*core.User{alice, bob} {
		if err := store.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser() failed: %v", err)
		}
	}

	service := messaging.NewService(store, nopEmitter{})

	r := chi.NewRouter()
	r.Route("/api/chats", func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)
		r.Post("/", HandleCreateChat(service))
		r.Get("/", HandleListChats(service))
		r.Route("/{chatID}", func(r chi.Router) {
			r.Get("/", HandleGetChat(service))
			r.Get("/messages", HandleListMessages(service))
			r.Post("/messages", HandleSendMessage(service))
			r.Put("/messages/{messageID}", HandleUpdateMessage(service))
			r.Delete("/messages/{messageID}", HandleDeleteMessage(service))
			r.Post("/read", HandleMarkRead(service))
			r.Get("/unread-count", HandleUnreadCount(service))
		})
	})

	aliceToken, err := auth.CreateJWT(alice)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}
	bobToken, err := auth.CreateJWT(bob)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}

	return &fixture{router: r, service: service, aliceToken: aliceToken, bobToken: bobToken}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q failed: %v", w.Body.String(), err)
	}
	return out
}

func (f *fixture) createChat(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/chats", f.aliceToken, map[string]string{"userId": "bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("create chat returned %d: %s", w.Code, w.Body.String())
	}
	data := decodeBody(t, w)["data"].(map[string]any)
	return data["id"].(string)
}

func TestCreateChat_RequiresAuth(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/api/chats", "", map[string]string{"userId": "bob"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated request returned %d, want 401", w.Code)
	}
}

func TestCreateChat_Validation(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/api/chats", f.aliceToken, map[string]string{"userId": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("self-chat returned %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/chats", f.aliceToken, map[string]string{"userId": "nobody"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown user returned %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/chats", f.aliceToken, map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing userId returned %d, want 400", w.Code)
	}
}

func TestSendAndListMessages(t *testing.T) {
	f := setup(t)
	chatID := f.createChat(t)

	w := f.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", f.aliceToken,
		map[string]any{"message": "hello bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("send message returned %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/chats/"+chatID+"/messages", f.bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages returned %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	data := body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("list returned %d messages, want 1", len(data))
	}
	meta := body["meta"].(map[string]any)
	if meta["total"].(float64) != 1 {
		t.Errorf("meta.total = %v, want 1", meta["total"])
	}
}

func TestSendMessage_OutsiderForbidden(t *testing.T) {
	f := setup(t)
	chatID := f.createChat(t)

	carol := &core.User{ID: "carol", Name: "Carol"}
	token, err := auth.CreateJWT(carol)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}

	w := f.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", token,
		map[string]any{"message": "let me in"})
	if w.Code != http.StatusForbidden {
		t.Errorf("outsider send returned %d, want 403", w.Code)
	}
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	f := setup(t)
	chatID := f.createChat(t)

	for _, body := range []string{"one", "two"} {
		w := f.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", f.aliceToken,
			map[string]any{"message": body})
		if w.Code != http.StatusOK {
			t.Fatalf("send message returned %d", w.Code)
		}
	}

	w := f.do(t, http.MethodGet, "/api/chats/"+chatID+"/unread-count", f.bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unread-count returned %d", w.Code)
	}
	if got := decodeBody(t, w)["unreadCount"].(float64); got != 2 {
		t.Errorf("unreadCount = %v, want 2", got)
	}

	w = f.do(t, http.MethodPost, "/api/chats/"+chatID+"/read", f.bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark read returned %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/chats/"+chatID+"/unread-count", f.bobToken, nil)
	if got := decodeBody(t, w)["unreadCount"].(float64); got != 0 {
		t.Errorf("unreadCount after read = %v, want 0", got)
	}
}

func TestUpdateAndDeleteMessage_SenderOnly(t *testing.T) {
	f := setup(t)
	chatID := f.createChat(t)

	w := f.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", f.aliceToken,
		map[string]any{"message": "original"})
	if w.Code != http.StatusOK {
		t.Fatalf("send message returned %d", w.Code)
	}
	data := decodeBody(t, w)["data"].(map[string]any)
	messageID := data["id"].(string)

	// Bob is a participant but not the sender.
	w = f.do(t, http.MethodPut, "/api/chats/"+chatID+"/messages/"+messageID, f.bobToken,
		map[string]any{"message": "hijacked"})
	if w.Code != http.StatusForbidden {
		t.Errorf("non-sender edit returned %d, want 403", w.Code)
	}

	w = f.do(t, http.MethodPut, "/api/chats/"+chatID+"/messages/"+messageID, f.aliceToken,
		map[string]any{"message": "edited"})
	if w.Code != http.StatusOK {
		t.Fatalf("sender edit returned %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodDelete, "/api/chats/"+chatID+"/messages/"+messageID, f.bobToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-sender delete returned %d, want 403", w.Code)
	}

	w = f.do(t, http.MethodDelete, "/api/chats/"+chatID+"/messages/"+messageID, f.aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sender delete returned %d: %s", w.Code, w.Body.String())
	}

	// Deleting the same message twice is a 404.
	w = f.do(t, http.MethodDelete, "/api/chats/"+chatID+"/messages/"+messageID, f.aliceToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("repeat delete returned %d, want 404", w.Code)
	}
}

func TestListChats_IncludesSummary(t *testing.T) {
	f := setup(t)
	chatID := f.createChat(t)

	w := f.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", f.aliceToken,
		map[string]any{"message": "latest words"})
	if w.Code != http.StatusOK {
		t.Fatalf("send message returned %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/chats", f.bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list chats returned %d", w.Code)
	}
	data := decodeBody(t, w)["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("list chats returned %d entries, want 1", len(data))
	}
	summary := data[0].(map[string]any)
	if summary["unreadCount"].(float64) != 1 {
		t.Errorf("summary unreadCount = %v, want 1", summary["unreadCount"])
	}
	other := summary["otherUser"].(map[string]any)
	if other["id"] != "alice" {
		t.Errorf("summary otherUser = %v, want alice", other["id"])
	}
}

func TestGetChat_NotFound(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/api/chats/no-such-chat", f.aliceToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing chat returned %d, want 404", w.Code)
	}
}
