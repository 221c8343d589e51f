package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"gigchat/core"
	"gigchat/handlers/auth"
	"gigchat/messaging"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// Room name prefixes keep the two concerns in separate namespaces: joining a
// conversation room never leaks generic notifications and vice versa.
const chatRoomPrefix = "chat_"

func chatRoom(chatID string) socketio.Room {
	return socketio.Room(chatRoomPrefix + chatID)
}

var errNoToken = errors.New("no authentication token provided")

// Gateway owns the socket.io server: it authenticates handshakes, feeds the
// connection registry and presence tracker, dispatches inbound events to the
// messaging service and implements messaging.Emitter for outbound fan-out.
type Gateway struct {
	io       *socketio.Server
	registry *Registry
	presence *Tracker
	users    core.UserStore
	chat     *messaging.Service

	mu    sync.Mutex
	owner map[socketio.SocketId]string
}

func NewGateway(users core.UserStore, registry *Registry, presence *Tracker) *Gateway {
	opts := socketio.DefaultServerOptions()
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	return &Gateway{
		io:       socketio.NewServer(nil, opts),
		registry: registry,
		presence: presence,
		users:    users,
		owner:    make(map[socketio.SocketId]string),
	}
}

// Bind wires the messaging service in and installs the connection handler.
// The service is constructed after the gateway (it needs the gateway as its
// emitter), hence the late binding. Call once, before serving traffic.
func (g *Gateway) Bind(service *messaging.Service) {
	g.chat = service

	g.io.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		user, err := g.authenticate(socket)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"socket_id": socket.Id(),
				"error":     err,
			}).Warn("Socket handshake rejected")
			socket.Disconnect(true)
			return
		}
		g.attach(socket, user)
	})
}

// ServeHandler returns the HTTP handler to mount at /socket.io/.
func (g *Gateway) ServeHandler() http.Handler {
	return g.io.ServeHandler(nil)
}

// authenticate resolves the handshake credential to a user. Any failure is
// terminal: the caller disconnects the socket before it is registered
// anywhere, so no room join or presence transition can have happened.
func (g *Gateway) authenticate(socket *socketio.Socket) (*core.User, error) {
	hs := socket.Handshake()
	if hs == nil {
		return nil, errNoToken
	}
	token := extractToken(hs.Headers, hs.Auth, hs.Query)
	if token == "" {
		return nil, errNoToken
	}

	claims, err := auth.ParseJWT(token)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetUser(context.Background(), claims.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// extractToken implements the credential precedence: Authorization header,
// then the auth-payload token field, then the token query parameter.
func extractToken(headers map[string][]string, authPayload any, query map[string][]string) string {
	for _, key := range []string{"Authorization", "authorization"} {
		if vals, ok := headers[key]; ok && len(vals) > 0 {
			header := vals[0]
			if strings.HasPrefix(header, "Bearer ") {
				return strings.TrimPrefix(header, "Bearer ")
			}
		}
	}
	if payload, ok := authPayload.(map[string]any); ok {
		if token, ok := payload["token"].(string); ok && token != "" {
			return token
		}
	}
	if vals, ok := query["token"]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// attach registers the authenticated socket and installs its event handlers.
func (g *Gateway) attach(socket *socketio.Socket, user *core.User) {
	socketID := string(socket.Id())
	log := logrus.WithFields(logrus.Fields{
		"socket_id": socketID,
		"user_id":   user.ID,
	})

	g.mu.Lock()
	g.owner[socket.Id()] = user.ID
	g.mu.Unlock()

	first := g.registry.Register(user.ID, socketID)

	socket.Emit("socketRegistered", map[string]any{
		"success": true,
		"message": "Socket registered and authenticated",
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.DisplayName(),
			"role":  user.Role,
		},
	})

	// Only the first device of a session flips the user online; further
	// devices must not re-broadcast.
	if first {
		g.broadcastPresence(g.presence.SetOnline(user.ID))
	}
	log.Info("User connected")

	socket.On("joinChat", func(datas ...any) {
		ack, args := extractAck(datas)
		chatID := stringArg(args, 0)
		if chatID == "" {
			respond(ack, map[string]any{"success": false, "error": "chat id is required"})
			return
		}
		// The room itself has no notion of chat ownership; participation is
		// checked here, at the service boundary, before the join.
		if err := g.chat.Authorize(context.Background(), chatID, user.ID); err != nil {
			log.WithFields(logrus.Fields{"chat_id": chatID, "error": err}).Warn("Join rejected")
			respond(ack, map[string]any{"success": false, "error": err.Error()})
			return
		}
		socket.Join(chatRoom(chatID))
		log.WithField("chat_id", chatID).Info("Joined chat room")
		respond(ack, map[string]any{"success": true})
	})

	socket.On("sendMessage", func(datas ...any) {
		ack, args := extractAck(datas)
		payload := mapArg(args, 0)
		chatID := stringField(payload, "chatId")
		body := stringField(payload, "message")
		if chatID == "" {
			respond(ack, map[string]any{"success": false, "error": "chat id is required"})
			return
		}

		message, err := g.chat.SendMessage(context.Background(), user.ID, chatID, body, nil)
		if err != nil {
			log.WithFields(logrus.Fields{"chat_id": chatID, "error": err}).Warn("Send failed")
			respond(ack, map[string]any{"success": false, "error": err.Error()})
			return
		}
		respond(ack, map[string]any{"success": true, "message": message})
	})

	socket.On("typing", func(datas ...any) {
		_, args := extractAck(datas)
		payload := mapArg(args, 0)
		chatID := stringField(payload, "chatId")
		if chatID == "" {
			return
		}
		// Ephemeral, never persisted; everyone in the room except the typist.
		socket.Broadcast().To(chatRoom(chatID)).Emit(messaging.EventUserTyping, map[string]any{
			"userId":   user.ID,
			"isTyping": boolField(payload, "isTyping"),
		})
	})

	socket.On("markAsRead", func(datas ...any) {
		ack, args := extractAck(datas)
		payload := mapArg(args, 0)
		chatID := stringField(payload, "chatId")
		if chatID == "" {
			chatID = stringArg(args, 0)
		}
		if chatID == "" {
			respond(ack, map[string]any{"success": false, "error": "chat id is required"})
			return
		}

		if err := g.chat.MarkMessagesAsRead(context.Background(), chatID, user.ID); err != nil {
			log.WithFields(logrus.Fields{"chat_id": chatID, "error": err}).Warn("Mark-as-read failed")
			respond(ack, map[string]any{"success": false, "error": err.Error()})
			return
		}
		respond(ack, map[string]any{"success": true})
	})

	socket.On("getUserStatus", func(datas ...any) {
		ack, args := extractAck(datas)
		state := g.presence.Get(stringArg(args, 0))
		if ack != nil {
			ack(state)
			return
		}
		socket.Emit("userStatus", state)
	})

	socket.On("getOnlineUsers", func(datas ...any) {
		ack, _ := extractAck(datas)
		payload := map[string]any{"onlineUsers": g.presence.Online()}
		if ack != nil {
			ack(payload)
			return
		}
		socket.Emit("onlineUsers", payload)
	})

	socket.On("disconnect", func(...any) {
		g.mu.Lock()
		delete(g.owner, socket.Id())
		g.mu.Unlock()

		// Room membership dies with the socket; only presence needs help.
		if last := g.registry.Unregister(user.ID, socketID); last {
			g.broadcastPresence(g.presence.SetOffline(user.ID))
		}
		log.Info("User disconnected")
	})
}

func (g *Gateway) broadcastPresence(state PresenceState) {
	g.Broadcast(messaging.EventUserPresence, map[string]any{
		"userId":    state.UserID,
		"status":    state.Status,
		"timestamp": state.LastSeen,
	})
}

// ToRoom implements messaging.Emitter. Delivery is at-most-once best-effort:
// sockets that went away between lookup and send are simply skipped by the
// underlying adapter.
func (g *Gateway) ToRoom(chatID, event string, payload any) {
	if err := g.io.To(chatRoom(chatID)).Emit(event, payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"chat_id": chatID,
			"event":   event,
			"error":   err,
		}).Debug("Room emit failed")
	}
}

// ToUser implements messaging.Emitter: the event reaches every live device
// of the user via their private channel. A failed target never aborts
// delivery to the remaining ones.
func (g *Gateway) ToUser(userID, event string, payload any) {
	for _, socketID := range g.registry.ConnectionsFor(userID) {
		if err := g.io.To(socketio.Room(socketID)).Emit(event, payload); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,
				"socket_id": socketID,
				"event":     event,
				"error":     err,
			}).Debug("User emit failed")
		}
	}
}

// Broadcast implements messaging.Emitter for global events such as presence.
func (g *Gateway) Broadcast(event string, payload any) {
	g.io.Emit(event, payload)
}

// Close shuts the socket.io server down.
func (g *Gateway) Close() {
	g.io.Close(nil)
}

func respond(ack ackFunc, payload any) {
	if ack != nil {
		ack(payload)
	}
}

func stringArg(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func mapArg(args []any, i int) map[string]any {
	if i >= len(args) {
		return nil
	}
	m, _ := args[i].(map[string]any)
	return m
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
