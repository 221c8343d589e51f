package messaging

// Server → client event names. Room- and channel-scoping is described on the
// emitting call sites.
const (
	EventNewMessage       = "newMessage"
	EventMessageUpdated   = "messageUpdated"
	EventMessageDeleted   = "messageDeleted"
	EventLatestMessage    = "latestMessage"
	EventChatUpdated      = "chatUpdated"
	EventChatNotification = "chatNotification"
	EventMessagesRead     = "messagesRead"
	EventUserPresence     = "userPresence"
	EventUserTyping       = "userTyping"
	EventUserNotification = "userNotification"
	EventProfileUpdate    = "profileUpdate"
)
