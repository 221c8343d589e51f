package messaging

// Emitter is the narrow fan-out surface the dispatch pipeline needs from the
// socket layer. The gateway implements it; depending on this interface
// instead of the gateway keeps the package graph acyclic.
//
// All three calls are best-effort: a target whose socket vanished between
// lookup and send just stops receiving, and no error surfaces to the caller.
type Emitter interface {
	// ToRoom emits to every connection currently joined to the chat's room.
	ToRoom(chatID, event string, payload any)

	// ToUser emits to every live connection of the user, across devices,
	// regardless of room membership.
	ToUser(userID, event string, payload any)

	// Broadcast emits to every connected client.
	Broadcast(event string, payload any)
}
