package ws

import "sync"

// Registry maps a user to the socket ids of their live connections. It is
// the single source of truth for presence transitions and private-channel
// fan-out, and lives purely in process memory: scaling beyond one process
// means replacing it with an external broker, which this design does not do.
//
// Register and Unregister must be called exactly once per real connect and
// disconnect, or the online/offline bookkeeping leaks.
type Registry struct {
	mu      sync.RWMutex
	sockets map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{sockets: make(map[string]map[string]struct{})}
}

// Register adds a connection to the user's set and reports whether it was the
// user's first live connection. Re-registering a known socket id is a no-op.
func (r *Registry) Register(userID, socketID string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sockets[userID]
	if !ok {
		set = make(map[string]struct{})
		r.sockets[userID] = set
	}
	set[socketID] = struct{}{}
	return !ok
}

// Unregister removes a connection and reports whether it was the user's last
// one. An emptied set is dropped entirely, never kept as an empty entry.
func (r *Registry) Unregister(userID, socketID string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sockets[userID]
	if !ok {
		return false
	}
	delete(set, socketID)
	if len(set) == 0 {
		delete(r.sockets, userID)
		return true
	}
	return false
}

// ConnectionsFor returns a snapshot of the user's live socket ids. Unknown
// users yield an empty slice.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sockets[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Connected reports whether the user has at least one live connection.
func (r *Registry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets[userID]) > 0
}
