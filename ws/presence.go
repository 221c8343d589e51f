package ws

import (
	"sync"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceState is one user's current status. LastSeen is the time of the
// most recent transition; nil for users never seen by this process.
type PresenceState struct {
	UserID   string     `json:"userId"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// Tracker keeps per-user presence derived from registry transitions. Entries
// are never evicted: a user who goes offline keeps their last-seen timestamp
// for the life of the process, so status queries stay answerable. That also
// means the map grows with the set of users ever connected; the trade-off is
// deliberate and restarts reset it.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*PresenceState
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*PresenceState)}
}

// SetOnline records the online transition and returns the new state. Callers
// invoke it only when the registry reports a first connection.
func (t *Tracker) SetOnline(userID string) PresenceState {
	return t.set(userID, StatusOnline)
}

// SetOffline records the offline transition and returns the new state.
// Callers invoke it only when the registry reports the last connection went.
func (t *Tracker) SetOffline(userID string) PresenceState {
	return t.set(userID, StatusOffline)
}

func (t *Tracker) set(userID, status string) PresenceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	state := &PresenceState{UserID: userID, Status: status, LastSeen: &now}
	t.states[userID] = state
	return *state
}

// Get returns the user's current state. Users this process has never seen
// are offline with no last-seen time.
func (t *Tracker) Get(userID string) PresenceState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if state, ok := t.states[userID]; ok {
		return *state
	}
	return PresenceState{UserID: userID, Status: StatusOffline}
}

// Online returns a snapshot of every currently online user.
func (t *Tracker) Online() []PresenceState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	online := []PresenceState{}
	for _, state := range t.states {
		if state.Status == StatusOnline {
			online = append(online, *state)
		}
	}
	return online
}
