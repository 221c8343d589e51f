package core

import (
	"context"
	"time"
)

type (
	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// UserStore resolves token subjects to users at handshake time. The
	// authoritative user service lives elsewhere; this is the lookup view
	// the chat core needs.
	UserStore interface {
		// GetUser returns a user by id, or ErrNotFound.
		GetUser(ctx context.Context, userID string) (*User, error)

		// SaveUser creates or replaces a user record.
		SaveUser(ctx context.Context, user *User) error
	}
)

// DisplayName returns the user's name, falling back the way the gateway
// presents unnamed accounts.
func (u *User) DisplayName() string {
	if u.Name == "" {
		return "User"
	}
	return u.Name
}
