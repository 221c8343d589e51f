package core

import "errors"

var (
	// ErrNotFound covers chats, messages, notifications and users that do
	// not exist or are soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized marks an authenticated user acting on a chat or
	// message they are not a participant of or do not own.
	ErrNotAuthorized = errors.New("not authorized")
)
