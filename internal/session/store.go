package session

import (
	"context"
	"errors"
)

var (
	// ErrNoOwner means no user currently whitelists the token.
	ErrNoOwner = errors.New("session: token has no owner")
	// ErrUnknownUser means the user record does not exist.
	ErrUnknownUser = errors.New("session: unknown user")
	// ErrVersionConflict means the whitelist changed since it was read.
	ErrVersionConflict = errors.New("session: whitelist version conflict")
)

// Record is a user's whitelist as read from the store. Version increases on
// every write and guards compare-and-swap replacement.
type Record struct {
	UserID  string
	Tokens  Whitelist
	Version int64
}

// Store persists whitelists. Push, Pull and Clear are single atomic writes
// that bump the version; Swap replaces the list only when the stored version
// still equals expectedVersion.
type Store interface {
	Owner(ctx context.Context, token string) (Record, error)
	Get(ctx context.Context, userID string) (Record, error)
	Push(ctx context.Context, userID, token string) error
	Pull(ctx context.Context, userID, token string) error
	Clear(ctx context.Context, userID string) error
	Swap(ctx context.Context, userID string, expectedVersion int64, tokens Whitelist) error
}
