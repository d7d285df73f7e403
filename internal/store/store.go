// Package store persists user credentials and session whitelists.
package store

import (
	"context"

	"bookvocab/internal/models"
	"bookvocab/internal/session"
)

// Backend is everything the server needs from persistence.
type Backend interface {
	session.Store

	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*MongoStore)(nil)
)
