package auth

import (
	"context"
	"errors"
	"sync"

	"bookvocab/internal/apperr"
	"bookvocab/internal/models"
)

// CredentialStore is the user persistence the auth flows depend on.
type CredentialStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

const msgInvalidCredentials = "Invalid email or password"

// CredentialVerifier checks an email/password pair. Unknown email and wrong
// password produce the same error.
type CredentialVerifier struct {
	users  CredentialStore
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialVerifier(users CredentialStore, hasher PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{users: users, hasher: hasher}
}

func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (models.User, error) {
	user, err := v.users.FindByEmail(ctx, email)
	if errors.Is(err, models.ErrUserNotFound) {
		// spend the same hashing time as a real comparison
		_ = v.hasher.Compare(v.dummy(), password)
		return models.User{}, apperr.Unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return models.User{}, apperr.Internal("credential lookup failed", err)
	}

	if err := v.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return models.User{}, apperr.Unauthorized(msgInvalidCredentials)
		}
		return models.User{}, apperr.Internal("password comparison failed", err)
	}
	return user, nil
}

func (v *CredentialVerifier) dummy() string {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = v.hasher.Hash("not-a-real-password")
	})
	return v.dummyHash
}
