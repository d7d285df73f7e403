// Package auth implements credential checks and the login, refresh and
// logout flows over the refresh-token whitelist.
//
// A refresh token is valid only while its exact string sits in its owner's
// whitelist and its signature and expiry verify. Presenting a token that is
// in nobody's whitelist is treated as reuse of a rotated token and revokes
// every session of the user it was issued to.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"bookvocab/internal/apperr"
	"bookvocab/internal/models"
	"bookvocab/internal/session"
	"bookvocab/internal/token"
)

const (
	msgNoRefreshToken      = "No refresh token provided"
	msgInvalidRefreshToken = "Invalid or expired refresh token"
	msgInvalidAccessToken  = "Invalid or expired token"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type LoginResult struct {
	TokenPair
	User models.User
}

type Deps struct {
	Users    CredentialStore
	Hasher   PasswordHasher
	Codec    *token.Codec
	Sessions *session.Whitelists
	Logger   *slog.Logger
}

type Manager struct {
	users    CredentialStore
	hasher   PasswordHasher
	verifier *CredentialVerifier
	codec    *token.Codec
	sessions *session.Whitelists
	validate *validator.Validate
	log      *slog.Logger
}

func NewManager(d Deps) *Manager {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		users:    d.Users,
		hasher:   d.Hasher,
		verifier: NewCredentialVerifier(d.Users, d.Hasher),
		codec:    d.Codec,
		sessions: d.Sessions,
		validate: newValidator(),
		log:      log.With("component", "auth"),
	}
}

func (m *Manager) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := m.validate.Struct(in); err != nil {
		return models.User{}, validationError(err)
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, apperr.Internal("password hash failed", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	switch err := m.users.CreateUser(ctx, user); {
	case errors.Is(err, models.ErrDuplicateEmail):
		return models.User{}, apperr.Conflict("User with this email already exists")
	case errors.Is(err, models.ErrDuplicateUsername):
		return models.User{}, apperr.Conflict("User with this username already exists")
	case err != nil:
		return models.User{}, apperr.Internal("user insert failed", err)
	}

	m.log.Info("user registered", "userId", user.ID.Hex())
	return *user, nil
}

// Login verifies credentials and starts a new session. presentedRefresh is
// the refresh cookie the client already holds, if any: it is dropped from the
// whitelist, and if nobody whitelists it the user's whitelist is emptied first.
func (m *Manager) Login(ctx context.Context, in LoginInput, presentedRefresh string) (LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := m.validate.Struct(in); err != nil {
		return LoginResult{}, validationError(err)
	}

	user, err := m.verifier.Verify(ctx, in.Email, in.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) {
			m.log.Info("login rejected")
		}
		return LoginResult{}, err
	}
	userID := user.ID.Hex()

	pair, err := m.issue(userID)
	if err != nil {
		return LoginResult{}, err
	}

	if presentedRefresh == "" {
		if err := m.sessions.Add(ctx, userID, pair.RefreshToken); err != nil {
			return LoginResult{}, apperr.Internal("session add failed", err)
		}
	} else {
		_, owned, err := m.sessions.FindOwnerOf(ctx, presentedRefresh)
		if err != nil {
			return LoginResult{}, apperr.Internal("session lookup failed", err)
		}
		if owned {
			err = m.sessions.Rotate(ctx, userID, presentedRefresh, pair.RefreshToken)
		} else {
			m.log.Warn("stale refresh token presented at login, clearing sessions", "userId", userID)
			err = m.sessions.Update(ctx, userID, func(session.Whitelist) (session.Whitelist, error) {
				return session.Whitelist{pair.RefreshToken}, nil
			})
		}
		if err != nil {
			return LoginResult{}, apperr.Internal("session update failed", err)
		}
	}

	m.log.Info("login succeeded", "userId", userID)
	return LoginResult{TokenPair: pair, User: user}, nil
}

// Refresh rotates presented into a fresh token pair.
//
// Every write is conditional on the whitelist version read in the same pass;
// when another request changed the whitelist in between, the pass restarts,
// so concurrent refreshes behave as if they ran one after another.
func (m *Manager) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	if strings.TrimSpace(presented) == "" {
		return TokenPair{}, apperr.InvalidToken(msgNoRefreshToken, nil)
	}

	for attempt := 0; attempt < session.MaxSwapAttempts; attempt++ {
		owner, found, err := m.sessions.FindOwnerOf(ctx, presented)
		if err != nil {
			return TokenPair{}, apperr.Internal("session lookup failed", err)
		}
		if !found {
			return TokenPair{}, m.revokeReused(ctx, presented)
		}

		candidate := owner.Tokens.Remove(presented)

		claims, verr := m.codec.VerifyRefresh(presented)
		if verr != nil || claims.UserID != owner.UserID {
			err := m.sessions.Replace(ctx, owner, candidate)
			if errors.Is(err, session.ErrVersionConflict) {
				continue
			}
			if err != nil {
				return TokenPair{}, apperr.Internal("session drop failed", err)
			}
			m.log.Info("refresh token rejected, session dropped", "userId", owner.UserID)
			return TokenPair{}, apperr.InvalidToken(msgInvalidRefreshToken, nil)
		}

		pair, err := m.issue(owner.UserID)
		if err != nil {
			return TokenPair{}, err
		}
		err = m.sessions.Replace(ctx, owner, candidate.Add(pair.RefreshToken))
		if errors.Is(err, session.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return TokenPair{}, apperr.Internal("session rotate failed", err)
		}

		m.log.Debug("refresh token rotated", "userId", owner.UserID)
		return pair, nil
	}

	return TokenPair{}, apperr.Internal("session rotate failed", session.ErrVersionConflict)
}

// revokeReused handles a refresh token that no whitelist holds. It always
// yields Unauthorized unless the revocation itself fails.
func (m *Manager) revokeReused(ctx context.Context, presented string) error {
	userID, ok := m.codec.DecodeUnsafe(presented)
	if !ok {
		m.log.Info("unknown refresh token presented")
		return apperr.InvalidToken(msgInvalidRefreshToken, nil)
	}

	m.log.Warn("refresh token reuse detected, revoking all sessions", "userId", userID)
	err := m.sessions.ClearAll(ctx, userID)
	if err != nil && !errors.Is(err, session.ErrUnknownUser) {
		return apperr.Internal("session revoke failed", err)
	}
	return apperr.InvalidToken(msgInvalidRefreshToken, nil)
}

// Logout removes only the presented token. Missing or unknown tokens succeed.
func (m *Manager) Logout(ctx context.Context, presented string) error {
	if strings.TrimSpace(presented) == "" {
		return nil
	}
	owner, found, err := m.sessions.FindOwnerOf(ctx, presented)
	if err != nil {
		return apperr.Internal("session lookup failed", err)
	}
	if !found {
		return nil
	}
	if err := m.sessions.Remove(ctx, owner.UserID, presented); err != nil && !errors.Is(err, session.ErrUnknownUser) {
		return apperr.Internal("session remove failed", err)
	}
	m.log.Info("logout", "userId", owner.UserID)
	return nil
}

// Authenticate checks an access token and returns its user id.
func (m *Manager) Authenticate(accessToken string) (string, error) {
	claims, err := m.codec.VerifyAccess(accessToken)
	if err != nil {
		return "", apperr.InvalidToken(msgInvalidAccessToken, err)
	}
	return claims.UserID, nil
}

func (m *Manager) CurrentUser(ctx context.Context, userID string) (models.User, error) {
	user, err := m.users.FindByID(ctx, userID)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, apperr.NotFound("User not found")
	}
	if err != nil {
		return models.User{}, apperr.Internal("user lookup failed", err)
	}
	return user, nil
}

// SessionCount reports how many refresh tokens the user holds.
func (m *Manager) SessionCount(ctx context.Context, email string) (int, error) {
	user, err := m.userByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	rec, err := m.sessions.Get(ctx, user.ID.Hex())
	if err != nil {
		return 0, apperr.Internal("session lookup failed", err)
	}
	return rec.Tokens.Len(), nil
}

// RevokeAll signs the user out everywhere.
func (m *Manager) RevokeAll(ctx context.Context, email string) error {
	user, err := m.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := m.sessions.ClearAll(ctx, user.ID.Hex()); err != nil {
		return apperr.Internal("session revoke failed", err)
	}
	m.log.Info("all sessions revoked", "userId", user.ID.Hex())
	return nil
}

func (m *Manager) userByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, apperr.NotFound("User not found")
	}
	if err != nil {
		return models.User{}, apperr.Internal("user lookup failed", err)
	}
	return user, nil
}

func (m *Manager) issue(userID string) (TokenPair, error) {
	access, err := m.codec.SignAccess(userID)
	if err != nil {
		return TokenPair{}, apperr.Internal("access token signing failed", err)
	}
	refresh, err := m.codec.SignRefresh(userID)
	if err != nil {
		return TokenPair{}, apperr.Internal("refresh token signing failed", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// AccessTTL and RefreshTTL drive cookie lifetimes at the HTTP layer.
func (m *Manager) AccessTTL() int  { return int(m.codec.AccessTTL().Seconds()) }
func (m *Manager) RefreshTTL() int { return int(m.codec.RefreshTTL().Seconds()) }
