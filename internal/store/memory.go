package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bookvocab/internal/models"
	"bookvocab/internal/session"
)

// MemoryStore keeps users in process memory. It backs tests and the
// STORE_DRIVER=memory development mode.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[primitive.ObjectID]*models.User),
		now:   time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = normalizeEmail(u.Email)
	u.Username = strings.TrimSpace(u.Username)
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return models.ErrDuplicateEmail
		}
		if strings.EqualFold(existing.Username, u.Username) {
			return models.ErrDuplicateUsername
		}
	}

	now := s.now()
	u.ID = primitive.NewObjectID()
	u.RefreshTokens = session.Whitelist{}
	u.SessionVersion = 0
	u.CreatedAt = now
	u.UpdatedAt = now

	stored := *u
	s.users[u.ID] = &stored
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	email = normalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return models.User{}, models.ErrUserNotFound
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, models.ErrUserNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[oid]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) Owner(_ context.Context, token string) (session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.RefreshTokens.Contains(token) {
			return recordOf(u), nil
		}
	}
	return session.Record{}, session.ErrNoOwner
}

func (s *MemoryStore) Get(_ context.Context, userID string) (session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := s.lookup(userID)
	if err != nil {
		return session.Record{}, err
	}
	return recordOf(u), nil
}

func (s *MemoryStore) Push(_ context.Context, userID, token string) error {
	return s.mutate(userID, func(w session.Whitelist) session.Whitelist {
		return w.Add(token)
	})
}

func (s *MemoryStore) Pull(_ context.Context, userID, token string) error {
	return s.mutate(userID, func(w session.Whitelist) session.Whitelist {
		return w.Remove(token)
	})
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	return s.mutate(userID, func(session.Whitelist) session.Whitelist {
		return session.Whitelist{}
	})
}

func (s *MemoryStore) Swap(_ context.Context, userID string, expectedVersion int64, tokens session.Whitelist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.lookup(userID)
	if err != nil {
		return err
	}
	if u.SessionVersion != expectedVersion {
		return session.ErrVersionConflict
	}
	s.write(u, slices.Clone(tokens))
	return nil
}

func (s *MemoryStore) mutate(userID string, fn func(session.Whitelist) session.Whitelist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.lookup(userID)
	if err != nil {
		return err
	}
	s.write(u, fn(u.RefreshTokens))
	return nil
}

// write must be called with mu held.
func (s *MemoryStore) write(u *models.User, tokens session.Whitelist) {
	if tokens == nil {
		tokens = session.Whitelist{}
	}
	u.RefreshTokens = tokens
	u.SessionVersion++
	u.UpdatedAt = s.now()
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(userID string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, session.ErrUnknownUser
	}
	u, ok := s.users[oid]
	if !ok {
		return nil, session.ErrUnknownUser
	}
	return u, nil
}

func recordOf(u *models.User) session.Record {
	return session.Record{
		UserID:  u.ID.Hex(),
		Tokens:  slices.Clone(u.RefreshTokens),
		Version: u.SessionVersion,
	}
}

func cloneUser(u *models.User) models.User {
	out := *u
	out.RefreshTokens = slices.Clone(u.RefreshTokens)
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
