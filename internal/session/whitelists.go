package session

import (
	"context"
	"errors"
	"fmt"
)

// MaxSwapAttempts bounds compare-and-swap retries for a single operation.
const MaxSwapAttempts = 5

// Whitelists is the only way the rest of the program mutates a user's
// session whitelist.
type Whitelists struct {
	store Store
}

func NewWhitelists(store Store) *Whitelists {
	return &Whitelists{store: store}
}

func (w *Whitelists) Add(ctx context.Context, userID, token string) error {
	if err := w.store.Push(ctx, userID, token); err != nil {
		return fmt.Errorf("whitelist add: %w", err)
	}
	return nil
}

func (w *Whitelists) Remove(ctx context.Context, userID, token string) error {
	if err := w.store.Pull(ctx, userID, token); err != nil {
		return fmt.Errorf("whitelist remove: %w", err)
	}
	return nil
}

// Rotate swaps oldToken for newToken in one write.
func (w *Whitelists) Rotate(ctx context.Context, userID, oldToken, newToken string) error {
	return w.Update(ctx, userID, func(current Whitelist) (Whitelist, error) {
		return current.Rotate(oldToken, newToken), nil
	})
}

// ClearAll revokes every session of the user.
func (w *Whitelists) ClearAll(ctx context.Context, userID string) error {
	if err := w.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("whitelist clear: %w", err)
	}
	return nil
}

// FindOwnerOf returns the record of the user whose whitelist holds token.
// found is false when nobody holds it.
func (w *Whitelists) FindOwnerOf(ctx context.Context, token string) (rec Record, found bool, err error) {
	rec, err = w.store.Owner(ctx, token)
	if errors.Is(err, ErrNoOwner) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("whitelist owner lookup: %w", err)
	}
	return rec, true, nil
}

func (w *Whitelists) Get(ctx context.Context, userID string) (Record, error) {
	rec, err := w.store.Get(ctx, userID)
	if err != nil {
		return Record{}, fmt.Errorf("whitelist get: %w", err)
	}
	return rec, nil
}

// Replace writes tokens only if the whitelist is still at rec.Version.
// The returned error wraps ErrVersionConflict when it is not.
func (w *Whitelists) Replace(ctx context.Context, rec Record, tokens Whitelist) error {
	if err := w.store.Swap(ctx, rec.UserID, rec.Version, tokens); err != nil {
		return fmt.Errorf("whitelist replace: %w", err)
	}
	return nil
}

// Update applies fn to the current whitelist and persists the result,
// re-reading and retrying when a concurrent write wins.
func (w *Whitelists) Update(ctx context.Context, userID string, fn func(Whitelist) (Whitelist, error)) error {
	for attempt := 0; attempt < MaxSwapAttempts; attempt++ {
		rec, err := w.Get(ctx, userID)
		if err != nil {
			return err
		}
		next, err := fn(rec.Tokens)
		if err != nil {
			return err
		}
		err = w.Replace(ctx, rec, next)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("whitelist update: %w after %d attempts", ErrVersionConflict, MaxSwapAttempts)
}
