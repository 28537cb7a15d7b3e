package authgate

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

var ErrNoSession = errors.New("no active session")

// SessionStore is the single persisted session slot.
type SessionStore interface {
	LoadSession(ctx context.Context) (model.User, bool)
	SaveSession(ctx context.Context, u model.User) error
	ClearSession(ctx context.Context) error
}

// Session caches the logged-in user. Ending it clears the slot and nothing else.
type Session struct {
	store SessionStore
}

func NewSession(store SessionStore) *Session {
	return &Session{store: store}
}

func (s *Session) Start(ctx context.Context, u model.User) error {
	return s.store.SaveSession(ctx, u.Public())
}

func (s *Session) Current(ctx context.Context) (model.User, error) {
	u, ok := s.store.LoadSession(ctx)
	if !ok {
		return model.User{}, ErrNoSession
	}
	return u, nil
}

func (s *Session) End(ctx context.Context) error {
	return s.store.ClearSession(ctx)
}

// UpdateProfile rewrites the cached copy after a profile edit.
func (s *Session) UpdateProfile(ctx context.Context, name, avatar string) (model.User, error) {
	u, err := s.Current(ctx)
	if err != nil {
		return model.User{}, err
	}
	if name != "" {
		u.Name = name
	}
	if avatar != "" {
		u.Avatar = avatar
	}
	if err := s.store.SaveSession(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}
