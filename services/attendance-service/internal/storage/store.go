package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

const (
	KeyAppointments = "ecochurch_appointments"
	KeyUsers        = "ecochurch_users"
	KeySession      = "ecochurch_current_user"
)

// Store is the only component that reads or writes the backing medium.
// Every write replaces a whole collection in one Set.
type Store struct {
	medium Medium
	logger *slog.Logger
	prefix string
}

func NewStore(medium Medium, logger *slog.Logger, keyPrefix string) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.TrimSpace(keyPrefix)
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Store{medium: medium, logger: logger, prefix: prefix}
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Load reconstructs both collections. It never fails: absent, blank or malformed
// values and medium errors all fall back to empty collections.
func (s *Store) Load(ctx context.Context) ([]model.User, []model.Appointment) {
	users := loadList[model.User](ctx, s, KeyUsers)
	apps := loadList[model.Appointment](ctx, s, KeyAppointments)
	return users, apps
}

func loadList[T any](ctx context.Context, s *Store, name string) []T {
	raw, ok, err := s.medium.Get(ctx, s.key(name))
	if err != nil {
		s.logger.Warn("store read failed, using empty collection", "key", name, "err", err)
		return []T{}
	}
	if !ok {
		return []T{}
	}
	out, err := decodeList[T](raw)
	if err != nil {
		if !errors.Is(err, errEmptyBlob) {
			s.logger.Warn("stored collection malformed, using empty collection", "key", name, "err", err)
		}
		return []T{}
	}
	return out
}

// ReadAppointments is a polling read: medium errors are returned so the caller can keep
// its previous snapshot, while malformed content still reads as empty.
func (s *Store) ReadAppointments(ctx context.Context) ([]model.Appointment, error) {
	raw, ok, err := s.medium.Get(ctx, s.key(KeyAppointments))
	if err != nil {
		return nil, fmt.Errorf("read appointments: %w", err)
	}
	if !ok {
		return []model.Appointment{}, nil
	}
	apps, err := ParseAppointments(raw)
	if err != nil {
		return []model.Appointment{}, nil
	}
	return apps, nil
}

// LoadUsers re-reads the user collection for callers that cache it. Medium errors are
// returned; absent or malformed content reads as empty.
func (s *Store) LoadUsers(ctx context.Context) ([]model.User, error) {
	raw, ok, err := s.medium.Get(ctx, s.key(KeyUsers))
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	if !ok {
		return []model.User{}, nil
	}
	users, err := decodeList[model.User](raw)
	if err != nil {
		if !errors.Is(err, errEmptyBlob) {
			s.logger.Warn("stored users malformed, using empty collection", "err", err)
		}
		return []model.User{}, nil
	}
	return users, nil
}

func (s *Store) ReplaceAppointments(ctx context.Context, all []model.Appointment) error {
	if all == nil {
		all = []model.Appointment{}
	}
	return s.replace(ctx, KeyAppointments, all)
}

func (s *Store) ReplaceUsers(ctx context.Context, all []model.User) error {
	if all == nil {
		all = []model.User{}
	}
	return s.replace(ctx, KeyUsers, all)
}

func (s *Store) replace(ctx context.Context, name string, v any) error {
	raw, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.medium.Set(ctx, s.key(name), raw); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// LoadSession returns the cached session user, if any.
func (s *Store) LoadSession(ctx context.Context) (model.User, bool) {
	raw, ok, err := s.medium.Get(ctx, s.key(KeySession))
	if err != nil {
		s.logger.Warn("session read failed", "err", err)
		return model.User{}, false
	}
	if !ok || isBlank(raw) {
		return model.User{}, false
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		return model.User{}, false
	}
	return u, true
}

func (s *Store) SaveSession(ctx context.Context, u model.User) error {
	return s.replace(ctx, KeySession, u.Public())
}

// ClearSession empties the session slot only; the user record stays.
func (s *Store) ClearSession(ctx context.Context) error {
	if err := s.medium.Delete(ctx, s.key(KeySession)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Ping reports medium readiness when the medium supports it.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.medium.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
