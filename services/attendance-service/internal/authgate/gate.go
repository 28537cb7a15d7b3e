package authgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

var (
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	ErrNotFound            = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidInput        = errors.New("invalid input")
)

const avatarBase = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// UserStore is the slice of the record store the gate needs.
type UserStore interface {
	LoadUsers(ctx context.Context) ([]model.User, error)
	ReplaceUsers(ctx context.Context, all []model.User) error
}

type Config struct {
	Verifier    Verifier
	DefaultRole model.Role
}

// Gate caches the user collection and persists it whole on every change. The store is
// authoritative: every operation re-reads it first, so gates sharing one medium see
// each other's registrations.
type Gate struct {
	mu          sync.Mutex
	users       []model.User
	store       UserStore
	verifier    Verifier
	defaultRole model.Role
	logger      *slog.Logger
}

func New(store UserStore, initial []model.User, logger *slog.Logger, cfg Config) *Gate {
	if cfg.Verifier == nil {
		cfg.Verifier = Plaintext{}
	}
	if _, ok := model.ParseRole(string(cfg.DefaultRole)); !ok {
		cfg.DefaultRole = model.RolePastor
	}
	return &Gate{
		users:       model.CloneUsers(initial),
		store:       store,
		verifier:    cfg.Verifier,
		defaultRole: cfg.DefaultRole,
		logger:      logger,
	}
}

func AvatarFor(identifier string) string {
	return avatarBase + url.QueryEscape(identifier)
}

func (g *Gate) Register(ctx context.Context, name, identifier, password string) (model.User, error) {
	name = strings.TrimSpace(name)
	identifier = strings.TrimSpace(identifier)
	if name == "" || identifier == "" || password == "" {
		return model.User{}, fmt.Errorf("%w: name, identifier and password required", ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.refreshLocked(ctx)
	if _, found := g.find(identifier); found {
		return model.User{}, ErrDuplicateIdentifier
	}
	stored, err := g.verifier.Prepare(password)
	if err != nil {
		return model.User{}, fmt.Errorf("prepare credential: %w", err)
	}
	user := model.User{
		ID:           uuid.NewString(),
		Name:         name,
		EmailOrPhone: identifier,
		Password:     stored,
		Role:         g.defaultRole,
		Avatar:       AvatarFor(identifier),
	}

	next := append(model.CloneUsers(g.users), user)
	if err := g.store.ReplaceUsers(ctx, next); err != nil {
		return model.User{}, err
	}
	g.users = next
	g.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user.Public(), nil
}

// Login distinguishes unknown identifiers from bad passwords; callers decide how much to reveal.
func (g *Gate) Login(ctx context.Context, identifier, password string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.refreshLocked(ctx)
	i, found := g.find(identifier)
	if !found {
		return model.User{}, ErrNotFound
	}
	if !g.verifier.Verify(g.users[i].Password, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return g.users[i].Public(), nil
}

// UpdateProfile changes display name and avatar. Empty values keep the current ones.
func (g *Gate) UpdateProfile(ctx context.Context, id, name, avatar string) (model.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refreshLocked(ctx)
	idx := -1
	for i := range g.users {
		if g.users[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.User{}, ErrNotFound
	}

	next := model.CloneUsers(g.users)
	if v := strings.TrimSpace(name); v != "" {
		next[idx].Name = v
	}
	if v := strings.TrimSpace(avatar); v != "" {
		next[idx].Avatar = v
	}
	if err := g.store.ReplaceUsers(ctx, next); err != nil {
		return model.User{}, err
	}
	g.users = next
	return next[idx].Public(), nil
}

// Lookup returns the public projection of a user by id.
func (g *Gate) Lookup(ctx context.Context, id string) (model.User, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refreshLocked(ctx)
	for _, u := range g.users {
		if u.ID == id {
			return u.Public(), true
		}
	}
	return model.User{}, false
}

func (g *Gate) VerifierName() string {
	return g.verifier.Name()
}

// refreshLocked replaces the cache with the stored users. On a read error the cache
// stays in effect. Caller holds g.mu.
func (g *Gate) refreshLocked(ctx context.Context) {
	users, err := g.store.LoadUsers(ctx)
	if err != nil {
		g.logger.Warn("user reload failed, using cached users", "err", err)
		return
	}
	g.users = users
}

func (g *Gate) find(identifier string) (int, bool) {
	for i, u := range g.users {
		if u.EmailOrPhone == identifier {
			return i, true
		}
	}
	return -1, false
}
