package authgate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/storage"
)

func newGate(t *testing.T, v Verifier) (*Gate, *storage.Store) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := storage.NewStore(storage.NewMemoryMedium(), logger, "")
	users, _ := store.Load(context.Background())
	return New(store, users, logger, Config{Verifier: v}), store
}

func TestRegisterRejectsDuplicateIdentifier(t *testing.T) {
	ctx := context.Background()
	g, store := newGate(t, Plaintext{})

	u, err := g.Register(ctx, "Rod", "r@x.com", "pw1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Password != "" {
		t.Fatal("register must return the public projection")
	}
	if u.Role != model.RolePastor || !strings.HasPrefix(u.Avatar, "https://api.dicebear.com/7.x/avataaars/svg?seed=") {
		t.Fatalf("unexpected defaults: %+v", u)
	}

	if _, err := g.Register(ctx, "Other", "r@x.com", "pw2"); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	users, _ := store.Load(ctx)
	matches := 0
	for _, stored := range users {
		if stored.EmailOrPhone == "r@x.com" {
			matches++
			if stored.Password != "pw1" {
				t.Fatalf("stored password changed: %q", stored.Password)
			}
		}
	}
	if matches != 1 {
		t.Fatalf("expected exactly one stored user, got %d", matches)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	g, _ := newGate(t, Plaintext{})
	if _, err := g.Register(context.Background(), " ", "a@b.c", "pw"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestLoginPlaintext(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t, Plaintext{})
	registered, _ := g.Register(ctx, "Rod", "r@x.com", "pw1")

	if _, err := g.Login(ctx, "nobody@x.com", "pw1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := g.Login(ctx, "r@x.com", "pw2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	u, err := g.Login(ctx, " r@x.com ", "pw1")
	if err != nil || u.ID != registered.ID || u.Password != "" {
		t.Fatalf("unexpected login: %+v %v", u, err)
	}
}

func TestLoginIdentifierOnly(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t, IdentifierOnly{})
	_, _ = g.Register(ctx, "Rod", "3001234567", "pw1")
	if _, err := g.Login(ctx, "3001234567", "anything"); err != nil {
		t.Fatalf("identifier match should suffice: %v", err)
	}
}

func TestBcryptVerifier(t *testing.T) {
	ctx := context.Background()
	g, store := newGate(t, Bcrypt{Cost: 4})
	_, _ = g.Register(ctx, "Rod", "r@x.com", "pass123")

	users, _ := store.Load(ctx)
	if users[0].Password == "pass123" {
		t.Fatal("bcrypt mode must not store the plaintext")
	}
	if _, err := g.Login(ctx, "r@x.com", "pass123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := g.Login(ctx, "r@x.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLegacyUserWithoutRole(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := storage.NewStore(storage.NewMemoryMedium(), logger, "")
	legacy := []model.User{{ID: "u1", Name: "Old", EmailOrPhone: "old@x.com", Password: "pw"}}
	if err := store.ReplaceUsers(context.Background(), legacy); err != nil {
		t.Fatal(err)
	}
	g := New(store, legacy, logger, Config{})
	u, err := g.Login(context.Background(), "old@x.com", "pw")
	if err != nil || u.Role != model.RoleVoluntario {
		t.Fatalf("unexpected: %+v %v", u, err)
	}
}

func TestGatesSharingStoreSeeEachOther(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := storage.NewStore(storage.NewMemoryMedium(), logger, "")
	a := New(store, nil, logger, Config{})
	b := New(store, nil, logger, Config{})

	registered, err := a.Register(ctx, "Rod", "r@x.com", "pw1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u, err := b.Login(ctx, "r@x.com", "pw1"); err != nil || u.ID != registered.ID {
		t.Fatalf("second gate cannot log in a user registered by the first: %+v %v", u, err)
	}
	if _, err := b.Register(ctx, "Impostor", "r@x.com", "pw2"); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate error across gates, got %v", err)
	}
	if u, ok := b.Lookup(ctx, registered.ID); !ok || u.Name != "Rod" {
		t.Fatalf("lookup across gates: %+v %v", u, ok)
	}

	users, _ := store.Load(ctx)
	if len(users) != 1 || users[0].Password != "pw1" {
		t.Fatalf("stored users clobbered: %+v", users)
	}
}

type flakyUsers struct {
	users   []model.User
	readErr error
}

func (f *flakyUsers) LoadUsers(context.Context) ([]model.User, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return model.CloneUsers(f.users), nil
}

func (f *flakyUsers) ReplaceUsers(_ context.Context, all []model.User) error {
	f.users = model.CloneUsers(all)
	return nil
}

func TestReloadFailureKeepsCachedUsers(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := &flakyUsers{}
	g := New(store, nil, logger, Config{})
	if _, err := g.Register(ctx, "Rod", "r@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	store.readErr = errors.New("medium unavailable")
	if _, err := g.Login(ctx, "r@x.com", "pw1"); err != nil {
		t.Fatalf("login should fall back to the cache: %v", err)
	}
}

func TestUpdateProfilePersists(t *testing.T) {
	ctx := context.Background()
	g, store := newGate(t, Plaintext{})
	u, _ := g.Register(ctx, "Rod", "r@x.com", "pw1")

	if _, err := g.UpdateProfile(ctx, "missing", "X", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	updated, err := g.UpdateProfile(ctx, u.ID, "Rodrigo", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Rodrigo" || updated.Avatar != u.Avatar {
		t.Fatalf("unexpected update: %+v", updated)
	}
	users, _ := store.Load(ctx)
	if users[0].Name != "Rodrigo" || users[0].Password != "pw1" {
		t.Fatalf("profile not persisted correctly: %+v", users[0])
	}
}

func TestVerifierFor(t *testing.T) {
	for mode, want := range map[string]string{"": "plaintext", "BCRYPT": "bcrypt", "identifier": "identifier"} {
		v, err := VerifierFor(mode)
		if err != nil || v.Name() != want {
			t.Fatalf("mode %q: got %v %v", mode, v, err)
		}
		if g, _ := newGate(t, v); g.VerifierName() != want {
			t.Fatalf("mode %q: gate reports %q", mode, g.VerifierName())
		}
	}
	if _, err := VerifierFor("ldap"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSessionSlot(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := storage.NewStore(storage.NewMemoryMedium(), logger, "")
	s := NewSession(store)

	if _, err := s.Current(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session, got %v", err)
	}
	_ = s.Start(ctx, model.User{ID: "u1", Name: "Rod", Password: "secret", Role: model.RolePastor})
	u, err := s.UpdateProfile(ctx, "Rodrigo", "data:image/png;base64,AAAA")
	if err != nil || u.Name != "Rodrigo" || u.Password != "" {
		t.Fatalf("unexpected session user: %+v %v", u, err)
	}
	if err := s.End(ctx); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := s.Current(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatal("session should be cleared")
	}
}
