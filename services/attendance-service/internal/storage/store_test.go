package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLoadToleratesMalformedValues(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"", "null", "undefined", "{not json", `{"id":"a"}`, "42"} {
		m := NewMemoryMedium()
		_ = m.Set(ctx, KeyAppointments, raw)
		_ = m.Set(ctx, KeyUsers, raw)
		users, apps := NewStore(m, quietLogger(), "").Load(ctx)
		if users == nil || apps == nil || len(users) != 0 || len(apps) != 0 {
			t.Fatalf("raw %q: expected empty non-nil collections, got %v %v", raw, users, apps)
		}
	}
}

func TestLoadAbsentKeys(t *testing.T) {
	users, apps := NewStore(NewMemoryMedium(), quietLogger(), "").Load(context.Background())
	if len(users) != 0 || len(apps) != 0 {
		t.Fatal("expected empty collections")
	}
}

type failingMedium struct{}

func (failingMedium) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk gone")
}
func (failingMedium) Set(context.Context, string, string) error { return errors.New("disk gone") }
func (failingMedium) Delete(context.Context, string) error      { return errors.New("disk gone") }

func TestLoadSurvivesMediumErrors(t *testing.T) {
	s := NewStore(failingMedium{}, quietLogger(), "")
	users, apps := s.Load(context.Background())
	if len(users) != 0 || len(apps) != 0 {
		t.Fatal("expected empty collections")
	}
	if _, err := s.ReadAppointments(context.Background()); err == nil {
		t.Fatal("polling read should surface medium errors")
	}
	if err := s.ReplaceAppointments(context.Background(), nil); err == nil {
		t.Fatal("replace should surface medium errors")
	}
	if _, err := s.LoadUsers(context.Background()); err == nil {
		t.Fatal("user reload should surface medium errors")
	}
}

func TestLoadUsersSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()
	a := NewStore(m, quietLogger(), "")
	b := NewStore(m, quietLogger(), "")

	if got, err := b.LoadUsers(ctx); err != nil || len(got) != 0 {
		t.Fatalf("absent users: %+v %v", got, err)
	}
	if err := a.ReplaceUsers(ctx, []model.User{{ID: "u1", EmailOrPhone: "r@x.com"}}); err != nil {
		t.Fatal(err)
	}
	got, err := b.LoadUsers(ctx)
	if err != nil || len(got) != 1 || got[0].ID != "u1" {
		t.Fatalf("write from another store not visible: %+v %v", got, err)
	}
	_ = m.Set(ctx, KeyUsers, "{broken")
	if got, err := b.LoadUsers(ctx); err != nil || len(got) != 0 {
		t.Fatalf("malformed users should read as empty: %+v %v", got, err)
	}
}

func TestReplaceThenLoadWithPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()
	s := NewStore(m, quietLogger(), "tenant-a")

	apps := []model.Appointment{{ID: "a", Name: "Ana", Status: model.StatusPending, CreatedAt: 2}}
	if err := s.ReplaceAppointments(ctx, apps); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "tenant-a:"+KeyAppointments); !ok {
		t.Fatal("expected prefixed key")
	}
	_, got := s.Load(ctx)
	if len(got) != 1 || got[0] != apps[0] {
		t.Fatalf("unexpected load: %+v", got)
	}
}

func TestSessionSlot(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()
	s := NewStore(m, quietLogger(), "")

	if _, ok := s.LoadSession(ctx); ok {
		t.Fatal("expected no session")
	}
	u := model.User{ID: "u1", Name: "Rod", EmailOrPhone: "r@x.com", Password: "pw1", Role: model.RolePastor}
	if err := s.SaveSession(ctx, u); err != nil {
		t.Fatalf("save session: %v", err)
	}
	got, ok := s.LoadSession(ctx)
	if !ok || got.ID != "u1" || got.Password != "" {
		t.Fatalf("unexpected session: %+v", got)
	}

	_ = s.ReplaceUsers(ctx, []model.User{u})
	if err := s.ClearSession(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := s.LoadSession(ctx); ok {
		t.Fatal("session should be cleared")
	}
	users, _ := s.Load(ctx)
	if len(users) != 1 {
		t.Fatal("logout must not remove the user record")
	}

	_ = m.Set(ctx, KeySession, "undefined")
	if _, ok := s.LoadSession(ctx); ok {
		t.Fatal("undefined slot should read as no session")
	}
}
