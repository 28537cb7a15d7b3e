package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/md-rashed-zaman/ecochurch/libs/db"
	"github.com/redis/go-redis/v9"
)

// exerciseMedium checks the contract every backend must satisfy.
func exerciseMedium(t *testing.T, m Medium) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("absent key: ok=%v err=%v", ok, err)
	}
	if err := m.Set(ctx, KeyAppointments, `[{"id":"a"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set(ctx, KeyAppointments, `[{"id":"b"}]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := m.Get(ctx, KeyAppointments)
	if err != nil || !ok || v != `[{"id":"b"}]` {
		t.Fatalf("get: %q %v %v", v, ok, err)
	}
	if err := m.Delete(ctx, KeyAppointments); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, KeyAppointments); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	if _, ok, _ := m.Get(ctx, KeyAppointments); ok {
		t.Fatal("expected key removed")
	}
	if p, isPinger := m.(Pinger); isPinger {
		if err := p.Ping(ctx); err != nil {
			t.Fatalf("ping: %v", err)
		}
	}
}

func TestMemoryMedium(t *testing.T) {
	exerciseMedium(t, NewMemoryMedium())
}

func TestFileMedium(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFileMedium(dir)
	if err != nil {
		t.Fatalf("new file medium: %v", err)
	}
	exerciseMedium(t, m)

	_ = m.Set(context.Background(), KeyUsers, "[]")
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, KeyUsers+".json")); err != nil {
		t.Fatalf("expected users file: %v", err)
	}
}

func TestRedisMedium(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	exerciseMedium(t, NewRedisMedium(rdb))
}

func TestSQLiteMedium(t *testing.T) {
	m, err := OpenSQLiteMedium(context.Background(), filepath.Join(t.TempDir(), "ecochurch.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	exerciseMedium(t, m)
}

func TestPostgresMedium(t *testing.T) {
	url := os.Getenv("ECOCHURCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ECOCHURCH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url, db.Options{MaxConns: 2})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(pool.Close)
	m, err := NewPostgresMedium(ctx, pool)
	if err != nil {
		t.Fatalf("new medium: %v", err)
	}
	exerciseMedium(t, m)
}
