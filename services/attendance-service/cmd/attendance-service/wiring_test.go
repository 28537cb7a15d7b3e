package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/storage"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/syncbus"
)

func TestOpenMediumBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var done cleanups
	defer done.run()

	for _, s := range []settings{
		{StoreBackend: backendMemory},
		{StoreBackend: backendFile, DataDir: filepath.Join(dir, "files")},
		{StoreBackend: backendSQLite, SQLitePath: filepath.Join(dir, "db", "ecochurch.db")},
	} {
		m, err := openMedium(ctx, s, nil, &done)
		if err != nil {
			t.Fatalf("%s: %v", s.StoreBackend, err)
		}
		if err := m.Set(ctx, "k", "v"); err != nil {
			t.Fatalf("%s set: %v", s.StoreBackend, err)
		}
		if v, ok, err := m.Get(ctx, "k"); err != nil || !ok || v != "v" {
			t.Fatalf("%s get: %q %v %v", s.StoreBackend, v, ok, err)
		}
	}
}

func TestOpenTransport(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := storage.NewStore(storage.NewMemoryMedium(), logger, "")

	tr, err := openTransport(settings{SyncTransport: transportLocal, Origin: "a"}, nil, store, logger)
	if err != nil || tr.run != nil {
		t.Fatalf("local transport: %v", err)
	}
	if _, ok := tr.channel.(*syncbus.Endpoint); !ok {
		t.Fatalf("expected local endpoint, got %T", tr.channel)
	}

	tr, err = openTransport(settings{SyncTransport: transportPoll, Origin: "a"}, nil, store, logger)
	if err != nil || tr.run == nil {
		t.Fatalf("poll transport: %v", err)
	}
	if _, ok := tr.channel.(*syncbus.Poller); !ok {
		t.Fatalf("expected poller, got %T", tr.channel)
	}

	tr, err = openTransport(settings{SyncTransport: transportKafka, KafkaBrokers: "localhost:9092", KafkaTopic: "t", Origin: "a"}, nil, store, logger)
	if err != nil || len(tr.checks) != 1 {
		t.Fatalf("kafka transport: %v", err)
	}
	_ = tr.channel.Close()

	tr, err = openTransport(settings{SyncTransport: transportGRPC, GRPCPort: "7070", Origin: "a"}, nil, store, logger)
	if err != nil {
		t.Fatalf("grpc transport: %v", err)
	}
	_ = tr.channel.Close()
}
