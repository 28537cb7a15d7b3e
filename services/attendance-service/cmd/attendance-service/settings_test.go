package main

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/views"
)

func TestLoadSettingsDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "SYNC_TRANSPORT", "DEFAULT_ROLE", "VISIBILITY", "GRPC_PORT", "SYNC_GRPC_ADDR", "SYNC_POLL_INTERVAL"} {
		t.Setenv(key, "")
	}
	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.Port != "3000" || s.StoreBackend != backendFile || s.SyncTransport != transportLocal {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.DefaultRole != model.RolePastor || s.Visibility != views.VisibilityGlobal {
		t.Fatalf("unexpected role/visibility: %s %s", s.DefaultRole, s.Visibility)
	}
	if s.PollInterval != 10*time.Second || s.Origin == "" {
		t.Fatalf("unexpected poll interval or origin: %s %q", s.PollInterval, s.Origin)
	}
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	cases := []map[string]string{
		{"STORE_BACKEND": "mongo"},
		{"STORE_BACKEND": "redis", "REDIS_ADDR": ""},
		{"STORE_BACKEND": "postgres", "DATABASE_URL": ""},
		{"SYNC_TRANSPORT": "carrier-pigeon"},
		{"SYNC_TRANSPORT": "kafka", "KAFKA_BROKERS": ""},
		{"SYNC_TRANSPORT": "grpc", "SYNC_GRPC_ADDR": "", "GRPC_PORT": ""},
		{"DEFAULT_ROLE": "bishop"},
		{"GRPC_PORT": "99999"},
	}
	for _, env := range cases {
		t.Run("", func(t *testing.T) {
			for _, key := range []string{"STORE_BACKEND", "SYNC_TRANSPORT", "DEFAULT_ROLE", "GRPC_PORT", "PORT"} {
				t.Setenv(key, "")
			}
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := loadSettings(); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

func TestPersistReceived(t *testing.T) {
	cases := []struct {
		backend, transport, pollURL string
		want                        bool
	}{
		{backendFile, transportLocal, "", false},
		{backendFile, transportRedis, "", true},
		{backendSQLite, transportKafka, "", true},
		{backendMemory, transportGRPC, "", true},
		{backendRedis, transportRedis, "", false},
		{backendPostgres, transportKafka, "", false},
		{backendFile, transportPoll, "", false},
		{backendFile, transportPoll, "http://peer:3000", true},
		{backendPostgres, transportPoll, "http://peer:3000", false},
	}
	for _, c := range cases {
		s := settings{StoreBackend: c.backend, SyncTransport: c.transport, PollURL: c.pollURL}
		if got := s.persistReceived(); got != c.want {
			t.Fatalf("%s/%s/%q: got %v want %v", c.backend, c.transport, c.pollURL, got, c.want)
		}
	}
}

func TestGRPCTarget(t *testing.T) {
	if got := (settings{GRPCPort: "7070"}).grpcTarget(); got != "127.0.0.1:7070" {
		t.Fatalf("unexpected self target %q", got)
	}
	if got := (settings{GRPCAddr: "hub:7070", GRPCPort: "7070"}).grpcTarget(); got != "hub:7070" {
		t.Fatalf("unexpected explicit target %q", got)
	}
}
