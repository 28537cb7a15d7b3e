package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/ecochurch/libs/config"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/views"
)

const (
	backendFile     = "file"
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
	backendMemory   = "memory"

	transportLocal = "local"
	transportRedis = "redis"
	transportKafka = "kafka"
	transportGRPC  = "grpc"
	transportPoll  = "poll"
)

type settings struct {
	Service string
	Port    string
	Origin  string

	StoreBackend  string
	DataDir       string
	KeyPrefix     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	SQLitePath    string

	SyncTransport   string
	RedisChannel    string
	KafkaBrokers    string
	KafkaTopic      string
	GRPCAddr        string
	GRPCPort        string
	PollInterval    time.Duration
	PollURL         string
	IndicatorWindow time.Duration

	AuthMode    string
	DefaultRole model.Role
	Visibility  views.Visibility

	FollowupURL   string
	FollowupToken string
	FollowupRate  int

	RateLimitPerMinute int
	RateLimitPrefix    string
	RateLimitFailOpen  bool
	BodyLimit          int64
	RequestTimeout     time.Duration

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           time.Duration
}

func loadSettings() (settings, error) {
	port, err := config.Port("PORT", "3000")
	if err != nil {
		return settings{}, err
	}
	s := settings{
		Service: config.String("SERVICE_NAME", "attendance-service"),
		Port:    port,
		Origin:  config.String("INSTANCE_ID", defaultOrigin()),

		StoreBackend:  strings.ToLower(config.String("STORE_BACKEND", backendFile)),
		DataDir:       config.String("DATA_DIR", "./data"),
		KeyPrefix:     config.String("STORE_KEY_PREFIX", "ecochurch"),
		RedisAddr:     strings.TrimSpace(config.String("REDIS_ADDR", "")),
		RedisPassword: config.String("REDIS_PASSWORD", ""),
		RedisDB:       config.Int("REDIS_DB", 0),
		DatabaseURL:   config.String("DATABASE_URL", ""),
		SQLitePath:    config.String("SQLITE_PATH", "./data/ecochurch.db"),

		SyncTransport:   strings.ToLower(config.String("SYNC_TRANSPORT", transportLocal)),
		RedisChannel:    config.String("SYNC_REDIS_CHANNEL", "ecochurch:appointments"),
		KafkaBrokers:    config.String("KAFKA_BROKERS", ""),
		KafkaTopic:      config.String("KAFKA_SYNC_TOPIC", "ecochurch.appointments.v1"),
		GRPCAddr:        strings.TrimSpace(config.String("SYNC_GRPC_ADDR", "")),
		GRPCPort:        strings.TrimSpace(config.String("GRPC_PORT", "")),
		PollInterval:    config.Duration("SYNC_POLL_INTERVAL", 10*time.Second),
		PollURL:         strings.TrimSpace(config.String("SYNC_POLL_URL", "")),
		IndicatorWindow: config.Duration("SYNC_INDICATOR_WINDOW", 2*time.Second),

		AuthMode:   config.String("AUTH_MODE", "plaintext"),
		Visibility: views.ParseVisibility(config.String("VISIBILITY", string(views.VisibilityGlobal))),

		FollowupURL:   strings.TrimSpace(config.String("FOLLOWUP_WEBHOOK_URL", "")),
		FollowupToken: config.String("FOLLOWUP_WEBHOOK_TOKEN", ""),
		FollowupRate:  config.Int("FOLLOWUP_RATE_PER_MINUTE", 30),

		RateLimitPerMinute: config.Int("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitPrefix:    config.String("RATE_LIMIT_PREFIX", "rl"),
		RateLimitFailOpen:  config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		BodyLimit:          int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)),
		RequestTimeout:     time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,

		CORSAllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
		CORSAllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,OPTIONS"),
		CORSAllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id,X-User-Id,X-User-Name"),
		CORSAllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
	}

	role, ok := model.ParseRole(config.String("DEFAULT_ROLE", string(model.RolePastor)))
	if !ok {
		return settings{}, fmt.Errorf("DEFAULT_ROLE must be one of admin, pastor, voluntario")
	}
	s.DefaultRole = role

	if s.GRPCPort != "" {
		if _, err := config.Port("GRPC_PORT", ""); err != nil {
			return settings{}, err
		}
	}
	return s, s.validate()
}

func (s settings) validate() error {
	switch s.StoreBackend {
	case backendFile, backendMemory, backendSQLite:
	case backendRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("STORE_BACKEND=redis requires REDIS_ADDR")
		}
	case backendPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", s.StoreBackend)
	}

	switch s.SyncTransport {
	case transportLocal, transportPoll:
	case transportRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("SYNC_TRANSPORT=redis requires REDIS_ADDR")
		}
	case transportKafka:
		if strings.TrimSpace(s.KafkaBrokers) == "" {
			return fmt.Errorf("SYNC_TRANSPORT=kafka requires KAFKA_BROKERS")
		}
	case transportGRPC:
		if s.GRPCAddr == "" && s.GRPCPort == "" {
			return fmt.Errorf("SYNC_TRANSPORT=grpc requires SYNC_GRPC_ADDR or GRPC_PORT")
		}
	default:
		return fmt.Errorf("unknown SYNC_TRANSPORT %q", s.SyncTransport)
	}
	return nil
}

// sharedMedium reports whether other instances read and write the same medium.
func (s settings) sharedMedium() bool {
	return s.StoreBackend == backendRedis || s.StoreBackend == backendPostgres
}

// persistReceived decides whether snapshots received from peers are written locally.
// A shared medium already holds the publisher's write, and a poller reading the
// store itself has nothing new to write.
func (s settings) persistReceived() bool {
	if s.sharedMedium() {
		return false
	}
	if s.SyncTransport == transportPoll {
		return s.PollURL != ""
	}
	return s.SyncTransport != transportLocal
}

// grpcTarget is the hub address channels dial. An instance hosting the hub dials itself.
func (s settings) grpcTarget() string {
	if s.GRPCAddr != "" {
		return s.GRPCAddr
	}
	return "127.0.0.1:" + s.GRPCPort
}

func defaultOrigin() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "attendance"
	}
	return host + "-" + uuid.NewString()[:8]
}
