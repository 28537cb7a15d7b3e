package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/md-rashed-zaman/ecochurch/libs/db"
	"github.com/md-rashed-zaman/ecochurch/libs/grpcx"
	"github.com/md-rashed-zaman/ecochurch/libs/kafkax"
	"github.com/md-rashed-zaman/ecochurch/libs/runtime"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/client"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/storage"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/syncbus"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
)

// cleanup funcs run in reverse order at shutdown.
type cleanups []func()

func (c *cleanups) add(fn func()) { *c = append(*c, fn) }

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func openMedium(ctx context.Context, s settings, rdb redis.UniversalClient, done *cleanups) (storage.Medium, error) {
	switch s.StoreBackend {
	case backendMemory:
		return storage.NewMemoryMedium(), nil
	case backendRedis:
		return storage.NewRedisMedium(rdb), nil
	case backendPostgres:
		pool, err := db.Open(ctx, s.DatabaseURL, db.Options{})
		if err != nil {
			return nil, err
		}
		done.add(pool.Close)
		return storage.NewPostgresMedium(ctx, pool)
	case backendSQLite:
		if err := ensureDir(filepath.Dir(s.SQLitePath)); err != nil {
			return nil, err
		}
		m, err := storage.OpenSQLiteMedium(ctx, s.SQLitePath)
		if err != nil {
			return nil, err
		}
		done.add(func() { _ = m.Close() })
		return m, nil
	default:
		return storage.NewFileMedium(s.DataDir)
	}
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// transport is a channel plus the loop that feeds it, if any.
type transport struct {
	channel syncbus.Channel
	run     func(context.Context)
	checks  []runtime.ReadyCheck
}

func openTransport(s settings, rdb redis.UniversalClient, store *storage.Store, logger *slog.Logger) (transport, error) {
	switch s.SyncTransport {
	case transportRedis:
		ch := syncbus.NewRedisChannel(rdb, s.RedisChannel, s.Origin, logger)
		return transport{channel: ch, run: ch.Run}, nil
	case transportKafka:
		ch, err := syncbus.NewKafkaChannel(logger, syncbus.KafkaConfig{Brokers: s.KafkaBrokers, Topic: s.KafkaTopic, Origin: s.Origin})
		if err != nil {
			return transport{}, err
		}
		return transport{
			channel: ch,
			run:     ch.Run,
			checks:  []runtime.ReadyCheck{{Name: "kafka", Check: kafkax.ReadyCheck(s.KafkaBrokers)}},
		}, nil
	case transportGRPC:
		conn, err := grpcx.NewClient(s.grpcTarget(), grpcx.DialOptions{})
		if err != nil {
			return transport{}, fmt.Errorf("grpc sync client: %w", err)
		}
		ch := syncbus.NewGRPCChannel(conn, s.Origin, logger)
		return transport{channel: ch, run: ch.Run}, nil
	case transportPoll:
		var source syncbus.Source = syncbus.SourceFunc(store.ReadAppointments)
		if s.PollURL != "" {
			source = client.New(s.PollURL)
		}
		p := syncbus.NewPoller(source, s.PollInterval, "poll:"+s.Origin, logger)
		return transport{channel: p, run: p.Run}, nil
	default:
		return transport{channel: syncbus.NewLocalBus().Join(s.Origin)}, nil
	}
}

// serveGRPC hosts the sync hub until ctx is done.
func serveGRPC(ctx context.Context, group *runtime.Group, port string, logger *slog.Logger) (*syncbus.GRPCHub, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}
	srv := grpcx.NewServer()
	hub := syncbus.NewGRPCHub(logger)
	syncbus.RegisterGRPCHub(srv, hub)

	group.Go(ctx, "grpc-server", func(ctx context.Context) {
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			<-ctx.Done()
			srv.GracefulStop()
		}()
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server error", "err", err)
		}
		<-stopped
	})
	return hub, nil
}
