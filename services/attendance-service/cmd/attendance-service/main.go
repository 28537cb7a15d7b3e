package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/md-rashed-zaman/ecochurch/libs/httpx"
	otelx "github.com/md-rashed-zaman/ecochurch/libs/otel"
	"github.com/md-rashed-zaman/ecochurch/libs/runtime"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/authgate"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/followup"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/handlers"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/records"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/storage"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/syncbus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

	s, err := loadSettings()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(s.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(s.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var done cleanups
	defer done.run()

	var rdb redis.UniversalClient
	if s.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		})
		done.add(func() { _ = client.Close() })
		rdb = client
	}

	medium, err := openMedium(ctx, s, rdb, &done)
	if err != nil {
		logger.Error("store init failed", "backend", s.StoreBackend, "err", err)
		return
	}
	store := storage.NewStore(medium, logger, s.KeyPrefix)
	users, apps := store.Load(ctx)
	logger.Info("store loaded", "backend", s.StoreBackend, "users", len(users), "appointments", len(apps))

	group := runtime.NewGroup(logger)
	if s.GRPCPort != "" {
		if _, err := serveGRPC(ctx, group, s.GRPCPort, logger); err != nil {
			logger.Error("grpc sync hub failed", "err", err)
			return
		}
	}

	tr, err := openTransport(s, rdb, store, logger)
	if err != nil {
		logger.Error("sync transport init failed", "transport", s.SyncTransport, "err", err)
		return
	}
	done.add(func() { _ = tr.channel.Close() })

	verifier, err := authgate.VerifierFor(s.AuthMode)
	if err != nil {
		logger.Error("auth init failed", "err", err)
		return
	}
	gate := authgate.New(store, users, logger, authgate.Config{Verifier: verifier, DefaultRole: s.DefaultRole})
	logger.Info("auth gate ready", "verifier", gate.VerifierName(), "default_role", s.DefaultRole, "users", len(users))

	indicator := syncbus.NewIndicator(s.IndicatorWindow)
	svc := records.NewService(store, tr.channel, apps, logger, records.Config{
		Origin:          s.Origin,
		PersistReceived: s.persistReceived(),
		Indicator:       indicator,
	})
	detach := svc.Attach()
	defer detach()
	if tr.run != nil {
		group.Go(ctx, "sync-"+s.SyncTransport, tr.run)
	}

	var drafter followup.Drafter = followup.TemplateDrafter{}
	if s.FollowupURL != "" {
		drafter = followup.NewWebhookDrafter(s.FollowupURL, s.FollowupToken, s.FollowupRate, logger)
	}

	checks := []runtime.ReadyCheck{{Name: "store", Check: store.Ping}}
	checks = append(checks, tr.checks...)
	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.New(svc, gate, drafter, indicator, logger, handlers.Config{
		Transport:  s.SyncTransport,
		Visibility: s.Visibility,
	}).Register(mux)

	var rateLimitMW httpx.Middleware
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, s.RateLimitPerMinute, time.Minute, s.RateLimitPrefix)
		rateLimitMW = rl.Middleware(logger, s.RateLimitFailOpen)
		logger.Info("rate limiting enabled (redis)", "per_minute", s.RateLimitPerMinute, "redis_addr", s.RedisAddr)
	} else {
		rl := httpx.NewRateLimiter(s.RateLimitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", s.RateLimitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   s.CORSAllowedOrigins,
			AllowedMethods:   s.CORSAllowedMethods,
			AllowedHeaders:   s.CORSAllowedHeaders,
			AllowCredentials: s.CORSAllowCredentials,
			MaxAge:           s.CORSMaxAge,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(s.BodyLimit),
		httpx.WithTimeout(s.RequestTimeout),
		rateLimitMW,
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, s.Service)
	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "transport", s.SyncTransport, "origin", s.Origin)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	group.Wait()
	logger.Info("http server stopped")
}
