package syncbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisChannel fans snapshots out over Redis pub/sub. Messages published while an
// instance is not subscribed are lost, which matches the at-most-once contract.
type RedisChannel struct {
	rdb       redis.UniversalClient
	channel   string
	logger    *slog.Logger
	stamper   stamper
	subs      subscribers
	ready     chan struct{}
	readyOnce sync.Once
}

func NewRedisChannel(rdb redis.UniversalClient, channel, origin string, logger *slog.Logger) *RedisChannel {
	if channel == "" {
		channel = "ecochurch:appointments"
	}
	return &RedisChannel{
		rdb:     rdb,
		channel: channel,
		logger:  logger,
		stamper: stamper{origin: origin},
		ready:   make(chan struct{}),
	}
}

func (c *RedisChannel) Publish(ctx context.Context, apps []model.Appointment) error {
	raw, err := encodeSnapshot(c.stamper.stamp(ctx, apps))
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, c.channel, raw).Err()
}

func (c *RedisChannel) Subscribe(h Handler) func() {
	return c.subs.add(h)
}

// Ready is closed once the subscription is confirmed by the server.
func (c *RedisChannel) Ready() <-chan struct{} {
	return c.ready
}

// Run receives until ctx is done.
func (c *RedisChannel) Run(ctx context.Context) {
	ps := c.rdb.Subscribe(ctx, c.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() == nil {
			c.logger.Error("redis sync subscribe failed", "channel", c.channel, "err", err)
		}
		return
	}
	c.readyOnce.Do(func() { close(c.ready) })

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (c *RedisChannel) handle(ctx context.Context, raw []byte) {
	snap, err := decodeSnapshot(raw)
	if err != nil {
		c.logger.Warn("redis sync message dropped", "err", err)
		return
	}
	if snap.Origin == c.stamper.origin {
		return
	}
	c.subs.deliver(receiveContext(ctx, snap), snap)
}

func (c *RedisChannel) Close() error {
	return nil
}
