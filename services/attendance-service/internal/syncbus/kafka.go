package syncbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/ecochurch/libs/kafkax"
	otelx "github.com/md-rashed-zaman/ecochurch/libs/otel"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const snapshotEventType = "appointments.snapshot.v1"

type KafkaConfig struct {
	Brokers string
	Topic   string
	Origin  string
}

// KafkaChannel writes each snapshot to partition 0 of one topic. Every instance reads
// that partition directly from the newest offset, without a consumer group, so each
// instance sees every later snapshot once and leaves no group state on the brokers.
type KafkaChannel struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	topic   string
	logger  *slog.Logger
	stamper stamper
	subs    subscribers
}

func NewKafkaChannel(logger *slog.Logger, cfg KafkaConfig) (*KafkaChannel, error) {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka sync: no brokers configured")
	}
	if cfg.Topic == "" {
		cfg.Topic = "ecochurch.appointments.v1"
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               partitionZero{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     cfg.Topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	if err := reader.SetOffset(kafka.LastOffset); err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("kafka sync: start offset: %w", err)
	}
	return &KafkaChannel{
		writer:  writer,
		reader:  reader,
		topic:   cfg.Topic,
		logger:  logger,
		stamper: stamper{origin: cfg.Origin},
	}, nil
}

func (c *KafkaChannel) Publish(ctx context.Context, apps []model.Appointment) error {
	snap := c.stamper.stamp(ctx, apps)
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	msg := kafkax.NewMessage(ctx, c.topic, "appointments", snapshotEventType, snap.Origin, raw)
	return c.writer.WriteMessages(ctx, msg)
}

func (c *KafkaChannel) Subscribe(h Handler) func() {
	return c.subs.add(h)
}

func (c *KafkaChannel) Run(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *KafkaChannel) handleMessage(ctx context.Context, msg kafka.Message) {
	meta := kafkax.ExtractEventMeta(msg)
	if meta.Origin == c.stamper.origin {
		return
	}

	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otelx.Tracer("syncbus").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("ecochurch.sync.origin", meta.Origin),
		),
	)
	defer span.End()

	snap, err := decodeSnapshot(msg.Value)
	if err != nil {
		c.logger.Warn("kafka sync message dropped", "event_id", meta.EventID, "err", err)
		span.RecordError(err)
		return
	}
	if snap.Origin == c.stamper.origin {
		return
	}
	c.subs.deliver(ctxSpan, snap)
}

// partitionZero keeps every snapshot on the partition readers follow, preserving publish order.
type partitionZero struct{}

func (partitionZero) Balance(kafka.Message, ...int) int {
	return 0
}

func (c *KafkaChannel) Close() error {
	return errors.Join(c.reader.Close(), c.writer.Close())
}
