package syncbus

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

// Source returns the current authoritative collection.
type Source interface {
	FetchAppointments(ctx context.Context) ([]model.Appointment, error)
}

type SourceFunc func(ctx context.Context) ([]model.Appointment, error)

func (f SourceFunc) FetchAppointments(ctx context.Context) ([]model.Appointment, error) {
	return f(ctx)
}

// Sink accepts a whole collection written locally. A Source that is also a Sink is
// remote: local writes must reach it or the next poll would overwrite them.
type Sink interface {
	PushAppointments(ctx context.Context, apps []model.Appointment) error
}

// Poller converges by reading the source on a fixed interval. When the source is a
// Sink, Publish pushes the local collection to it; a failed push is retried before the
// next read, and reads are skipped until it lands.
type Poller struct {
	source   Source
	interval time.Duration
	origin   string
	epoch    int64
	logger   *slog.Logger
	subs     subscribers

	pushMu     sync.Mutex
	mu         sync.Mutex
	last       [sha256.Size]byte
	seen       bool
	seq        uint64
	gen        uint64
	pending    []model.Appointment
	hasPending bool
}

func NewPoller(source Source, interval time.Duration, origin string, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{source: source, interval: interval, origin: origin, epoch: newEpoch(), logger: logger}
}

func (p *Poller) Publish(ctx context.Context, apps []model.Appointment) error {
	sink, ok := p.source.(Sink)
	if !ok {
		return nil
	}
	if apps == nil {
		apps = []model.Appointment{}
	}
	p.mu.Lock()
	p.gen++
	p.pending = model.CloneAppointments(apps)
	p.hasPending = true
	p.mu.Unlock()
	return p.flush(ctx, sink)
}

// flush pushes the newest unsent local collection, if any. Pushes are serialized so an
// older collection never lands after a newer one.
func (p *Poller) flush(ctx context.Context, sink Sink) error {
	p.pushMu.Lock()
	defer p.pushMu.Unlock()

	p.mu.Lock()
	if !p.hasPending {
		p.mu.Unlock()
		return nil
	}
	apps, gen := p.pending, p.gen
	p.mu.Unlock()

	if err := sink.PushAppointments(ctx, apps); err != nil {
		return fmt.Errorf("push appointments: %w", err)
	}
	raw, err := json.Marshal(apps)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == gen {
		p.pending, p.hasPending = nil, false
	}
	p.last, p.seen = sha256.Sum256(raw), true
	return nil
}

func (p *Poller) Subscribe(h Handler) func() {
	return p.subs.add(h)
}

// Run polls once immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one read. Errors are logged and the previous snapshot stays in effect.
// Subscribers are only called when the collection changed since the last successful read.
func (p *Poller) Poll(ctx context.Context) {
	if sink, ok := p.source.(Sink); ok {
		if err := p.flush(ctx, sink); err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("sync push still pending, skipping poll", "err", err)
			}
			return
		}
	}
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	apps, err := p.source.FetchAppointments(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("sync poll failed, keeping previous snapshot", "err", err)
		}
		return
	}
	raw, err := json.Marshal(apps)
	if err != nil {
		p.logger.Warn("sync poll result not encodable", "err", err)
		return
	}
	sum := sha256.Sum256(raw)

	p.mu.Lock()
	if p.gen != gen || p.hasPending {
		// A local write landed while reading; this result may predate it.
		p.mu.Unlock()
		return
	}
	if p.seen && sum == p.last {
		p.mu.Unlock()
		return
	}
	p.seen = true
	p.last = sum
	p.seq++
	snap := Snapshot{
		Origin:       p.origin,
		Epoch:        p.epoch,
		Seq:          p.seq,
		Appointments: apps,
		PublishedAt:  time.Now().UnixMilli(),
	}
	p.mu.Unlock()

	p.subs.deliver(ctx, snap)
}

func (p *Poller) Close() error {
	return nil
}
