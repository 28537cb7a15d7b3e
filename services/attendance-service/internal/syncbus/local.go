package syncbus

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

// LocalBus is an in-process broadcast group. Each participant joins with its own
// origin and sees snapshots published by every other participant.
type LocalBus struct {
	mu      sync.RWMutex
	members map[*Endpoint]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{members: map[*Endpoint]struct{}{}}
}

func (b *LocalBus) Join(origin string) *Endpoint {
	e := &Endpoint{bus: b, stamper: stamper{origin: origin}}
	b.mu.Lock()
	b.members[e] = struct{}{}
	b.mu.Unlock()
	return e
}

func (b *LocalBus) broadcast(ctx context.Context, from *Endpoint, snap Snapshot) {
	b.mu.RLock()
	targets := make([]*Endpoint, 0, len(b.members))
	for e := range b.members {
		if e != from {
			targets = append(targets, e)
		}
	}
	b.mu.RUnlock()
	for _, e := range targets {
		e.subs.deliver(ctx, snap)
	}
}

type Endpoint struct {
	bus     *LocalBus
	stamper stamper
	subs    subscribers
}

func (e *Endpoint) Publish(ctx context.Context, apps []model.Appointment) error {
	e.bus.broadcast(ctx, e, e.stamper.stamp(ctx, apps))
	return nil
}

func (e *Endpoint) Subscribe(h Handler) func() {
	return e.subs.add(h)
}

// Close leaves the bus.
func (e *Endpoint) Close() error {
	e.bus.mu.Lock()
	delete(e.bus.members, e)
	e.bus.mu.Unlock()
	return nil
}
