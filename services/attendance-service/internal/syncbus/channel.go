package syncbus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	otelx "github.com/md-rashed-zaman/ecochurch/libs/otel"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

// Snapshot is one authoritative copy of the whole appointment collection.
// Seq increases per Origin within one Epoch, and a publisher that restarts under the
// same Origin starts a later Epoch, so a receiver can drop a late copy by comparing
// (Epoch, Seq).
type Snapshot struct {
	Origin       string              `json:"origin"`
	Epoch        int64               `json:"epoch"`
	Seq          uint64              `json:"seq"`
	Appointments []model.Appointment `json:"appointments"`
	PublishedAt  int64               `json:"publishedAt"`
	otelx.Carrier
}

type Handler func(ctx context.Context, snap Snapshot)

// Channel notifies other views of a new collection. Delivery is best effort and
// at most once; a publisher never receives its own snapshot.
type Channel interface {
	Publish(ctx context.Context, apps []model.Appointment) error
	Subscribe(h Handler) (unsubscribe func())
	Close() error
}

// subscribers is the handler registry every transport embeds.
type subscribers struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
}

func (s *subscribers) add(h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = map[int]Handler{}
	}
	id := s.next
	s.next++
	s.handlers[id] = h
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) deliver(ctx context.Context, snap Snapshot) {
	s.mu.RLock()
	hs := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		hs = append(hs, h)
	}
	s.mu.RUnlock()
	for _, h := range hs {
		snap.Appointments = model.CloneAppointments(snap.Appointments)
		h(ctx, snap)
	}
}

// Later reports whether snap was published after the (epoch, seq) mark.
func (s Snapshot) Later(epoch int64, seq uint64) bool {
	return s.Epoch > epoch || (s.Epoch == epoch && s.Seq > seq)
}

var lastEpoch atomic.Int64

// newEpoch returns a wall-clock start mark that is strictly increasing within the process.
func newEpoch() int64 {
	for {
		prev := lastEpoch.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastEpoch.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// stamper assigns the origin, epoch and sequence to outgoing snapshots.
type stamper struct {
	origin string
	once   sync.Once
	epoch  int64
	seq    atomic.Uint64
}

func (s *stamper) stamp(ctx context.Context, apps []model.Appointment) Snapshot {
	s.once.Do(func() { s.epoch = newEpoch() })
	return Snapshot{
		Origin:       s.origin,
		Epoch:        s.epoch,
		Seq:          s.seq.Add(1),
		Appointments: model.CloneAppointments(apps),
		PublishedAt:  time.Now().UnixMilli(),
		Carrier:      otelx.CarrierFrom(ctx),
	}
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSnapshot(raw []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, err
	}
	if s.Appointments == nil {
		s.Appointments = []model.Appointment{}
	}
	return s, nil
}

// receiveContext restores the publisher's trace context on the receiving side.
func receiveContext(ctx context.Context, s Snapshot) context.Context {
	return s.Carrier.Resume(ctx)
}
