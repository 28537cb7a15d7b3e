package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/syncbus"
)

var (
	ErrNotFound           = errors.New("appointment not found")
	ErrInvalidTransition  = errors.New("status can only move from pending to completed")
	ErrMalformedImport    = errors.New("import blob is not an appointment collection")
	ErrInvalidAppointment = errors.New("invalid appointment")
)

// Store persists the whole appointment collection in one write.
type Store interface {
	ReplaceAppointments(ctx context.Context, all []model.Appointment) error
}

// Owner identifies who is recording an appointment.
type Owner struct {
	ID   string
	Name string
}

type Config struct {
	// Origin names this instance on the sync channel.
	Origin string
	// PersistReceived writes snapshots received from the channel to the local medium.
	// Leave it off when the medium is shared with the publisher.
	PersistReceived bool
	Indicator       *syncbus.Indicator
	Now             func() time.Time
}

// Service holds the in-memory collection. Every mutation computes the full next
// collection, persists it, then swaps it in and publishes it.
type Service struct {
	mu      sync.Mutex
	apps    []model.Appointment
	store   Store
	channel syncbus.Channel
	logger  *slog.Logger
	cfg     Config
	lastSeq map[string]seqMark
}

// seqMark is the newest (epoch, seq) applied from one origin.
type seqMark struct {
	epoch int64
	seq   uint64
}

func NewService(store Store, channel syncbus.Channel, initial []model.Appointment, logger *slog.Logger, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if initial == nil {
		initial = []model.Appointment{}
	}
	return &Service{
		apps:    model.CloneAppointments(initial),
		store:   store,
		channel: channel,
		logger:  logger,
		cfg:     cfg,
		lastSeq: map[string]seqMark{},
	}
}

// Attach subscribes the service to its channel. Call the returned func to detach.
func (s *Service) Attach() func() {
	if s.channel == nil {
		return func() {}
	}
	return s.channel.Subscribe(s.Apply)
}

func (s *Service) List() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneAppointments(s.apps)
}

func (s *Service) Get(id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.apps, id)
	if i < 0 {
		return model.Appointment{}, ErrNotFound
	}
	return s.apps[i], nil
}

// Create records a new pending appointment at the front of the collection.
func (s *Service) Create(ctx context.Context, fields model.AppointmentFields, owner Owner) (model.Appointment, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	app := model.Appointment{
		ID:           s.newID(),
		UserID:       owner.ID,
		UserName:     owner.Name,
		Name:         fields.Name,
		Phone:        fields.Phone,
		Neighborhood: fields.Neighborhood,
		Date:         fields.Date,
		Time:         fields.Time,
		Church:       fields.Church,
		Notes:        fields.Notes,
		Status:       model.StatusPending,
		CreatedAt:    s.cfg.Now().UnixMilli(),
	}
	next := make([]model.Appointment, 0, len(s.apps)+1)
	next = append(next, app)
	next = append(next, s.apps...)

	if err := s.replaceLocked(ctx, next); err != nil {
		return model.Appointment{}, err
	}
	return app, nil
}

// Update merges the present patch fields over the stored record.
func (s *Service) Update(ctx context.Context, id string, patch model.AppointmentPatch) (model.Appointment, error) {
	if err := patch.Validate(); err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.apps, id)
	if i < 0 {
		return model.Appointment{}, ErrNotFound
	}
	current := s.apps[i]
	merged := patch.Merge(current)
	if patch.Status != nil && *patch.Status != current.Status {
		if current.Status != model.StatusPending || *patch.Status != model.StatusCompleted {
			return model.Appointment{}, ErrInvalidTransition
		}
		merged.Status = model.StatusCompleted
	}
	if merged == current {
		return current, nil
	}

	next := model.CloneAppointments(s.apps)
	next[i] = merged
	if err := s.replaceLocked(ctx, next); err != nil {
		return model.Appointment{}, err
	}
	return merged, nil
}

// Complete flips status to completed. Completing a completed record changes nothing.
func (s *Service) Complete(ctx context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.apps, id)
	if i < 0 {
		return model.Appointment{}, ErrNotFound
	}
	switch s.apps[i].Status {
	case model.StatusCompleted:
		return s.apps[i], nil
	case model.StatusPending:
	default:
		return model.Appointment{}, ErrInvalidTransition
	}

	next := model.CloneAppointments(s.apps)
	next[i].Status = model.StatusCompleted
	if err := s.replaceLocked(ctx, next); err != nil {
		return model.Appointment{}, err
	}
	return next[i], nil
}

// Export returns the whole collection as an opaque text blob.
func (s *Service) Export() (string, error) {
	return EncodeBlob(s.List())
}

// Import replaces the collection with the blob's contents. A blob that does not decode
// to a collection with unique, non-empty ids leaves the current state untouched.
func (s *Service) Import(ctx context.Context, blob string) (int, error) {
	apps, err := DecodeBlob(blob)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.replaceLocked(ctx, apps); err != nil {
		return 0, err
	}
	return len(apps), nil
}

// Apply adopts a snapshot received from another writer. It does not republish.
func (s *Service) Apply(ctx context.Context, snap syncbus.Snapshot) {
	if snap.Origin == s.cfg.Origin {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastSeq[snap.Origin]; ok && !snap.Later(last.epoch, last.seq) {
		s.logger.Debug("stale sync snapshot ignored", "origin", snap.Origin, "epoch", snap.Epoch, "seq", snap.Seq, "last_seq", last.seq)
		return
	}
	s.lastSeq[snap.Origin] = seqMark{epoch: snap.Epoch, seq: snap.Seq}

	apps := model.CloneAppointments(snap.Appointments)
	if s.cfg.PersistReceived {
		if err := s.store.ReplaceAppointments(ctx, apps); err != nil {
			s.logger.Warn("persisting received snapshot failed", "origin", snap.Origin, "err", err)
		}
	}
	s.apps = apps
	if s.cfg.Indicator != nil {
		s.cfg.Indicator.Mark(snap.Origin)
	}
	s.logger.Debug("sync snapshot applied", "origin", snap.Origin, "seq", snap.Seq, "count", len(apps))
}

// replaceLocked persists next, then swaps it in and publishes it. On a persist error the
// in-memory state is left as it was. Caller holds s.mu.
func (s *Service) replaceLocked(ctx context.Context, next []model.Appointment) error {
	if err := s.store.ReplaceAppointments(ctx, next); err != nil {
		s.logger.Error("persisting appointments failed", "err", err)
		return fmt.Errorf("persist appointments: %w", err)
	}
	s.apps = next
	if s.channel != nil {
		if err := s.channel.Publish(ctx, model.CloneAppointments(next)); err != nil {
			s.logger.Warn("sync publish failed", "err", err)
		}
	}
	return nil
}

func (s *Service) newID() string {
	for {
		id := uuid.NewString()
		if indexOf(s.apps, id) < 0 {
			return id
		}
	}
}

func indexOf(apps []model.Appointment, id string) int {
	for i := range apps {
		if apps[i].ID == id {
			return i
		}
	}
	return -1
}
