package records

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/storage"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/syncbus"
)

type fakeStore struct {
	writes int
	last   []model.Appointment
	err    error
}

func (f *fakeStore) ReplaceAppointments(_ context.Context, all []model.Appointment) error {
	if f.err != nil {
		return f.err
	}
	f.writes++
	f.last = model.CloneAppointments(all)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fields(name, church string) model.AppointmentFields {
	return model.AppointmentFields{
		Name:         name,
		Phone:        "300 555 0101",
		Neighborhood: "Robledo",
		Date:         "DOMINGO",
		Time:         "09:00 AM",
		Church:       church,
	}
}

func newService(store Store, ch syncbus.Channel, initial []model.Appointment) *Service {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewService(store, ch, initial, quietLogger(), Config{
		Origin: "node-a",
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
}

func TestCreatePrependsPendingWithUniqueID(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	initial := []model.Appointment{
		{ID: "b", Name: "Ben", Status: model.StatusCompleted},
		{ID: "c", Name: "Cata", Status: model.StatusPending},
	}
	svc := newService(store, nil, initial)

	app, err := svc.Create(ctx, fields("Ana", "CENTRO"), Owner{ID: "u1", Name: "Rod"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if app.Status != model.StatusPending || app.UserID != "u1" || app.UserName != "Rod" || app.CreatedAt == 0 {
		t.Fatalf("unexpected record: %+v", app)
	}
	list := svc.List()
	if len(list) != 3 || list[0].ID != app.ID || list[1].ID != "b" || list[2].ID != "c" {
		t.Fatalf("expected new record first and the rest unchanged: %+v", list)
	}
	for _, other := range initial {
		if other.ID == app.ID {
			t.Fatal("generated id collides with an existing id")
		}
	}
	if store.writes != 1 || len(store.last) != 3 {
		t.Fatalf("expected one whole-collection write, got %d", store.writes)
	}
}

func TestCreateRejectsInvalidFields(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store, nil, nil)
	_, err := svc.Create(context.Background(), fields("Ana", "MEDELLÍN"), Owner{ID: "u1"})
	if !errors.Is(err, ErrInvalidAppointment) {
		t.Fatalf("expected invalid appointment, got %v", err)
	}
	if store.writes != 0 || len(svc.List()) != 0 {
		t.Fatal("invalid create must not persist")
	}
}

func TestUpdatePreservesAbsentFields(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	svc := newService(store, nil, nil)
	app, _ := svc.Create(ctx, fields("Ana", "CENTRO"), Owner{ID: "u1", Name: "Rod"})

	notes := "Llamar el martes"
	got, err := svc.Update(ctx, app.ID, model.AppointmentPatch{Notes: &notes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := app
	want.Notes = notes
	if got != want {
		t.Fatalf("update changed more than notes:\n got %+v\nwant %+v", got, want)
	}

	church := "BELLO"
	if _, err := svc.Update(ctx, "missing", model.AppointmentPatch{Church: &church}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	svc := newService(&fakeStore{}, nil, nil)
	app, _ := svc.Create(ctx, fields("Ana", "CENTRO"), Owner{ID: "u1"})

	cancelled := model.StatusCancelled
	if _, err := svc.Update(ctx, app.ID, model.AppointmentPatch{Status: &cancelled}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	completed := model.StatusCompleted
	got, err := svc.Update(ctx, app.ID, model.AppointmentPatch{Status: &completed})
	if err != nil || got.Status != model.StatusCompleted {
		t.Fatalf("expected completed: %+v %v", got, err)
	}
	pending := model.StatusPending
	if _, err := svc.Update(ctx, app.ID, model.AppointmentPatch{Status: &pending}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed must not revert, got %v", err)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	svc := newService(store, nil, []model.Appointment{{ID: "a", Name: "Ana", Status: model.StatusPending}})

	if _, err := svc.Complete(ctx, "a"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	once := svc.List()
	writes := store.writes
	if _, err := svc.Complete(ctx, "a"); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !reflect.DeepEqual(once, svc.List()) {
		t.Fatal("second complete changed state")
	}
	if store.writes != writes {
		t.Fatal("second complete should not persist")
	}
	if _, err := svc.Complete(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{err: errors.New("disk full")}
	bus := syncbus.NewLocalBus()
	peer := bus.Join("node-b")
	published := 0
	peer.Subscribe(func(context.Context, syncbus.Snapshot) { published++ })

	svc := newService(store, bus.Join("node-a"), []model.Appointment{{ID: "a", Status: model.StatusPending}})
	if _, err := svc.Complete(ctx, "a"); err == nil {
		t.Fatal("expected persist error")
	}
	if svc.List()[0].Status != model.StatusPending {
		t.Fatal("state must not change when persist fails")
	}
	if published != 0 {
		t.Fatal("nothing should be published when persist fails")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newService(&fakeStore{}, nil, nil)
	for _, name := range []string{"Ana", "Ben", "Cata"} {
		if _, err := src.Create(ctx, fields(name, "CENTRO"), Owner{ID: "u1", Name: "Rod"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_, _ = src.Complete(ctx, src.List()[1].ID)

	blob, err := src.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	dst := newService(&fakeStore{}, nil, nil)
	n, err := dst.Import(ctx, blob)
	if err != nil || n != 3 {
		t.Fatalf("import: %d %v", n, err)
	}

	byID := func(apps []model.Appointment) []model.Appointment {
		out := model.CloneAppointments(apps)
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}
	if !reflect.DeepEqual(byID(src.List()), byID(dst.List())) {
		t.Fatal("round trip changed the collection")
	}
}

func TestImportRejectsMalformedBlobs(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	existing := []model.Appointment{{ID: "keep", Name: "Ana", Status: model.StatusPending}}
	svc := newService(store, nil, existing)

	for _, blob := range []string{
		"",
		"not base64 !!",
		"e30=",                    // {}
		`{"id":"a"}`,              // object, not a list
		`[{"id":""}]`,             // missing id
		`[{"id":"a"},{"id":"a"}]`, // duplicate id
		"[{",
	} {
		if _, err := svc.Import(ctx, blob); !errors.Is(err, ErrMalformedImport) {
			t.Fatalf("blob %q: expected malformed import, got %v", blob, err)
		}
	}
	if store.writes != 0 || !reflect.DeepEqual(svc.List(), existing) {
		t.Fatal("malformed import must leave the store untouched")
	}

	if n, err := svc.Import(ctx, `[{"id":"x","name":"Xio","status":"pending"}]`); err != nil || n != 1 {
		t.Fatalf("raw json import: %d %v", n, err)
	}
	if svc.List()[0].ID != "x" || len(svc.List()) != 1 {
		t.Fatal("import should replace the whole collection")
	}
}

func TestMutationsPublishAndPeersApply(t *testing.T) {
	ctx := context.Background()
	bus := syncbus.NewLocalBus()
	ind := syncbus.NewIndicator(time.Minute)

	a := NewService(&fakeStore{}, bus.Join("node-a"), nil, quietLogger(), Config{Origin: "node-a"})
	bStore := &fakeStore{}
	b := NewService(bStore, bus.Join("node-b"), nil, quietLogger(), Config{
		Origin:          "node-b",
		PersistReceived: true,
		Indicator:       ind,
	})
	a.Attach()
	b.Attach()

	app, err := a.Create(ctx, fields("Ana", "CENTRO"), Owner{ID: "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := b.List(); len(got) != 1 || got[0].ID != app.ID {
		t.Fatalf("peer did not converge: %+v", got)
	}
	if bStore.writes != 1 {
		t.Fatal("received snapshot should be persisted locally")
	}
	if !ind.Status().Syncing {
		t.Fatal("indicator should show syncing after a receive")
	}

	// Last write wins over the whole collection.
	if _, err := b.Complete(ctx, app.ID); err != nil {
		t.Fatalf("complete on peer: %v", err)
	}
	if a.List()[0].Status != model.StatusCompleted {
		t.Fatal("origin did not converge on peer's write")
	}
}

func TestApplyIgnoresStaleAndOwnSnapshots(t *testing.T) {
	svc := newService(&fakeStore{}, nil, nil)
	ctx := context.Background()

	svc.Apply(ctx, syncbus.Snapshot{Origin: "node-b", Seq: 2, Appointments: []model.Appointment{{ID: "new"}}})
	svc.Apply(ctx, syncbus.Snapshot{Origin: "node-b", Seq: 1, Appointments: []model.Appointment{{ID: "old"}}})
	if got := svc.List(); len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("stale snapshot applied: %+v", got)
	}
	svc.Apply(ctx, syncbus.Snapshot{Origin: "node-a", Seq: 9, Appointments: nil})
	if len(svc.List()) != 1 {
		t.Fatal("own snapshot must be ignored")
	}
}

func TestRestartedPeerIsNotTreatedAsStale(t *testing.T) {
	ctx := context.Background()
	bus := syncbus.NewLocalBus()
	a := NewService(&fakeStore{}, bus.Join("node-a"), nil, quietLogger(), Config{Origin: "node-a"})
	a.Attach()

	bEndpoint := bus.Join("node-b")
	b := NewService(&fakeStore{}, bEndpoint, nil, quietLogger(), Config{Origin: "node-b"})
	for _, name := range []string{"Ana", "Ben", "Cata"} {
		if _, err := b.Create(ctx, fields(name, "CENTRO"), Owner{ID: "u1"}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if len(a.List()) != 3 {
		t.Fatalf("peer did not converge before restart: %d", len(a.List()))
	}

	_ = bEndpoint.Close()
	restarted := NewService(&fakeStore{}, bus.Join("node-b"), b.List(), quietLogger(), Config{Origin: "node-b"})
	app, err := restarted.Create(ctx, fields("Dora", "BELLO"), Owner{ID: "u1"})
	if err != nil {
		t.Fatalf("create after restart: %v", err)
	}
	if got := a.List(); len(got) != 4 || got[0].ID != app.ID {
		t.Fatalf("write from restarted peer was dropped: %+v", got)
	}
}

// pushRemote stands in for a remote service read by polling and written by push.
type pushRemote struct {
	apps []model.Appointment
}

func (r *pushRemote) FetchAppointments(context.Context) ([]model.Appointment, error) {
	return model.CloneAppointments(r.apps), nil
}

func (r *pushRemote) PushAppointments(_ context.Context, apps []model.Appointment) error {
	r.apps = model.CloneAppointments(apps)
	return nil
}

func TestPolledRemoteKeepsLocalWrites(t *testing.T) {
	ctx := context.Background()
	remote := &pushRemote{apps: []model.Appointment{{ID: "r1", Name: "Remota", Status: model.StatusPending}}}
	poller := syncbus.NewPoller(remote, time.Hour, "poll:node-a", quietLogger())
	svc := newService(&fakeStore{}, poller, nil)
	svc.Attach()

	poller.Poll(ctx)
	if got := svc.List(); len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("initial poll not applied: %+v", got)
	}

	local, err := svc.Create(ctx, fields("Local", "CENTRO"), Owner{ID: "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	remote.apps = append([]model.Appointment{{ID: "r2", Name: "Otra", Status: model.StatusPending}}, remote.apps...)
	poller.Poll(ctx)

	got := map[string]bool{}
	for _, a := range svc.List() {
		got[a.ID] = true
	}
	if !got[local.ID] || !got["r1"] || !got["r2"] {
		t.Fatalf("local write lost after poll: %+v", svc.List())
	}
}

func TestScenarioCompleteThenFilterPending(t *testing.T) {
	ctx := context.Background()
	svc := newService(&fakeStore{}, nil, []model.Appointment{
		{ID: "a", Name: "Ana", Church: "CENTRO", Status: model.StatusPending},
		{ID: "b", Name: "Ben", Church: "BELLO", Status: model.StatusCompleted},
	})
	if _, err := svc.Complete(ctx, "a"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	for _, a := range svc.List() {
		if a.Status == model.StatusPending {
			t.Fatalf("expected no pending records, found %q", a.ID)
		}
	}
}

func TestServiceOverStoreLoadsMalformedAsEmpty(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewMemoryMedium()
	_ = medium.Set(ctx, storage.KeyAppointments, "null")
	store := storage.NewStore(medium, quietLogger(), "")
	_, apps := store.Load(ctx)
	svc := NewService(store, nil, apps, quietLogger(), Config{Origin: "node-a"})
	if len(svc.List()) != 0 {
		t.Fatal("expected empty collection")
	}
	if _, err := svc.Create(ctx, fields("Ana", "CENTRO"), Owner{ID: "u1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, reloaded := store.Load(ctx)
	if len(reloaded) != 1 {
		t.Fatal("create was not persisted")
	}
}
