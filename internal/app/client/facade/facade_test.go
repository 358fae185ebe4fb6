package facade

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	gosync "sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/record"
	"vetsync/internal/domain/tenant"
	"vetsync/internal/infrastructure/storage/sqlite"
)

type stubMonitor struct {
	online atomic.Bool
}

func (m *stubMonitor) Online() bool { return m.online.Load() }

type recorder struct {
	mu    gosync.Mutex
	items []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}
	}
	return r.items[len(r.items)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type fixture struct {
	ctx      context.Context
	store    *record.Store
	queue    *queue.Queue
	monitor  *stubMonitor
	notifier *recorder
	set      *Set
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := tenant.WithScope(context.Background(), tenant.Scope{TenantID: "clinic-a", PracticeID: 1, UserID: 3})

	db, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "facade.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		ctx:      ctx,
		store:    record.NewStore(sqlite.NewRecordRepository(db, log), log),
		queue:    queue.NewQueue(sqlite.NewQueueRepository(db, log), queue.Config{MaxRetries: 5}, log),
		monitor:  &stubMonitor{},
		notifier: &recorder{},
	}
	f.set = NewSet(Deps{
		Store:    f.store,
		Queue:    f.queue,
		Tx:       db,
		Monitor:  f.monitor,
		Notifier: f.notifier,
		Log:      log,
	})
	return f
}

func (f *fixture) ops(t *testing.T) []*queue.Operation {
	t.Helper()
	ops, err := f.queue.DequeueBatch(f.ctx, 100)
	require.NoError(t, err)
	return ops
}

func TestFacade_CreateOfflineHydratesAndEnqueues(t *testing.T) {
	f := newFixture(t)

	owner, err := f.set.Clients.Create(f.ctx, entity.Client{FirstName: " Anna ", LastName: "Petrova"})
	require.NoError(t, err)
	assert.True(t, entity.IsTempID(owner.ID))
	assert.Equal(t, "Anna", owner.Data.FirstName)

	pet, err := f.set.Pets.Create(f.ctx, entity.Pet{Name: "Rex", Species: "Dog", OwnerID: entity.Ref(owner.ID)})
	require.NoError(t, err)

	assert.Equal(t, "Anna Petrova", pet.Data.OwnerName)
	assert.Equal(t, "dog", pet.Data.Species)
	assert.Equal(t, record.StatusPending, pet.Meta.SyncStatus)
	assert.Equal(t, LevelWarning, f.notifier.last().Level)

	got, err := f.set.Pets.Get(f.ctx, pet.ID)
	require.NoError(t, err)
	assert.Equal(t, pet.Data, got.Data)

	ops := f.ops(t)
	require.Len(t, ops, 2)
	assert.Equal(t, queue.KindCreate, ops[1].Kind)
	assert.Equal(t, pet.ID, ops[1].EntityID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ops[1].Payload, &payload))
	assert.Equal(t, owner.ID, payload["owner_id"])
	assert.Equal(t, "Anna Petrova", payload["owner_name"])
}

func TestFacade_CreateInvalidPayload(t *testing.T) {
	f := newFixture(t)

	_, err := f.set.Pets.Create(f.ctx, entity.Pet{Name: "  "})
	assert.ErrorIs(t, err, entity.ErrInvalidPayload)

	list, err := f.set.Pets.List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.ops(t))
	assert.Zero(t, f.notifier.count())
}

func TestFacade_StoreErrorNotifiesAndSkipsQueue(t *testing.T) {
	f := newFixture(t)

	_, err := f.set.Clients.Create(context.Background(), entity.Client{FirstName: "Ivan"})
	assert.ErrorIs(t, err, tenant.ErrScope)
	assert.Equal(t, LevelError, f.notifier.last().Level)
	assert.Empty(t, f.ops(t))
}

func TestFacade_UpdateReplacesData(t *testing.T) {
	f := newFixture(t)
	f.monitor.online.Store(true)

	c, err := f.set.Clients.Create(f.ctx, entity.Client{FirstName: "Ivan", Phone: "111"})
	require.NoError(t, err)

	updated, err := f.set.Clients.Update(f.ctx, c.ID, entity.Client{FirstName: "Ivan", LastName: "Sidorov"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, updated.ID)
	assert.Empty(t, updated.Data.Phone)
	assert.Equal(t, LevelInfo, f.notifier.last().Level)

	ops := f.ops(t)
	require.Len(t, ops, 1, "only the head operation of an entity is handed out")
	assert.Equal(t, queue.KindCreate, ops[0].Kind)

	n, err := f.queue.Outstanding(f.ctx, entity.TypeClient, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFacade_UpdateMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.set.Clients.Update(f.ctx, "42", entity.Client{FirstName: "Ivan"})
	assert.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, LevelError, f.notifier.last().Level)
	assert.Contains(t, f.notifier.last().Message, "42")
}

func TestFacade_Patch(t *testing.T) {
	f := newFixture(t)

	a, err := f.set.Admissions.Create(f.ctx, entity.Admission{
		PetID:      "7",
		AdmittedAt: "2026-03-01 09:30",
		Charges:    []entity.Charge{{Description: "exam", Amount: 40}},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AdmissionActive, a.Data.Status)
	assert.Equal(t, entity.Number(40), a.Data.TotalCharges)

	patched, err := f.set.Admissions.Patch(f.ctx, a.ID, json.RawMessage(`{"ward":" B ","charges":[{"description":"exam","amount":40},{"description":"x-ray","amount":"60"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "B", patched.Data.Ward)
	assert.Equal(t, entity.Number(100), patched.Data.TotalCharges)
	assert.Equal(t, a.Data.AdmittedAt, patched.Data.AdmittedAt)

	_, err = f.set.Admissions.Patch(f.ctx, a.ID, json.RawMessage(`{"charges":[{"amount":-1}]}`))
	assert.ErrorIs(t, err, entity.ErrInvalidPayload)

	got, err := f.set.Admissions.Get(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Number(100), got.Data.TotalCharges, "rejected patch is rolled back")
}

func TestFacade_Delete(t *testing.T) {
	f := newFixture(t)

	p, err := f.set.Pets.Create(f.ctx, entity.Pet{Name: "Tom"})
	require.NoError(t, err)
	require.NoError(t, f.set.Pets.Delete(f.ctx, p.ID))

	_, err = f.set.Pets.Get(f.ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	list, err := f.set.Pets.List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, f.set.Pets.Delete(f.ctx, p.ID), ErrNotFound)

	n, err := f.queue.Outstanding(f.ctx, entity.TypePet, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFacade_HydrationAndCounts(t *testing.T) {
	f := newFixture(t)

	owner, err := f.set.Clients.Create(f.ctx, entity.Client{FirstName: "Olga", LastName: "K"})
	require.NoError(t, err)
	pet, err := f.set.Pets.Create(f.ctx, entity.Pet{Name: "Murka", OwnerID: entity.Ref(owner.ID)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		create func() (pet, client string, err error)
	}{
		{
			name: "appointment",
			create: func() (string, string, error) {
				a, err := f.set.Appointments.Create(f.ctx, entity.Appointment{
					PetID: entity.Ref(pet.ID), ClientID: entity.Ref(owner.ID), StartsAt: "2026-03-02T10:00:00Z",
				})
				if err != nil {
					return "", "", err
				}
				return a.Data.PetName, a.Data.ClientName, nil
			},
		},
		{
			name: "soap note",
			create: func() (string, string, error) {
				n, err := f.set.SoapNotes.Create(f.ctx, entity.SoapNote{
					PetID: entity.Ref(pet.ID), RecordedAt: "2026-03-02T10:30:00Z",
				})
				if err != nil {
					return "", "", err
				}
				return n.Data.PetName, "Olga K", nil
			},
		},
		{
			name: "admission",
			create: func() (string, string, error) {
				a, err := f.set.Admissions.Create(f.ctx, entity.Admission{
					PetID: entity.Ref(pet.ID), ClientID: entity.Ref(owner.ID), AdmittedAt: "2026-03-02T11:00:00Z",
				})
				if err != nil {
					return "", "", err
				}
				return a.Data.PetName, a.Data.ClientName, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			petName, clientName, err := tt.create()
			require.NoError(t, err)
			assert.Equal(t, "Murka", petName)
			assert.Equal(t, "Olga K", clientName)
		})
	}

	counts, err := f.set.Pets.Counts(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, record.Counts{Pending: 1}, counts)
}
