package record

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
	"vetsync/internal/utils/txhook"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, scope tenant.Scope, typ entity.Type, id string) (*Record, error) {
	args := m.Called(ctx, scope, typ, id)
	rec, _ := args.Get(0).(*Record)
	return rec, args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, scope tenant.Scope, rec *Record) error {
	return m.Called(ctx, scope, rec).Error(0)
}

func (m *MockRepository) List(ctx context.Context, scope tenant.Scope, typ entity.Type, filter Filter) ([]*Record, error) {
	args := m.Called(ctx, scope, typ, filter)
	recs, _ := args.Get(0).([]*Record)
	return recs, args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, scope tenant.Scope, typ entity.Type, id string) error {
	return m.Called(ctx, scope, typ, id).Error(0)
}

func (m *MockRepository) Counts(ctx context.Context, scope tenant.Scope, typ entity.Type) (Counts, error) {
	args := m.Called(ctx, scope, typ)
	return args.Get(0).(Counts), args.Error(1)
}

func (m *MockRepository) RemapID(ctx context.Context, scope tenant.Scope, typ entity.Type, oldID, newID string) error {
	return m.Called(ctx, scope, typ, oldID, newID).Error(0)
}

var (
	testScope = tenant.Scope{TenantID: "clinic-a", PracticeID: 1, UserID: 10}
	testNow   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

func newTestStore(repo Repository) *Store {
	return NewStore(repo, slog.Default()).WithClock(func() time.Time { return testNow })
}

func scoped() context.Context {
	return tenant.WithScope(context.Background(), testScope)
}

func TestStore_Save_AssignsTempIDAndStamps(t *testing.T) {
	repo := new(MockRepository)
	store := newTestStore(repo)

	repo.On("Get", mock.Anything, testScope, entity.TypePet, mock.AnythingOfType("string")).Return(nil, ErrNotFound)
	repo.On("Upsert", mock.Anything, testScope, mock.AnythingOfType("*record.Record")).Return(nil)

	rec, err := store.Save(scoped(), &Record{Type: entity.TypePet, Data: json.RawMessage(`{"name":"Rex"}`)})

	require.NoError(t, err)
	assert.True(t, entity.IsTempID(rec.ID))
	assert.Equal(t, StatusPending, rec.Meta.SyncStatus)
	assert.Equal(t, "clinic-a", rec.Meta.TenantID)
	assert.Equal(t, int64(1), rec.Meta.PracticeID)
	assert.Equal(t, int64(10), rec.Meta.UserID)
	assert.Equal(t, testNow, rec.Meta.LastModified)
	repo.AssertExpectations(t)
}

func TestStore_Save_KeepsBaseline(t *testing.T) {
	repo := new(MockRepository)
	store := newTestStore(repo)

	existing := &Record{ID: "5", Type: entity.TypePet, Meta: Meta{BaseVersion: 3, BaseUpdatedAt: testNow.Add(-time.Hour)}}
	repo.On("Get", mock.Anything, testScope, entity.TypePet, "5").Return(existing, nil)
	repo.On("Upsert", mock.Anything, testScope, mock.MatchedBy(func(r *Record) bool {
		return r.Meta.BaseVersion == 3 && r.Meta.BaseUpdatedAt.Equal(testNow.Add(-time.Hour))
	})).Return(nil)

	_, err := store.Save(scoped(), &Record{ID: "5", Type: entity.TypePet, Data: json.RawMessage(`{}`)})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestStore_RequiresScope(t *testing.T) {
	store := newTestStore(new(MockRepository))

	_, err := store.Save(context.Background(), &Record{Type: entity.TypePet})
	assert.ErrorIs(t, err, tenant.ErrScope)

	_, err = store.List(context.Background(), entity.TypePet, Filter{})
	assert.ErrorIs(t, err, tenant.ErrScope)
}

func TestStore_Save_InvalidType(t *testing.T) {
	store := newTestStore(new(MockRepository))

	_, err := store.Save(scoped(), &Record{Type: "invoices"})

	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestStore_Update_MergesFields(t *testing.T) {
	repo := new(MockRepository)
	store := newTestStore(repo)

	existing := &Record{ID: "5", Type: entity.TypePet, Data: json.RawMessage(`{"name":"Rex","species":"dog"}`),
		Meta: Meta{SyncStatus: StatusSynced}}
	repo.On("Get", mock.Anything, testScope, entity.TypePet, "5").Return(existing, nil)
	repo.On("Upsert", mock.Anything, testScope, mock.AnythingOfType("*record.Record")).Return(nil)

	rec, err := store.Update(scoped(), entity.TypePet, "5", json.RawMessage(`{"name":"Max"}`))

	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Max","species":"dog"}`, string(rec.Data))
	assert.Equal(t, StatusPending, rec.Meta.SyncStatus)
}

func TestStore_GetByID(t *testing.T) {
	tests := []struct {
		name    string
		rec     *Record
		repoErr error
		wantNil bool
	}{
		{name: "present", rec: &Record{ID: "1", Type: entity.TypeClient}},
		{name: "soft deleted", rec: &Record{ID: "1", Type: entity.TypeClient, Meta: Meta{Deleted: true}}, wantNil: true},
		{name: "absent", repoErr: ErrNotFound, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			store := newTestStore(repo)
			repo.On("Get", mock.Anything, testScope, entity.TypeClient, "1").Return(tt.rec, tt.repoErr)

			rec, err := store.GetByID(scoped(), entity.TypeClient, "1")

			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, rec == nil)
		})
	}
}

func TestStore_MarkSynced_TakesRemoteVersion(t *testing.T) {
	repo := new(MockRepository)
	store := newTestStore(repo)

	repo.On("Get", mock.Anything, testScope, entity.TypeClient, "1").
		Return(&Record{ID: "1", Type: entity.TypeClient, Meta: Meta{SyncStatus: StatusPending, LastError: "x"}}, nil)
	repo.On("Upsert", mock.Anything, testScope, mock.MatchedBy(func(r *Record) bool {
		return r.Meta.SyncStatus == StatusSynced && r.Meta.BaseVersion == 4 && r.Meta.LastError == "" &&
			string(r.Data) == `{"first_name":"Anna"}`
	})).Return(nil)

	err := store.MarkSynced(scoped(), entity.TypeClient, "1", &entity.RemoteRecord{
		ID: 1, Type: entity.TypeClient, Version: 4, UpdatedAt: testNow, Data: json.RawMessage(`{"first_name":"Anna"}`),
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestStore_Adopt_DeletedRemotePurges(t *testing.T) {
	repo := new(MockRepository)
	store := newTestStore(repo)
	repo.On("Delete", mock.Anything, testScope, entity.TypePet, "9").Return(ErrNotFound)

	err := store.Adopt(scoped(), &entity.RemoteRecord{ID: 9, Type: entity.TypePet, Deleted: true})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestStore_Subscribe_NotifiesAfterCommit(t *testing.T) {
	repo := new(MockRepository)
	store := newTestStore(repo)
	repo.On("Delete", mock.Anything, testScope, entity.TypePet, "9").Return(nil)

	var got []Change
	unsubscribe := store.Subscribe(func(c Change) { got = append(got, c) })

	ctx, hooks := txhook.With(scoped())
	require.NoError(t, store.Purge(ctx, entity.TypePet, "9"))
	assert.Empty(t, got)

	hooks.Run()
	require.Len(t, got, 1)
	assert.Equal(t, ChangePurged, got[0].Kind)

	unsubscribe()
	require.NoError(t, store.Purge(scoped(), entity.TypePet, "9"))
	assert.Len(t, got, 1)
}
