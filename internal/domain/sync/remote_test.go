package sync_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/sync"
)

type remoteCall struct {
	Kind string
	Type entity.Type
	ID   int64
	Data json.RawMessage
}

// fakeRemote — удалённый сервис в памяти с версионированием записей.
type fakeRemote struct {
	mu      gosync.Mutex
	online  bool
	nextID  int64
	clock   time.Time
	records map[entity.Type]map[int64]*entity.RemoteRecord
	byCID   map[string]int64
	calls   []remoteCall

	// failCreate возвращает ошибку для create с указанным clientID.
	failCreate map[string]error
	// dropCreate создаёт запись, но отвечает транспортной ошибкой.
	dropCreate map[string]bool
	// pageSize ограничивает выдачу List, как серверный лимит страницы.
	pageSize int
	// gate, если задан, блокирует create до закрытия канала.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		online:     true,
		nextID:     100,
		clock:      time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		records:    make(map[entity.Type]map[int64]*entity.RemoteRecord),
		byCID:      make(map[string]int64),
		failCreate: make(map[string]error),
		dropCreate: make(map[string]bool),
	}
}

func (f *fakeRemote) setOnline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = v
}

func (f *fakeRemote) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRemote) table(typ entity.Type) map[int64]*entity.RemoteRecord {
	if f.records[typ] == nil {
		f.records[typ] = make(map[int64]*entity.RemoteRecord)
	}
	return f.records[typ]
}

func (f *fakeRemote) offline(op string) error {
	if f.online {
		return nil
	}
	return &sync.TransportError{Op: op, Err: errors.New("connection refused")}
}

func clone(r *entity.RemoteRecord) *entity.RemoteRecord {
	c := *r
	c.Data = append(json.RawMessage(nil), r.Data...)
	return &c
}

// seed кладёт запись на сервер с заданным id.
func (f *fakeRemote) seed(typ entity.Type, id int64, data string) *entity.RemoteRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	rec := &entity.RemoteRecord{ID: id, Type: typ, Data: json.RawMessage(data), Version: 1, CreatedAt: now, UpdatedAt: now}
	f.table(typ)[id] = rec
	return clone(rec)
}

// edit имитирует изменение записи другим сотрудником.
func (f *fakeRemote) edit(typ entity.Type, id int64, data string) *entity.RemoteRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.table(typ)[id]
	rec.Data = json.RawMessage(data)
	rec.Version++
	rec.UpdatedAt = f.tick()
	return clone(rec)
}

func (f *fakeRemote) get(typ entity.Type, id int64) *entity.RemoteRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.table(typ)[id]; ok {
		return clone(rec)
	}
	return nil
}

func (f *fakeRemote) count(typ entity.Type) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.table(typ))
}

func (f *fakeRemote) callLog() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteCall(nil), f.calls...)
}

func (f *fakeRemote) Probe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offline("probe")
}

func (f *fakeRemote) Create(ctx context.Context, typ entity.Type, clientID string, data json.RawMessage) (*entity.RemoteRecord, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &sync.TransportError{Op: "create", Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.offline("create"); err != nil {
		return nil, err
	}
	if err, ok := f.failCreate[clientID]; ok {
		return nil, err
	}

	if id, ok := f.byCID[clientID]; ok {
		return clone(f.table(typ)[id]), nil
	}

	f.nextID++
	now := f.tick()
	rec := &entity.RemoteRecord{
		ID: f.nextID, Type: typ, ClientID: clientID, Data: append(json.RawMessage(nil), data...),
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	f.table(typ)[rec.ID] = rec
	f.byCID[clientID] = rec.ID
	f.calls = append(f.calls, remoteCall{Kind: "create", Type: typ, ID: rec.ID, Data: rec.Data})

	if f.dropCreate[clientID] {
		delete(f.dropCreate, clientID)
		return nil, &sync.TransportError{Op: "create", Status: 504, Err: errors.New("gateway timeout")}
	}
	return clone(rec), nil
}

func (f *fakeRemote) Update(_ context.Context, typ entity.Type, id, baseVersion int64, data json.RawMessage) (*entity.RemoteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.offline("update"); err != nil {
		return nil, err
	}
	rec, ok := f.table(typ)[id]
	if !ok || rec.Deleted {
		return nil, sync.ErrRemoteNotFound
	}
	if baseVersion > 0 && baseVersion != rec.Version {
		return nil, &sync.ConflictError{Remote: clone(rec)}
	}

	rec.Data = append(json.RawMessage(nil), data...)
	rec.Version++
	rec.UpdatedAt = f.tick()
	f.calls = append(f.calls, remoteCall{Kind: "update", Type: typ, ID: id, Data: rec.Data})
	return clone(rec), nil
}

func (f *fakeRemote) Delete(_ context.Context, typ entity.Type, id, baseVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.offline("delete"); err != nil {
		return err
	}
	rec, ok := f.table(typ)[id]
	if !ok || rec.Deleted {
		return sync.ErrRemoteNotFound
	}
	if baseVersion > 0 && baseVersion != rec.Version {
		return &sync.ConflictError{Remote: clone(rec)}
	}

	rec.Deleted = true
	rec.Version++
	rec.UpdatedAt = f.tick()
	f.calls = append(f.calls, remoteCall{Kind: "delete", Type: typ, ID: id})
	return nil
}

func (f *fakeRemote) Get(_ context.Context, typ entity.Type, id int64) (*entity.RemoteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.offline("get"); err != nil {
		return nil, err
	}
	rec, ok := f.table(typ)[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d", sync.ErrRemoteNotFound, typ, id)
	}
	return clone(rec), nil
}

func (f *fakeRemote) List(_ context.Context, typ entity.Type, since time.Time) ([]*entity.RemoteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.offline("list"); err != nil {
		return nil, err
	}
	var out []*entity.RemoteRecord
	for _, rec := range f.table(typ) {
		if rec.UpdatedAt.After(since) {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.pageSize > 0 && len(out) > f.pageSize {
		out = out[:f.pageSize]
	}
	return out, nil
}
