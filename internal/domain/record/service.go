package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
	"vetsync/internal/utils/txhook"

	"golang.org/x/exp/slog"
)

// Store — локальное хранилище сущностей. Область берётся из контекста каждого вызова.
type Store struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time

	mu      sync.RWMutex
	subs    map[int]func(Change)
	nextSub int
}

func NewStore(repo Repository, log *slog.Logger) *Store {
	return &Store{
		repo: repo,
		log:  log.With("component", "record_store"),
		now:  time.Now,
		subs: make(map[int]func(Change)),
	}
}

// WithClock подменяет источник времени.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Save сохраняет запись целиком и помечает её pending. Пустой ID заменяется временным.
func (s *Store) Save(ctx context.Context, rec *Record) (*Record, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := rec.Type.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidType, err)
	}

	now := s.now().UTC()
	out := rec.Clone()
	if out.ID == "" {
		out.ID = entity.NewTempID(now)
	}

	existing, err := s.repo.Get(ctx, scope, out.Type, out.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if existing != nil && out.Meta.BaseVersion == 0 {
		out.Meta.BaseVersion = existing.Meta.BaseVersion
		out.Meta.BaseUpdatedAt = existing.Meta.BaseUpdatedAt
	}

	s.stamp(out, scope, now)
	if err := s.repo.Upsert(ctx, scope, out); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	s.publish(ctx, Change{Kind: ChangeSaved, Type: out.Type, ID: out.ID, Record: out})
	return out, nil
}

// Update накладывает partial на сохранённые данные. Запись становится pending.
func (s *Store) Update(ctx context.Context, typ entity.Type, id string, partial json.RawMessage) (*Record, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, scope, typ, id)
	if err != nil {
		return nil, err
	}
	if rec.Meta.Deleted {
		return nil, fmt.Errorf("%w: %s/%s is deleted", ErrNotFound, typ, id)
	}

	data, err := entity.MergeFields(rec.Data, partial)
	if err != nil {
		return nil, err
	}
	rec.Data = data
	s.stamp(rec, scope, s.now().UTC())

	if err := s.repo.Upsert(ctx, scope, rec); err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	s.publish(ctx, Change{Kind: ChangeSaved, Type: typ, ID: id, Record: rec})
	return rec, nil
}

// Remove помечает запись удалённой. Физически она удаляется после подтверждения сервером.
func (s *Store) Remove(ctx context.Context, typ entity.Type, id string) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	rec, err := s.repo.Get(ctx, scope, typ, id)
	if err != nil {
		return err
	}
	if rec.Meta.Deleted {
		return fmt.Errorf("%w: %s/%s is deleted", ErrNotFound, typ, id)
	}

	rec.Meta.Deleted = true
	s.stamp(rec, scope, s.now().UTC())
	if err := s.repo.Upsert(ctx, scope, rec); err != nil {
		return fmt.Errorf("failed to remove record: %w", err)
	}

	s.publish(ctx, Change{Kind: ChangeRemoved, Type: typ, ID: id, Record: rec})
	return nil
}

// GetByID возвращает nil без ошибки, если записи нет или она удалена.
func (s *Store) GetByID(ctx context.Context, typ entity.Type, id string) (*Record, error) {
	rec, err := s.Find(ctx, typ, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Meta.Deleted {
		return nil, nil
	}
	return rec, nil
}

// Find возвращает запись, включая помеченные удалёнными.
func (s *Store) Find(ctx context.Context, typ entity.Type, id string) (*Record, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, scope, typ, id)
}

func (s *Store) List(ctx context.Context, typ entity.Type, filter Filter) ([]*Record, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope, typ, filter)
}

func (s *Store) Counts(ctx context.Context, typ entity.Type) (Counts, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return Counts{}, err
	}
	return s.repo.Counts(ctx, scope, typ)
}

// MarkSynced переводит запись в synced. Если передана серверная версия, данные и базовая
// версия берутся из неё.
func (s *Store) MarkSynced(ctx context.Context, typ entity.Type, id string, remote *entity.RemoteRecord) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	rec, err := s.repo.Get(ctx, scope, typ, id)
	if err != nil {
		return err
	}
	if remote != nil {
		rec.Data = remote.Data
		rec.Meta.BaseVersion = remote.Version
		rec.Meta.BaseUpdatedAt = remote.UpdatedAt
	}
	rec.Meta.SyncStatus = StatusSynced
	rec.Meta.LastError = ""

	if err := s.repo.Upsert(ctx, scope, rec); err != nil {
		return fmt.Errorf("failed to mark record synced: %w", err)
	}

	s.publish(ctx, Change{Kind: ChangeSynced, Type: typ, ID: id, Record: rec})
	return nil
}

func (s *Store) MarkError(ctx context.Context, typ entity.Type, id string, cause string) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	rec, err := s.repo.Get(ctx, scope, typ, id)
	if err != nil {
		return err
	}
	rec.Meta.SyncStatus = StatusError
	rec.Meta.LastError = cause

	if err := s.repo.Upsert(ctx, scope, rec); err != nil {
		return fmt.Errorf("failed to mark record error: %w", err)
	}

	s.publish(ctx, Change{Kind: ChangeError, Type: typ, ID: id, Record: rec})
	return nil
}

// SetBaseline сдвигает базовую версию, не меняя статус и данные.
func (s *Store) SetBaseline(ctx context.Context, typ entity.Type, id string, version int64, updatedAt time.Time) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	rec, err := s.repo.Get(ctx, scope, typ, id)
	if err != nil {
		return err
	}
	rec.Meta.BaseVersion = version
	rec.Meta.BaseUpdatedAt = updatedAt

	return s.repo.Upsert(ctx, scope, rec)
}

// Adopt записывает серверную версию как synced. Удалённая на сервере запись удаляется локально.
func (s *Store) Adopt(ctx context.Context, remote *entity.RemoteRecord) error {
	if remote.Deleted {
		err := s.Purge(ctx, remote.Type, remote.Key())
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	rec := &Record{
		ID:   remote.Key(),
		Type: remote.Type,
		Data: remote.Data,
		Meta: Meta{
			LastModified:  remote.UpdatedAt,
			SyncStatus:    StatusSynced,
			TenantID:      scope.TenantID,
			PracticeID:    scope.PracticeID,
			UserID:        scope.UserID,
			BaseVersion:   remote.Version,
			BaseUpdatedAt: remote.UpdatedAt,
		},
	}
	if err := s.repo.Upsert(ctx, scope, rec); err != nil {
		return fmt.Errorf("failed to adopt remote record: %w", err)
	}

	s.publish(ctx, Change{Kind: ChangeSynced, Type: rec.Type, ID: rec.ID, Record: rec})
	return nil
}

// Purge физически удаляет запись.
func (s *Store) Purge(ctx context.Context, typ entity.Type, id string) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, scope, typ, id); err != nil {
		return err
	}

	s.publish(ctx, Change{Kind: ChangePurged, Type: typ, ID: id})
	return nil
}

// Remap заменяет временный id серверным везде, где он встречается.
func (s *Store) Remap(ctx context.Context, typ entity.Type, oldID, newID string) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.RemapID(ctx, scope, typ, oldID, newID); err != nil {
		return fmt.Errorf("failed to remap %s -> %s: %w", oldID, newID, err)
	}

	s.log.Debug("temp id replaced", "type", typ, "old", oldID, "new", newID)
	s.publish(ctx, Change{Kind: ChangeRemapped, Type: typ, ID: newID, PrevID: oldID})
	return nil
}

// Subscribe регистрирует подписчика. Уведомления приходят синхронно после фиксации записи.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) publish(ctx context.Context, ch Change) {
	txhook.AfterCommit(ctx, func() {
		s.mu.RLock()
		subs := make([]func(Change), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
		s.mu.RUnlock()

		for _, fn := range subs {
			fn(ch)
		}
	})
}

func (s *Store) stamp(rec *Record, scope tenant.Scope, now time.Time) {
	rec.Meta.LastModified = now
	rec.Meta.SyncStatus = StatusPending
	rec.Meta.LastError = ""
	rec.Meta.TenantID = scope.TenantID
	rec.Meta.PracticeID = scope.PracticeID
	rec.Meta.UserID = scope.UserID
}
