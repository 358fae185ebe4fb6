// Package practice — серверное хранилище записей клиники с версионированием.
package practice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
)

const DefaultListLimit = 1000

type Servicer interface {
	Create(ctx context.Context, typ entity.Type, clientID string, data json.RawMessage) (*entity.RemoteRecord, bool, error)
	Update(ctx context.Context, typ entity.Type, id, baseVersion int64, data json.RawMessage) (*entity.RemoteRecord, error)
	Delete(ctx context.Context, typ entity.Type, id, baseVersion int64) error
	Get(ctx context.Context, typ entity.Type, id int64) (*entity.RemoteRecord, error)
	List(ctx context.Context, typ entity.Type, since time.Time) ([]*entity.RemoteRecord, error)
}

// ConflictObserver получает уведомление о каждом отклонённом по версии изменении.
type ConflictObserver func(typ entity.Type)

type Service struct {
	repo       Repository
	log        *slog.Logger
	limit      int
	onConflict ConflictObserver
}

func NewService(repo Repository, log *slog.Logger, onConflict ConflictObserver) *Service {
	if onConflict == nil {
		onConflict = func(entity.Type) {}
	}
	return &Service{
		repo:       repo,
		log:        log.With("component", "practice_service"),
		limit:      DefaultListLimit,
		onConflict: onConflict,
	}
}

func scoped(ctx context.Context, typ entity.Type) (tenant.Scope, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return scope, err
	}
	if err := typ.Validate(); err != nil {
		return scope, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return scope, nil
}

// Create сохраняет новую запись. Повтор с тем же clientID возвращает уже созданную.
func (s *Service) Create(ctx context.Context, typ entity.Type, clientID string, data json.RawMessage) (*entity.RemoteRecord, bool, error) {
	scope, err := scoped(ctx, typ)
	if err != nil {
		return nil, false, err
	}
	data, err = prepare(typ, data)
	if err != nil {
		return nil, false, err
	}

	rec, created, err := s.repo.Insert(ctx, scope, typ, clientID, data)
	if err != nil {
		return nil, false, fmt.Errorf("create %s: %w", typ, err)
	}
	if !created {
		s.log.Info("duplicate create replayed", "type", typ, "client_id", clientID, "id", rec.ID)
	}
	return rec, created, nil
}

// Update заменяет данные записи при совпадении базовой версии.
func (s *Service) Update(ctx context.Context, typ entity.Type, id, baseVersion int64, data json.RawMessage) (*entity.RemoteRecord, error) {
	scope, err := scoped(ctx, typ)
	if err != nil {
		return nil, err
	}
	data, err = prepare(typ, data)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.Update(ctx, scope, typ, id, baseVersion, data)
	if errors.Is(err, ErrVersionConflict) {
		return nil, s.conflict(ctx, scope, typ, id, baseVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%d: %w", typ, id, err)
	}
	return rec, nil
}

// Delete помечает запись удалённой. Повторное удаление не ошибка.
func (s *Service) Delete(ctx context.Context, typ entity.Type, id, baseVersion int64) error {
	scope, err := scoped(ctx, typ)
	if err != nil {
		return err
	}

	err = s.repo.SoftDelete(ctx, scope, typ, id, baseVersion)
	if errors.Is(err, ErrVersionConflict) {
		return s.conflict(ctx, scope, typ, id, baseVersion)
	}
	if err != nil {
		return fmt.Errorf("delete %s/%d: %w", typ, id, err)
	}
	return nil
}

func (s *Service) conflict(ctx context.Context, scope tenant.Scope, typ entity.Type, id, baseVersion int64) error {
	current, err := s.repo.Get(ctx, scope, typ, id)
	if err != nil {
		return fmt.Errorf("load current %s/%d: %w", typ, id, err)
	}
	s.onConflict(typ)
	s.log.Info("stale write rejected",
		"type", typ, "id", id, "base_version", baseVersion, "version", current.Version, "by", scope.UserID)
	return &ConflictError{Current: current}
}

func (s *Service) Get(ctx context.Context, typ entity.Type, id int64) (*entity.RemoteRecord, error) {
	scope, err := scoped(ctx, typ)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, scope, typ, id)
}

// List возвращает изменения после since. Нулевое since — все записи, включая удалённые.
func (s *Service) List(ctx context.Context, typ entity.Type, since time.Time) ([]*entity.RemoteRecord, error) {
	scope, err := scoped(ctx, typ)
	if err != nil {
		return nil, err
	}
	recs, err := s.repo.ListSince(ctx, scope, typ, since, s.limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", typ, err)
	}
	return recs, nil
}
