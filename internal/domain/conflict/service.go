package conflict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/record"
	"vetsync/internal/domain/tenant"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// RecordStore — часть локального хранилища, нужная для применения решений.
type RecordStore interface {
	Find(ctx context.Context, typ entity.Type, id string) (*record.Record, error)
	Save(ctx context.Context, rec *record.Record) (*record.Record, error)
	SetBaseline(ctx context.Context, typ entity.Type, id string, version int64, updatedAt time.Time) error
	Adopt(ctx context.Context, remote *entity.RemoteRecord) error
	Purge(ctx context.Context, typ entity.Type, id string) error
}

type OperationQueue interface {
	Enqueue(ctx context.Context, typ entity.Type, entityID string, kind queue.Kind, payload json.RawMessage) (int64, error)
	Discard(ctx context.Context, typ entity.Type, entityID, reason string) (int, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo  Repository
	store RecordStore
	queue OperationQueue
	tx    Transactor
	log   *slog.Logger
	now   func() time.Time
}

func NewService(repo Repository, store RecordStore, q OperationQueue, tx Transactor, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		store: store,
		queue: q,
		tx:    tx,
		log:   log.With("component", "conflict_service"),
		now:   time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Detect фиксирует конфликт для pending-записи. Пока конфликт по сущности открыт, повторное
// обнаружение обновляет его версии и возвращает created=false.
func (s *Service) Detect(ctx context.Context, local *record.Record, remote *entity.RemoteRecord) (*Conflict, bool, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, false, err
	}
	if local == nil || local.Meta.SyncStatus == record.StatusSynced {
		return nil, false, ErrNotPending
	}

	now := s.now().UTC()
	open, err := s.repo.FindUnresolved(ctx, scope, local.Type, local.ID)
	switch {
	case err == nil:
		open.LocalVersion = local
		open.RemoteVersion = remote
		if err := s.repo.Refresh(ctx, scope, open); err != nil {
			return nil, false, fmt.Errorf("failed to refresh conflict: %w", err)
		}
		return open, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, fmt.Errorf("failed to look up conflict: %w", err)
	}

	c := &Conflict{
		ID:            uuid.NewString(),
		EntityType:    local.Type,
		EntityID:      local.ID,
		LocalVersion:  local,
		RemoteVersion: remote,
		DetectedAt:    now,
	}
	if err := s.repo.Insert(ctx, scope, c); err != nil {
		return nil, false, fmt.Errorf("failed to save conflict: %w", err)
	}

	s.log.Warn("conflict detected", "id", c.ID, "type", c.EntityType, "entity", c.EntityID)
	return c, true, nil
}

func (s *Service) HasUnresolved(ctx context.Context, typ entity.Type, entityID string) (bool, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return false, err
	}
	_, err = s.repo.FindUnresolved(ctx, scope, typ, entityID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Conflict, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, scope, id)
}

func (s *Service) GetUnresolvedConflicts(ctx context.Context) ([]*Conflict, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListUnresolved(ctx, scope)
}

// History возвращает все конфликты сущности, включая разрешённые.
func (s *Service) History(ctx context.Context, typ entity.Type, entityID string) ([]*Conflict, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByEntity(ctx, scope, typ, entityID)
}

// ResolveConflict применяет стратегию. Для local и merge изменение уходит через очередь операций.
func (s *Service) ResolveConflict(ctx context.Context, id string, strategy Strategy, merged json.RawMessage) (*Conflict, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if strategy == StrategyMerge && len(merged) == 0 {
		return nil, ErrMergePayloadRequired
	}

	var resolved *Conflict
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.Get(ctx, scope, id)
		if err != nil {
			return err
		}
		if c.Resolved() {
			return fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
		}

		if err := s.apply(ctx, c, strategy, merged); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.repo.Resolve(ctx, scope, id, strategy, now, scope.UserID); err != nil {
			return err
		}
		c.Resolution = &strategy
		c.ResolvedAt = &now
		c.ResolvedBy = scope.UserID
		resolved = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("conflict resolved", "id", id, "strategy", strategy, "type", resolved.EntityType, "entity", resolved.EntityID)
	return resolved, nil
}

// BulkResolveConflicts разрешает конфликты одной стратегией. Merge требует отдельного
// payload на каждый конфликт и поэтому не поддерживается.
func (s *Service) BulkResolveConflicts(ctx context.Context, ids []string, strategy Strategy) ([]*Conflict, error) {
	if strategy == StrategyMerge {
		return nil, fmt.Errorf("%w: bulk merge is not supported", ErrMergePayloadRequired)
	}

	var (
		out  []*Conflict
		errs []error
	)
	for _, id := range ids {
		c, err := s.ResolveConflict(ctx, id, strategy, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("conflict %s: %w", id, err))
			continue
		}
		out = append(out, c)
	}
	return out, errors.Join(errs...)
}

func (s *Service) apply(ctx context.Context, c *Conflict, strategy Strategy, merged json.RawMessage) error {
	remote := c.RemoteVersion
	reason := fmt.Sprintf("superseded by conflict %s resolution", c.ID)

	switch strategy {
	case StrategyManual:
		return nil

	case StrategyRemote:
		if _, err := s.queue.Discard(ctx, c.EntityType, c.EntityID, reason); err != nil {
			return err
		}
		if remote == nil || remote.Deleted {
			err := s.store.Purge(ctx, c.EntityType, c.EntityID)
			if errors.Is(err, record.ErrNotFound) {
				return nil
			}
			return err
		}
		return s.store.Adopt(ctx, remote)

	case StrategyLocal:
		local, err := s.currentLocal(ctx, c)
		if err != nil {
			return err
		}
		return s.repush(ctx, c, local, local.Data, reason)

	case StrategyMerge:
		local, err := s.currentLocal(ctx, c)
		if err != nil {
			return err
		}
		local.Data = merged
		local.Meta.Deleted = false
		if local, err = s.store.Save(ctx, local); err != nil {
			return err
		}
		return s.repush(ctx, c, local, merged, reason)
	}

	return fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
}

// repush ставит в очередь локальную версию поверх серверной.
func (s *Service) repush(ctx context.Context, c *Conflict, local *record.Record, data json.RawMessage, reason string) error {
	remote := c.RemoteVersion
	if _, err := s.queue.Discard(ctx, c.EntityType, c.EntityID, reason); err != nil {
		return err
	}

	kind := queue.KindUpdate
	switch {
	case remote == nil || remote.Deleted:
		// На сервере записи больше нет: создаём заново, id заменится после синхронизации.
		if local.Meta.Deleted {
			return s.store.Purge(ctx, c.EntityType, c.EntityID)
		}
		kind = queue.KindCreate
	case local.Meta.Deleted:
		kind = queue.KindDelete
		data = nil
	}

	if remote != nil && !remote.Deleted {
		if err := s.store.SetBaseline(ctx, c.EntityType, c.EntityID, remote.Version, remote.UpdatedAt); err != nil {
			return err
		}
	}

	_, err := s.queue.Enqueue(ctx, c.EntityType, c.EntityID, kind, data)
	return err
}

func (s *Service) currentLocal(ctx context.Context, c *Conflict) (*record.Record, error) {
	local, err := s.store.Find(ctx, c.EntityType, c.EntityID)
	if errors.Is(err, record.ErrNotFound) && c.LocalVersion != nil {
		return s.store.Save(ctx, c.LocalVersion.Clone())
	}
	return local, err
}
