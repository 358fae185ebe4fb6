package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
	"vetsync/internal/utils/txhook"

	"golang.org/x/exp/slog"
)

// Queue — устойчивая очередь изменений. Операции одной сущности выдаются строго по порядку.
type Queue struct {
	repo Repository
	cfg  Config
	log  *slog.Logger
	now  func() time.Time

	mu        sync.RWMutex
	listeners []func(Operation)
}

func NewQueue(repo Repository, cfg Config, log *slog.Logger) *Queue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Queue{
		repo: repo,
		cfg:  cfg,
		log:  log.With("component", "operation_queue"),
		now:  time.Now,
	}
}

func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

func (q *Queue) Config() Config {
	return q.cfg
}

// OnEnqueue регистрирует слушателя новых операций. Вызывается после фиксации записи.
func (q *Queue) OnEnqueue(fn func(Operation)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

func (q *Queue) Enqueue(ctx context.Context, typ entity.Type, entityID string, kind Kind, payload json.RawMessage) (int64, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if err := typ.Validate(); err != nil {
		return 0, err
	}

	now := q.now().UTC()
	op := &Operation{
		EntityType: typ,
		EntityID:   entityID,
		Kind:       kind,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		Status:     StatusPending,
	}

	id, err := q.repo.Insert(ctx, scope, op)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue operation: %w", err)
	}
	op.ID = id

	q.log.Debug("operation enqueued", "id", id, "type", typ, "entity", entityID, "kind", kind)

	txhook.AfterCommit(ctx, func() {
		q.mu.RLock()
		listeners := append([]func(Operation){}, q.listeners...)
		q.mu.RUnlock()
		for _, fn := range listeners {
			fn(*op)
		}
	})

	return id, nil
}

// DequeueOption настраивает выборку пакета.
type DequeueOption func(*dequeueOptions)

type dequeueOptions struct {
	exclude map[int64]struct{}
}

// Excluding пропускает операции, уже обработанные в текущем проходе.
func Excluding(ids map[int64]struct{}) DequeueOption {
	return func(o *dequeueOptions) {
		o.exclude = ids
	}
}

// DequeueBatch выдаёт до max готовых операций от старых к новым и переводит их в in-flight.
// Для каждой сущности выдаётся только головная незавершённая операция, поэтому следующая
// операция той же сущности не попадёт в работу, пока предыдущая не станет done.
func (q *Queue) DequeueBatch(ctx context.Context, max int, opts ...DequeueOption) ([]*Operation, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		return nil, nil
	}

	var o dequeueOptions
	for _, opt := range opts {
		opt(&o)
	}

	ops, err := q.repo.Outstanding(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load outstanding operations: %w", err)
	}

	now := q.now().UTC()
	heads := make(map[entityKey]struct{}, len(ops))
	batch := make([]*Operation, 0, max)

	for _, op := range ops {
		k := op.key()
		if _, seen := heads[k]; seen {
			continue
		}
		heads[k] = struct{}{}

		if _, skip := o.exclude[op.ID]; skip || !q.ready(op, now) {
			continue
		}

		op.Status = StatusInFlight
		op.UpdatedAt = now
		if err := q.repo.Save(ctx, scope, op); err != nil {
			return nil, fmt.Errorf("failed to mark operation %d in-flight: %w", op.ID, err)
		}
		batch = append(batch, op)
		if len(batch) == max {
			break
		}
	}

	return batch, nil
}

func (q *Queue) ready(op *Operation, now time.Time) bool {
	switch op.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return op.RetryCount < q.cfg.MaxRetries && !op.NextAttemptAt.After(now)
	default:
		return false
	}
}

// Exhausted сообщает, исчерпала ли операция лимит автоматических повторов.
func (q *Queue) Exhausted(op *Operation) bool {
	return op.Status == StatusFailed && op.RetryCount >= q.cfg.MaxRetries
}

func (q *Queue) MarkDone(ctx context.Context, id int64) error {
	_, err := q.transition(ctx, id, func(op *Operation, now time.Time) {
		op.Status = StatusDone
		op.LastError = ""
	})
	return err
}

// MarkFailed увеличивает счётчик попыток и откладывает следующую по политике повторов.
func (q *Queue) MarkFailed(ctx context.Context, id int64, cause error) (*Operation, error) {
	return q.transition(ctx, id, func(op *Operation, now time.Time) {
		op.Status = StatusFailed
		op.RetryCount++
		if cause != nil {
			op.LastError = cause.Error()
		}
		op.NextAttemptAt = now.Add(q.cfg.Backoff(op.RetryCount))
	})
}

// Reject переводит операцию в failed без автоматических повторов: сервер отклонил данные,
// и повтор того же запроса ничего не изменит. Доступен ручной Retry.
func (q *Queue) Reject(ctx context.Context, id int64, cause error) (*Operation, error) {
	return q.transition(ctx, id, func(op *Operation, now time.Time) {
		op.Status = StatusFailed
		op.RetryCount = max(op.RetryCount+1, q.cfg.MaxRetries)
		if cause != nil {
			op.LastError = cause.Error()
		}
		op.NextAttemptAt = time.Time{}
	})
}

// ConfirmCreate закрывает незавершённую операцию create сущности, если сервер уже создал
// запись, а ответ до клиента не дошёл. Операция в работе не трогается.
func (q *Queue) ConfirmCreate(ctx context.Context, typ entity.Type, entityID string) (bool, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return false, err
	}
	ops, err := q.repo.Outstanding(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("failed to load outstanding operations: %w", err)
	}

	for _, op := range ops {
		if op.EntityType != typ || op.EntityID != entityID || op.Kind != KindCreate || op.Status == StatusInFlight {
			continue
		}
		op.Status = StatusDone
		op.LastError = "confirmed by refresh"
		op.UpdatedAt = q.now().UTC()
		if err := q.repo.Save(ctx, scope, op); err != nil {
			return false, fmt.Errorf("failed to confirm operation %d: %w", op.ID, err)
		}
		q.log.Info("create confirmed by refresh", "id", op.ID, "type", typ, "entity", entityID)
		return true, nil
	}
	return false, nil
}

// Supersede закрывает операцию без отправки, например когда её заменило разрешение конфликта.
func (q *Queue) Supersede(ctx context.Context, id int64, reason string) error {
	_, err := q.transition(ctx, id, func(op *Operation, now time.Time) {
		op.Status = StatusDone
		op.LastError = reason
	})
	return err
}

// Release возвращает операцию в pending без учёта попытки.
func (q *Queue) Release(ctx context.Context, id int64) error {
	_, err := q.transition(ctx, id, func(op *Operation, now time.Time) {
		if op.Status == StatusInFlight {
			op.Status = StatusPending
			if op.RetryCount > 0 {
				op.Status = StatusFailed
			}
		}
	})
	return err
}

// Retry сбрасывает счётчик попыток у операции в состоянии failed.
func (q *Queue) Retry(ctx context.Context, id int64) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	op, err := q.repo.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if op.Status != StatusFailed {
		return fmt.Errorf("%w: operation %d is %s", ErrNotRetryable, id, op.Status)
	}

	op.Status = StatusPending
	op.RetryCount = 0
	op.NextAttemptAt = time.Time{}
	op.UpdatedAt = q.now().UTC()
	if err := q.repo.Save(ctx, scope, op); err != nil {
		return fmt.Errorf("failed to reset operation %d: %w", id, err)
	}

	q.log.Info("operation scheduled for manual retry", "id", id)
	return nil
}

// Discard закрывает все незавершённые операции сущности.
func (q *Queue) Discard(ctx context.Context, typ entity.Type, entityID, reason string) (int, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, err
	}
	n, err := q.repo.CloseEntity(ctx, scope, typ, entityID, reason, q.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to discard operations for %s/%s: %w", typ, entityID, err)
	}
	return n, nil
}

// Outstanding — число незавершённых операций сущности.
func (q *Queue) Outstanding(ctx context.Context, typ entity.Type, entityID string) (int, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, err
	}
	return q.repo.CountOutstanding(ctx, scope, typ, entityID)
}

// Ready — число операций, которые проход может попытаться отправить.
func (q *Queue) Ready(ctx context.Context) (int, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, err
	}
	ops, err := q.repo.Outstanding(ctx, scope)
	if err != nil {
		return 0, err
	}

	now := q.now().UTC()
	n := 0
	for _, op := range ops {
		if q.ready(op, now) {
			n++
		}
	}
	return n, nil
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return Stats{}, err
	}
	counts, err := q.repo.CountByStatus(ctx, scope)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count operations: %w", err)
	}
	return Stats{
		Pending:  counts[StatusPending],
		InFlight: counts[StatusInFlight],
		Failed:   counts[StatusFailed],
		Done:     counts[StatusDone],
	}, nil
}

// Purge удаляет завершённые операции старше olderThan.
func (q *Queue) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, err
	}
	n, err := q.repo.DeleteDone(ctx, scope, q.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to purge operations: %w", err)
	}
	if n > 0 {
		q.log.Debug("done operations purged", "count", n)
	}
	return n, nil
}

// RecoverInFlight возвращает в очередь операции, оставшиеся in-flight после сбоя.
func (q *Queue) RecoverInFlight(ctx context.Context) (int64, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, err
	}
	n, err := q.repo.ResetInFlight(ctx, scope, q.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to recover in-flight operations: %w", err)
	}
	if n > 0 {
		q.log.Warn("in-flight operations returned to queue", "count", n)
	}
	return n, nil
}

func (q *Queue) transition(ctx context.Context, id int64, apply func(op *Operation, now time.Time)) (*Operation, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	op, err := q.repo.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	now := q.now().UTC()
	apply(op, now)
	op.UpdatedAt = now

	if err := q.repo.Save(ctx, scope, op); err != nil {
		return nil, fmt.Errorf("failed to update operation %d: %w", id, err)
	}
	return op, nil
}
