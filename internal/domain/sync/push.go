package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vetsync/internal/domain/conflict"
	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/record"
)

type key struct {
	typ entity.Type
	id  string
}

type passState struct {
	res *Result
	// touched — сущности, операции которых обрабатывались в этом проходе.
	touched map[key]struct{}
	// tried — операции, уже получившие попытку в этом проходе.
	tried map[int64]struct{}
	// remapped — id, заменённые серверными в этом проходе, по типу сущности.
	remapped map[key]string
	// reachable — сервер ответил на пробу в начале прохода, хотя монитор ещё не
	// зафиксировал переход в онлайн.
	reachable bool
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeFailed
	outcomeConflict
	outcomeDeferred
)

// push отправляет очередь пакетами. Ошибка возвращается, только если проход надо прервать.
func (e *Engine) push(ctx context.Context, p *passState) error {
	ready, err := e.d.Queue.Ready(ctx)
	if err != nil {
		return err
	}
	p.res.Total = ready
	e.setState(StatePushing, p.res)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ops, err := e.d.Queue.DequeueBatch(ctx, e.cfg.BatchSize, queue.Excluding(p.tried))
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			return nil
		}

		for i, op := range ops {
			p.tried[op.ID] = struct{}{}

			out, err := e.apply(ctx, p, op)
			if err != nil {
				// Проход прерван: всё, что ещё не отправлено, возвращается в очередь.
				for _, rest := range ops[i:] {
					if rerr := e.d.Queue.Release(context.WithoutCancel(ctx), rest.ID); rerr != nil {
						e.log.Error("failed to release operation", "id", rest.ID, "error", rerr)
					}
				}
				return err
			}

			if out == outcomeDeferred {
				p.res.Deferred++
				continue
			}

			p.touched[key{op.EntityType, op.EntityID}] = struct{}{}
			p.res.Processed++
			if p.res.Processed > p.res.Total {
				p.res.Total = p.res.Processed
			}
			switch out {
			case outcomeDone:
				p.res.Successful++
			case outcomeFailed:
				p.res.Failed++
			case outcomeConflict:
				p.res.Conflicts++
			}
			e.setState(StatePushing, p.res)
		}
	}
}

// apply отправляет одну операцию. Ошибка означает прерывание прохода; операция при этом
// остаётся in-flight и возвращается в очередь вызывающим.
func (e *Engine) apply(ctx context.Context, p *passState, op *queue.Operation) (outcome, error) {
	if !p.reachable && !e.d.Monitor.Online() {
		return 0, ErrOffline
	}

	if op.Kind != queue.KindCreate {
		open, err := e.d.Conflicts.HasUnresolved(ctx, op.EntityType, op.EntityID)
		if err != nil {
			return 0, err
		}
		if open {
			// Изменение будет отправлено при разрешении конфликта.
			if err := e.d.Queue.Supersede(ctx, op.ID, "entity has an unresolved conflict"); err != nil {
				return 0, err
			}
			return outcomeConflict, nil
		}
	}

	if op.Kind != queue.KindDelete {
		payload, pending := e.resolveRefs(p, op.Payload)
		if len(pending) > 0 {
			e.log.Debug("operation deferred until referenced records sync", "id", op.ID, "refs", pending)
			if err := e.d.Queue.Release(ctx, op.ID); err != nil {
				return 0, err
			}
			return outcomeDeferred, nil
		}
		op.Payload = payload
	}

	local, err := e.d.Store.Find(ctx, op.EntityType, op.EntityID)
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		return 0, err
	}

	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OpTimeout)
	defer cancel()

	switch op.Kind {
	case queue.KindCreate:
		return e.applyCreate(ctx, opCtx, p, op)
	case queue.KindUpdate:
		return e.applyUpdate(ctx, opCtx, p, op, local)
	case queue.KindDelete:
		return e.applyDelete(ctx, opCtx, p, op, local)
	}
	return e.fail(ctx, p, op, fmt.Errorf("%w: %q", queue.ErrInvalidKind, op.Kind))
}

func (e *Engine) applyCreate(ctx, opCtx context.Context, p *passState, op *queue.Operation) (outcome, error) {
	remote, err := e.d.Remote.Create(opCtx, op.EntityType, op.EntityID, op.Payload)
	if err != nil {
		return e.failure(ctx, p, op, nil, err)
	}

	newID := remote.Key()
	err = e.d.Tx.InTx(ctx, func(ctx context.Context) error {
		if newID != op.EntityID {
			if err := e.d.Store.Remap(ctx, op.EntityType, op.EntityID, newID); err != nil {
				return err
			}
		}
		if err := e.d.Queue.MarkDone(ctx, op.ID); err != nil {
			return err
		}
		return e.settle(ctx, op.EntityType, newID, remote)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to confirm create of %s/%s: %w", op.EntityType, op.EntityID, err)
	}

	p.touched[key{op.EntityType, newID}] = struct{}{}
	if newID != op.EntityID {
		p.remapped[key{op.EntityType, op.EntityID}] = newID
	}
	op.EntityID = newID
	return outcomeDone, nil
}

func (e *Engine) applyUpdate(ctx, opCtx context.Context, p *passState, op *queue.Operation, local *record.Record) (outcome, error) {
	id, ok := entity.ServerID(op.EntityID)
	if !ok {
		return e.fail(ctx, p, op, fmt.Errorf("update of unsynced record %s", op.EntityID))
	}

	var base int64
	if local != nil {
		base = local.Meta.BaseVersion
	}
	remote, err := e.d.Remote.Update(opCtx, op.EntityType, id, base, op.Payload)
	if err != nil {
		return e.failure(ctx, p, op, local, err)
	}

	err = e.d.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := e.d.Queue.MarkDone(ctx, op.ID); err != nil {
			return err
		}
		return e.settle(ctx, op.EntityType, op.EntityID, remote)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to confirm update of %s/%s: %w", op.EntityType, op.EntityID, err)
	}
	return outcomeDone, nil
}

func (e *Engine) applyDelete(ctx, opCtx context.Context, p *passState, op *queue.Operation, local *record.Record) (outcome, error) {
	id, ok := entity.ServerID(op.EntityID)
	if ok {
		var base int64
		if local != nil {
			base = local.Meta.BaseVersion
		}
		err := e.d.Remote.Delete(opCtx, op.EntityType, id, base)
		if err != nil && !errors.Is(err, ErrRemoteNotFound) {
			return e.failure(ctx, p, op, local, err)
		}
	}

	err := e.d.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := e.d.Queue.MarkDone(ctx, op.ID); err != nil {
			return err
		}
		n, err := e.d.Queue.Outstanding(ctx, op.EntityType, op.EntityID)
		if err != nil {
			return err
		}
		if n > 0 || local == nil {
			return nil
		}
		return e.d.Store.Purge(ctx, op.EntityType, op.EntityID)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to confirm delete of %s/%s: %w", op.EntityType, op.EntityID, err)
	}
	return outcomeDone, nil
}

// resolveRefs подставляет серверные id, полученные в этом проходе, и возвращает оставшиеся
// ссылки на ещё не созданные на сервере записи.
func (e *Engine) resolveRefs(p *passState, payload json.RawMessage) (json.RawMessage, []string) {
	for old, newID := range p.remapped {
		if out, changed, err := entity.RemapRefs(payload, old.typ, old.id, newID); err == nil && changed {
			payload = out
		}
	}
	return payload, entity.TempRefs(payload)
}

// settle переводит запись в synced, только когда по ней не осталось операций и открытых
// конфликтов; иначе лишь сдвигает базовую версию.
func (e *Engine) settle(ctx context.Context, typ entity.Type, id string, remote *entity.RemoteRecord) error {
	n, err := e.d.Queue.Outstanding(ctx, typ, id)
	if err != nil {
		return err
	}
	open, err := e.d.Conflicts.HasUnresolved(ctx, typ, id)
	if err != nil {
		return err
	}
	if n == 0 && !open {
		err = e.d.Store.MarkSynced(ctx, typ, id, remote)
	} else {
		err = e.d.Store.SetBaseline(ctx, typ, id, remote.Version, remote.UpdatedAt)
	}
	if errors.Is(err, record.ErrNotFound) {
		return nil
	}
	return err
}

// failure разбирает ошибку удалённого вызова.
func (e *Engine) failure(ctx context.Context, p *passState, op *queue.Operation, local *record.Record, cause error) (outcome, error) {
	var (
		conflictErr *ConflictError
		rejected    *RejectedError
	)
	switch {
	case errors.As(cause, &conflictErr) && conflictErr.Remote != nil:
		return e.conflict(ctx, op, local, conflictErr.Remote)

	case errors.As(cause, &rejected) && rejected.Unauthorized():
		// Сессия не принята: остальные операции получат тот же ответ, попытки не тратятся.
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, cause)

	case errors.As(cause, &rejected):
		return e.reject(ctx, p, op, cause)

	case errors.Is(cause, ErrRemoteNotFound) && op.Kind == queue.KindUpdate:
		// Запись удалена на сервере, пока локально шло редактирование.
		id, _ := entity.ServerID(op.EntityID)
		return e.conflict(ctx, op, local, &entity.RemoteRecord{
			ID:        id,
			Type:      op.EntityType,
			Deleted:   true,
			UpdatedAt: e.now().UTC(),
		})

	case ctx.Err() != nil:
		return 0, ctx.Err()

	case errors.Is(cause, ErrTransport) && !e.d.Monitor.Check(ctx):
		p.reachable = false
		return 0, fmt.Errorf("%w: %v", ErrOffline, cause)
	}

	return e.fail(ctx, p, op, cause)
}

func (e *Engine) fail(ctx context.Context, p *passState, op *queue.Operation, cause error) (outcome, error) {
	failed, err := e.d.Queue.MarkFailed(ctx, op.ID, cause)
	if err != nil {
		return 0, err
	}
	return e.recordFailure(ctx, p, op, failed, cause)
}

// reject закрывает операцию, данные которой сервер отклонил: повтор без правки не поможет.
func (e *Engine) reject(ctx context.Context, p *passState, op *queue.Operation, cause error) (outcome, error) {
	failed, err := e.d.Queue.Reject(ctx, op.ID, cause)
	if err != nil {
		return 0, err
	}
	return e.recordFailure(ctx, p, op, failed, cause)
}

func (e *Engine) recordFailure(ctx context.Context, p *passState, op, failed *queue.Operation, cause error) (outcome, error) {
	terminal := e.d.Queue.Exhausted(failed)
	p.res.Errors = append(p.res.Errors, OpError{
		OperationID: op.ID,
		EntityType:  op.EntityType.String(),
		EntityID:    op.EntityID,
		Operation:   string(op.Kind),
		Error:       cause.Error(),
		Terminal:    terminal,
	})

	if terminal {
		e.log.Warn("operation will not be retried automatically", "id", op.ID, "type", op.EntityType, "entity", op.EntityID, "error", cause)
		err := e.d.Store.MarkError(ctx, op.EntityType, op.EntityID, cause.Error())
		if err != nil && !errors.Is(err, record.ErrNotFound) {
			return 0, err
		}
	} else {
		e.log.Debug("operation failed", "id", op.ID, "retry", failed.RetryCount, "error", cause)
	}
	return outcomeFailed, nil
}

func (e *Engine) conflict(ctx context.Context, op *queue.Operation, local *record.Record, remote *entity.RemoteRecord) (outcome, error) {
	err := e.d.Tx.InTx(ctx, func(ctx context.Context) error {
		if local != nil {
			_, _, err := e.d.Conflicts.Detect(ctx, local, remote)
			if err != nil && !errors.Is(err, conflict.ErrNotPending) {
				return err
			}
		}
		return e.d.Queue.Supersede(ctx, op.ID, "remote version changed, conflict recorded")
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record conflict for %s/%s: %w", op.EntityType, op.EntityID, err)
	}
	return outcomeConflict, nil
}
