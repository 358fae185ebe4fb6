package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/record"
	"vetsync/internal/domain/tenant"
)

// pullAndReconcile загружает серверное состояние затронутых и pending-записей и сверяет его
// с локальными базовыми версиями.
func (e *Engine) pullAndReconcile(ctx context.Context, p *passState, full bool, started time.Time) error {
	e.setState(StatePulling, p.res)

	pending := make(map[key]*record.Record)
	for _, typ := range entity.AllTypes() {
		recs, err := e.d.Store.List(ctx, typ, record.Filter{Status: record.StatusPending, IncludeDeleted: true})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			pending[key{typ, rec.ID}] = rec
		}
	}

	pulled := make(map[key]*entity.RemoteRecord)
	targets := make(map[key]struct{}, len(p.touched)+len(pending))
	for k := range p.touched {
		targets[k] = struct{}{}
	}
	for k := range pending {
		targets[k] = struct{}{}
	}

	for k := range targets {
		id, ok := entity.ServerID(k.id)
		if !ok {
			continue
		}
		remote, err := e.fetch(ctx, k.typ, id)
		if err != nil {
			return err
		}
		if remote != nil {
			pulled[k] = remote
			p.res.Pulled++
		}
	}

	if full {
		if err := e.refreshAll(ctx, p, pending, pulled); err != nil {
			return err
		}
		e.markRefreshed(started)
	}

	e.setState(StateReconciling, p.res)
	return e.reconcile(ctx, p, pending, pulled)
}

// fetch возвращает nil, nil, если запись недоступна, но сервер на связи.
func (e *Engine) fetch(ctx context.Context, typ entity.Type, id int64) (*entity.RemoteRecord, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OpTimeout)
	defer cancel()

	remote, err := e.d.Remote.Get(opCtx, typ, id)
	switch {
	case err == nil:
		return remote, nil
	case errors.Is(err, ErrRemoteNotFound):
		return nil, nil
	}
	if abort := e.pullError(ctx, err); abort != nil {
		return nil, abort
	}

	e.log.Warn("failed to pull record", "type", typ, "id", id, "error", err)
	return nil, nil
}

// refreshAll забирает изменения после курсора каждого типа и принимает их для записей без
// локальных правок. Сервер отдаёт изменения страницами по возрастанию updated_at, поэтому
// курсор сдвигается на последнюю полученную запись, пока страницы не кончатся. Запрос
// захватывает записи с updated_at, равным курсору: на границе страницы их может быть несколько.
func (e *Engine) refreshAll(ctx context.Context, p *passState, pending map[key]*record.Record, pulled map[key]*entity.RemoteRecord) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	for _, typ := range entity.AllTypes() {
		ck := cursorKey{tenant: scope.TenantID, practice: scope.PracticeID, typ: typ}
		since := e.cursor(ck)
		for {
			opCtx, cancel := context.WithTimeout(ctx, e.cfg.OpTimeout)
			remotes, err := e.d.Remote.List(opCtx, typ, overlap(since))
			cancel()
			if err != nil {
				if abort := e.pullError(ctx, err); abort != nil {
					return abort
				}
				e.log.Warn("failed to refresh entity type", "type", typ, "error", err)
				break
			}

			next := since
			for _, remote := range remotes {
				if err := e.absorb(ctx, p, typ, remote, pending, pulled); err != nil {
					return err
				}
				if remote.UpdatedAt.After(next) {
					next = remote.UpdatedAt
				}
			}
			if !next.After(since) {
				break
			}
			e.advance(ck, next)
			since = next
		}
	}
	return nil
}

func overlap(since time.Time) time.Time {
	if since.IsZero() {
		return since
	}
	return since.Add(-time.Microsecond)
}

// absorb применяет одну серверную запись из полной загрузки.
func (e *Engine) absorb(ctx context.Context, p *passState, typ entity.Type, remote *entity.RemoteRecord, pending map[key]*record.Record, pulled map[key]*entity.RemoteRecord) error {
	k := key{typ, remote.Key()}
	if _, ok := pending[k]; ok {
		pulled[k] = remote
		return nil
	}

	if entity.IsTempID(remote.ClientID) {
		confirmed, err := e.confirmCreated(ctx, typ, remote)
		if err != nil {
			return err
		}
		if confirmed {
			p.res.Pulled++
			return nil
		}
	}

	local, err := e.d.Store.Find(ctx, typ, k.id)
	if err != nil && !errors.Is(err, record.ErrNotFound) {
		return err
	}
	switch {
	case local != nil && local.Meta.SyncStatus == record.StatusError:
		return nil
	case local != nil && !local.Meta.Deleted && local.Meta.BaseVersion >= remote.Version:
		return nil
	case local == nil && remote.Deleted:
		return nil
	}
	if err := e.d.Store.Adopt(ctx, remote); err != nil {
		return err
	}
	p.res.Pulled++
	return nil
}

// confirmCreated переносит временную запись на серверный id, если сервер уже создал её,
// а ответ на create потерялся. Возвращает false, если такой временной записи нет.
func (e *Engine) confirmCreated(ctx context.Context, typ entity.Type, remote *entity.RemoteRecord) (bool, error) {
	if _, err := e.d.Store.Find(ctx, typ, remote.ClientID); err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	newID := remote.Key()
	err := e.d.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := e.d.Store.Remap(ctx, typ, remote.ClientID, newID); err != nil {
			return err
		}
		if _, err := e.d.Queue.ConfirmCreate(ctx, typ, newID); err != nil {
			return err
		}
		return e.settle(ctx, typ, newID, remote)
	})
	if err != nil {
		return false, fmt.Errorf("failed to confirm create of %s/%s: %w", typ, remote.ClientID, err)
	}
	e.log.Info("lost create response recovered by refresh", "type", typ, "temp_id", remote.ClientID, "id", newID)
	return true, nil
}

// pullError возвращает ошибку, прерывающую проход, или nil, если запрос можно пропустить.
func (e *Engine) pullError(ctx context.Context, err error) error {
	var rejected *RejectedError
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.As(err, &rejected) && rejected.Unauthorized():
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case errors.Is(err, ErrTransport) && !e.d.Monitor.Check(ctx):
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	return nil
}

func (e *Engine) reconcile(ctx context.Context, p *passState, pending map[key]*record.Record, pulled map[key]*entity.RemoteRecord) error {
	for k, local := range pending {
		if _, pushed := p.touched[k]; pushed || local.IsTemp() {
			continue
		}
		remote, ok := pulled[k]
		if !ok {
			continue
		}

		if remote.UpdatedAt.After(local.Meta.BaseUpdatedAt) {
			_, created, err := e.d.Conflicts.Detect(ctx, local, remote)
			if err != nil {
				return err
			}
			if created {
				p.res.Conflicts++
				e.setState(StateReconciling, p.res)
			}
			continue
		}

		n, err := e.d.Queue.Outstanding(ctx, k.typ, k.id)
		if err != nil {
			return err
		}
		open, err := e.d.Conflicts.HasUnresolved(ctx, k.typ, k.id)
		if err != nil {
			return err
		}
		if n == 0 && !open {
			if err := e.d.Store.MarkSynced(ctx, k.typ, k.id, nil); err != nil && !errors.Is(err, record.ErrNotFound) {
				return err
			}
		}
	}

	// Синхронные записи, изменённые на сервере, например вычисляемыми полями.
	for k, remote := range pulled {
		if _, ok := pending[k]; ok {
			continue
		}
		local, err := e.d.Store.Find(ctx, k.typ, k.id)
		if err != nil {
			if errors.Is(err, record.ErrNotFound) {
				continue
			}
			return err
		}
		if local.Meta.SyncStatus == record.StatusSynced && remote.Version > local.Meta.BaseVersion {
			if err := e.d.Store.Adopt(ctx, remote); err != nil {
				return err
			}
		}
	}
	return nil
}
