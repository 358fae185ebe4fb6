package facade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/record"

	"golang.org/x/exp/slog"
)

var ErrNotFound = errors.New("entity not found")

type Store interface {
	Save(ctx context.Context, rec *record.Record) (*record.Record, error)
	Update(ctx context.Context, typ entity.Type, id string, partial json.RawMessage) (*record.Record, error)
	Remove(ctx context.Context, typ entity.Type, id string) error
	GetByID(ctx context.Context, typ entity.Type, id string) (*record.Record, error)
	List(ctx context.Context, typ entity.Type, filter record.Filter) ([]*record.Record, error)
	Counts(ctx context.Context, typ entity.Type) (record.Counts, error)
}

type Queue interface {
	Enqueue(ctx context.Context, typ entity.Type, entityID string, kind queue.Kind, payload json.RawMessage) (int64, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Monitor interface {
	Online() bool
}

// Deps — общие зависимости фасадов.
type Deps struct {
	Store    Store
	Queue    Queue
	Tx       Transactor
	Monitor  Monitor
	Notifier Notifier
	Log      *slog.Logger
}

// Entity — типизированное представление локальной записи.
type Entity[T any] struct {
	ID   string      `json:"id"`
	Data T           `json:"data"`
	Meta record.Meta `json:"metadata"`
}

// Facade — операции над одним типом сущности. Запись в хранилище и постановка операции
// в очередь выполняются в одной транзакции.
type Facade[T any, P interface {
	*T
	entity.Payload
}] struct {
	d       Deps
	typ     entity.Type
	log     *slog.Logger
	hydrate func(ctx context.Context, v *T)
}

func newFacade[T any, P interface {
	*T
	entity.Payload
}](d Deps, hydrate func(ctx context.Context, v *T)) *Facade[T, P] {
	if d.Notifier == nil {
		d.Notifier = discard{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	var zero T
	typ := P(&zero).EntityType()
	if hydrate == nil {
		hydrate = func(context.Context, *T) {}
	}
	return &Facade[T, P]{
		d:       d,
		typ:     typ,
		log:     d.Log.With("component", "facade", "type", typ),
		hydrate: hydrate,
	}
}

func (f *Facade[T, P]) Type() entity.Type {
	return f.typ
}

func (f *Facade[T, P]) Create(ctx context.Context, v T) (*Entity[T], error) {
	data, err := f.prepare(ctx, &v)
	if err != nil {
		return nil, err
	}

	var saved *record.Record
	err = f.d.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		saved, err = f.d.Store.Save(ctx, &record.Record{Type: f.typ, Data: data})
		if err != nil {
			return err
		}
		_, err = f.d.Queue.Enqueue(ctx, f.typ, saved.ID, queue.KindCreate, data)
		return err
	})
	if err != nil {
		return nil, f.storeError("создания", err)
	}

	f.saved(saved.ID)
	return &Entity[T]{ID: saved.ID, Data: v, Meta: saved.Meta}, nil
}

// Update заменяет данные сущности целиком.
func (f *Facade[T, P]) Update(ctx context.Context, id string, v T) (*Entity[T], error) {
	data, err := f.prepare(ctx, &v)
	if err != nil {
		return nil, err
	}

	var saved *record.Record
	err = f.d.Tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := f.d.Store.GetByID(ctx, f.typ, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, f.typ, id)
		}
		existing.Data = data
		if saved, err = f.d.Store.Save(ctx, existing); err != nil {
			return err
		}
		_, err = f.d.Queue.Enqueue(ctx, f.typ, id, queue.KindUpdate, data)
		return err
	})
	if err != nil {
		return nil, f.storeError("обновления", err)
	}

	f.saved(id)
	return &Entity[T]{ID: id, Data: v, Meta: saved.Meta}, nil
}

// Patch накладывает изменённые поля на сохранённые данные.
func (f *Facade[T, P]) Patch(ctx context.Context, id string, partial json.RawMessage) (*Entity[T], error) {
	var (
		out   T
		saved *record.Record
	)
	err := f.d.Tx.InTx(ctx, func(ctx context.Context) error {
		rec, err := f.d.Store.Update(ctx, f.typ, id, partial)
		if errors.Is(err, record.ErrNotFound) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, f.typ, id)
		}
		if err != nil {
			return err
		}
		if out, err = entity.Decode[T](rec.Data); err != nil {
			return err
		}
		if rec.Data, err = f.prepare(ctx, &out); err != nil {
			return err
		}
		if saved, err = f.d.Store.Save(ctx, rec); err != nil {
			return err
		}
		_, err = f.d.Queue.Enqueue(ctx, f.typ, id, queue.KindUpdate, rec.Data)
		return err
	})
	if err != nil {
		if errors.Is(err, entity.ErrInvalidPayload) {
			return nil, err
		}
		return nil, f.storeError("обновления", err)
	}

	f.saved(id)
	return &Entity[T]{ID: id, Data: out, Meta: saved.Meta}, nil
}

func (f *Facade[T, P]) Delete(ctx context.Context, id string) error {
	err := f.d.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := f.d.Store.Remove(ctx, f.typ, id); err != nil {
			if errors.Is(err, record.ErrNotFound) {
				return fmt.Errorf("%w: %s/%s", ErrNotFound, f.typ, id)
			}
			return err
		}
		_, err := f.d.Queue.Enqueue(ctx, f.typ, id, queue.KindDelete, nil)
		return err
	})
	if err != nil {
		return f.storeError("удаления", err)
	}

	f.saved(id)
	return nil
}

// Get возвращает ErrNotFound для отсутствующей или удалённой сущности.
func (f *Facade[T, P]) Get(ctx context.Context, id string) (*Entity[T], error) {
	rec, err := f.d.Store.GetByID(ctx, f.typ, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, f.typ, id)
	}
	return decode[T](rec)
}

func (f *Facade[T, P]) List(ctx context.Context) ([]*Entity[T], error) {
	recs, err := f.d.Store.List(ctx, f.typ, record.Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]*Entity[T], 0, len(recs))
	for _, rec := range recs {
		e, err := decode[T](rec)
		if err != nil {
			f.log.Warn("skipping undecodable record", "id", rec.ID, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *Facade[T, P]) Counts(ctx context.Context) (record.Counts, error) {
	return f.d.Store.Counts(ctx, f.typ)
}

func (f *Facade[T, P]) prepare(ctx context.Context, v *T) (json.RawMessage, error) {
	if err := P(v).Normalize(); err != nil {
		return nil, err
	}
	f.hydrate(ctx, v)
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidPayload, err)
	}
	return data, nil
}

func (f *Facade[T, P]) saved(id string) {
	if f.d.Monitor != nil && f.d.Monitor.Online() {
		f.d.Notifier.Notify(Notification{
			Level:   LevelInfo,
			Title:   f.typ.DisplayName(),
			Message: fmt.Sprintf("Запись %s сохранена, идёт синхронизация", id),
		})
		return
	}
	f.d.Notifier.Notify(Notification{
		Level:   LevelWarning,
		Title:   f.typ.DisplayName(),
		Message: fmt.Sprintf("Запись %s сохранена офлайн и будет отправлена при подключении", id),
	})
}

func (f *Facade[T, P]) storeError(action string, err error) error {
	if errors.Is(err, ErrNotFound) {
		f.log.Warn("record not found", "error", err)
	} else {
		f.log.Error("failed to write record", "error", err)
	}
	f.d.Notifier.Notify(Notification{
		Level:   LevelError,
		Title:   f.typ.DisplayName(),
		Message: fmt.Sprintf("Ошибка %s записи: %v", action, err),
	})
	return fmt.Errorf("ошибка %s записи: %w", action, err)
}

func decode[T any](rec *record.Record) (*Entity[T], error) {
	v, err := entity.Decode[T](rec.Data)
	if err != nil {
		return nil, err
	}
	return &Entity[T]{ID: rec.ID, Data: v, Meta: rec.Meta}, nil
}
