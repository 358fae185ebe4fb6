package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/record"
	"vetsync/internal/domain/tenant"
)

type RecordRepository struct {
	s   *Storage
	log *slog.Logger
}

func NewRecordRepository(s *Storage, log *slog.Logger) *RecordRepository {
	return &RecordRepository{
		s:   s,
		log: log.With("component", "record_repository"),
	}
}

const recordColumns = `id, entity_type, data, user_id, sync_status, deleted, last_modified,
	base_version, base_updated_at, last_error`

func (r *RecordRepository) Get(ctx context.Context, scope tenant.Scope, typ entity.Type, id string) (*record.Record, error) {
	const query = `SELECT ` + recordColumns + `
		FROM records
		WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND id = ?`

	row := r.s.conn(ctx).QueryRowContext(ctx, query, scope.TenantID, scope.PracticeID, typ, id)
	rec, err := scanRecord(row, scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", record.ErrNotFound, typ, id)
	}
	if err != nil {
		r.log.Error("failed to get record", "type", typ, "id", id, "error", err)
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) Upsert(ctx context.Context, scope tenant.Scope, rec *record.Record) error {
	const query = `
		INSERT INTO records (tenant_id, practice_id, entity_type, id, data, user_id, sync_status,
		                     deleted, last_modified, base_version, base_updated_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, practice_id, entity_type, id) DO UPDATE SET
			data = excluded.data,
			user_id = excluded.user_id,
			sync_status = excluded.sync_status,
			deleted = excluded.deleted,
			last_modified = excluded.last_modified,
			base_version = excluded.base_version,
			base_updated_at = excluded.base_updated_at,
			last_error = excluded.last_error`

	data := rec.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	_, err := r.s.conn(ctx).ExecContext(ctx, query,
		scope.TenantID, scope.PracticeID, rec.Type, rec.ID, string(data), rec.Meta.UserID,
		rec.Meta.SyncStatus, boolToInt(rec.Meta.Deleted), toUnix(rec.Meta.LastModified),
		rec.Meta.BaseVersion, toUnix(rec.Meta.BaseUpdatedAt), rec.Meta.LastError,
	)
	if err != nil {
		r.log.Error("failed to upsert record", "type", rec.Type, "id", rec.ID, "error", err)
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (r *RecordRepository) List(ctx context.Context, scope tenant.Scope, typ entity.Type, filter record.Filter) ([]*record.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM records
		WHERE tenant_id = ? AND practice_id = ? AND entity_type = ?`
	args := []any{scope.TenantID, scope.PracticeID, typ}

	if filter.Status != "" {
		query += ` AND sync_status = ?`
		args = append(args, filter.Status)
	}
	if !filter.IncludeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY last_modified DESC, id`

	rows, err := r.s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list records", "type", typ, "error", err)
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		rec, err := scanRecord(rows, scope)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordRepository) Delete(ctx context.Context, scope tenant.Scope, typ entity.Type, id string) error {
	const query = `DELETE FROM records WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND id = ?`

	res, err := r.s.conn(ctx).ExecContext(ctx, query, scope.TenantID, scope.PracticeID, typ, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", record.ErrNotFound, typ, id)
	}
	return nil
}

func (r *RecordRepository) Counts(ctx context.Context, scope tenant.Scope, typ entity.Type) (record.Counts, error) {
	const query = `
		SELECT sync_status, COUNT(*)
		FROM records
		WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND deleted = 0
		GROUP BY sync_status`

	rows, err := r.s.conn(ctx).QueryContext(ctx, query, scope.TenantID, scope.PracticeID, typ)
	if err != nil {
		return record.Counts{}, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	var c record.Counts
	for rows.Next() {
		var (
			status record.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return record.Counts{}, err
		}
		switch status {
		case record.StatusPending:
			c.Pending = n
		case record.StatusSynced:
			c.Synced = n
		case record.StatusError:
			c.Error = n
		}
	}
	return c, rows.Err()
}

// RemapID переносит запись на серверный id и переписывает ссылки на старый id в данных
// записей, в незавершённых операциях и в открытых конфликтах. Уже загруженная копия
// серверной записи с тем же id заменяется переносимой.
func (r *RecordRepository) RemapID(ctx context.Context, scope tenant.Scope, typ entity.Type, oldID, newID string) error {
	return r.s.InTx(ctx, func(ctx context.Context) error {
		db := r.s.conn(ctx)

		res, err := db.ExecContext(ctx,
			`DELETE FROM records WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND id = ?`,
			scope.TenantID, scope.PracticeID, typ, newID)
		if err != nil {
			return fmt.Errorf("drop adopted copy: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			r.log.Warn("replaced adopted copy of remapped record", "type", typ, "from", oldID, "to", newID)
		}

		_, err = db.ExecContext(ctx,
			`UPDATE records SET id = ? WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND id = ?`,
			newID, scope.TenantID, scope.PracticeID, typ, oldID)
		if err != nil {
			return fmt.Errorf("remap record id: %w", err)
		}

		_, err = db.ExecContext(ctx,
			`UPDATE queue_operations SET entity_id = ?
			 WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND entity_id = ? AND status <> 'done'`,
			newID, scope.TenantID, scope.PracticeID, typ, oldID)
		if err != nil {
			return fmt.Errorf("remap queued operations: %w", err)
		}

		_, err = db.ExecContext(ctx,
			`UPDATE conflicts SET entity_id = ?
			 WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND entity_id = ? AND resolution IS NULL`,
			newID, scope.TenantID, scope.PracticeID, typ, oldID)
		if err != nil {
			return fmt.Errorf("remap conflicts: %w", err)
		}

		if err := r.remapRecordRefs(ctx, db, scope, typ, oldID, newID); err != nil {
			return err
		}
		return r.remapPayloadRefs(ctx, db, scope, typ, oldID, newID)
	})
}

// refPattern грубо отбирает документы, которые могут ссылаться на id; точную проверку
// делает entity.RemapRefs.
func refPattern(id string) string {
	return `%` + id + `%`
}

func (r *RecordRepository) remapRecordRefs(ctx context.Context, db querier, scope tenant.Scope, typ entity.Type, oldID, newID string) error {
	pattern := refPattern(oldID)
	rows, err := db.QueryContext(ctx,
		`SELECT entity_type, id, data FROM records
		 WHERE tenant_id = ? AND practice_id = ? AND data LIKE ?`,
		scope.TenantID, scope.PracticeID, pattern)
	if err != nil {
		return fmt.Errorf("find record refs: %w", err)
	}

	type ref struct {
		typ  entity.Type
		id   string
		data string
	}
	var refs []ref
	for rows.Next() {
		var x ref
		if err := rows.Scan(&x.typ, &x.id, &x.data); err != nil {
			rows.Close()
			return err
		}
		refs = append(refs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range refs {
		data, changed, err := entity.RemapRefs(json.RawMessage(x.data), typ, oldID, newID)
		if err != nil {
			r.log.Warn("skipping record with malformed data", "type", x.typ, "id", x.id, "error", err)
			continue
		}
		if !changed {
			continue
		}
		_, err = db.ExecContext(ctx,
			`UPDATE records SET data = ? WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND id = ?`,
			string(data), scope.TenantID, scope.PracticeID, x.typ, x.id)
		if err != nil {
			return fmt.Errorf("rewrite record refs: %w", err)
		}
	}
	return nil
}

func (r *RecordRepository) remapPayloadRefs(ctx context.Context, db querier, scope tenant.Scope, typ entity.Type, oldID, newID string) error {
	pattern := refPattern(oldID)
	rows, err := db.QueryContext(ctx,
		`SELECT id, payload FROM queue_operations
		 WHERE tenant_id = ? AND practice_id = ? AND status <> 'done' AND payload LIKE ?`,
		scope.TenantID, scope.PracticeID, pattern)
	if err != nil {
		return fmt.Errorf("find payload refs: %w", err)
	}

	type ref struct {
		id      int64
		payload string
	}
	var refs []ref
	for rows.Next() {
		var x ref
		if err := rows.Scan(&x.id, &x.payload); err != nil {
			rows.Close()
			return err
		}
		refs = append(refs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range refs {
		payload, changed, err := entity.RemapRefs(json.RawMessage(x.payload), typ, oldID, newID)
		if err != nil || !changed {
			continue
		}
		_, err = db.ExecContext(ctx, `UPDATE queue_operations SET payload = ? WHERE id = ?`, string(payload), x.id)
		if err != nil {
			return fmt.Errorf("rewrite payload refs: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, scope tenant.Scope) (*record.Record, error) {
	var (
		rec          record.Record
		data         string
		deleted      int
		lastModified int64
		baseUpdated  int64
	)
	err := row.Scan(&rec.ID, &rec.Type, &data, &rec.Meta.UserID, &rec.Meta.SyncStatus, &deleted,
		&lastModified, &rec.Meta.BaseVersion, &baseUpdated, &rec.Meta.LastError)
	if err != nil {
		return nil, err
	}
	rec.Data = json.RawMessage(data)
	rec.Meta.Deleted = deleted != 0
	rec.Meta.LastModified = fromUnix(lastModified)
	rec.Meta.BaseUpdatedAt = fromUnix(baseUpdated)
	rec.Meta.TenantID = scope.TenantID
	rec.Meta.PracticeID = scope.PracticeID
	return &rec, nil
}
