package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/practice"
	"vetsync/internal/domain/tenant"
)

const recordColumns = `id, entity_type, COALESCE(client_id, ''), data, version, deleted, created_at, updated_at`

type PracticeRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewPracticeRepository(db *Storage, log *slog.Logger) *PracticeRepository {
	return &PracticeRepository{db: db, log: log.With("component", "practice_repository")}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *PracticeRepository) Insert(ctx context.Context, scope tenant.Scope, typ entity.Type, clientID string, data json.RawMessage) (*entity.RemoteRecord, bool, error) {
	var rec *entity.RemoteRecord
	created := true

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO practice_records (tenant_id, practice_id, entity_type, client_id, data, updated_by)
             VALUES ($1, $2, $3, $4, $5, $6)
             ON CONFLICT (tenant_id, practice_id, entity_type, client_id) WHERE client_id IS NOT NULL DO NOTHING
             RETURNING `+recordColumns,
			scope.TenantID, scope.PracticeID, typ, nullable(clientID), data, scope.UserID)

		var err error
		rec, err = scanRecord(row)
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		created = false
		rec, err = scanRecord(tx.QueryRow(ctx,
			`SELECT `+recordColumns+` FROM practice_records
             WHERE tenant_id = $1 AND practice_id = $2 AND entity_type = $3 AND client_id = $4`,
			scope.TenantID, scope.PracticeID, typ, clientID))
		return err
	})
	if err != nil {
		r.log.Error("failed to insert record", "type", typ, "client_id", clientID, "error", err)
		return nil, false, fmt.Errorf("insert record: %w", err)
	}
	return rec, created, nil
}

func (r *PracticeRepository) Get(ctx context.Context, scope tenant.Scope, typ entity.Type, id int64) (*entity.RemoteRecord, error) {
	rec, err := scanRecord(r.db.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM practice_records
         WHERE id = $1 AND tenant_id = $2 AND practice_id = $3 AND entity_type = $4`,
		id, scope.TenantID, scope.PracticeID, typ))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, practice.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (r *PracticeRepository) Update(ctx context.Context, scope tenant.Scope, typ entity.Type, id, baseVersion int64, data json.RawMessage) (*entity.RemoteRecord, error) {
	rec, err := scanRecord(r.db.pool.QueryRow(ctx,
		`UPDATE practice_records
         SET data = $1, version = version + 1, updated_by = $2, updated_at = NOW()
         WHERE id = $3 AND tenant_id = $4 AND practice_id = $5 AND entity_type = $6
           AND NOT deleted AND ($7 <= 0 OR version = $7)
         RETURNING `+recordColumns,
		data, scope.UserID, id, scope.TenantID, scope.PracticeID, typ, baseVersion))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missOrConflict(ctx, scope, typ, id)
	}
	if err != nil {
		r.log.Error("failed to update record", "type", typ, "id", id, "error", err)
		return nil, fmt.Errorf("update record: %w", err)
	}
	return rec, nil
}

func (r *PracticeRepository) SoftDelete(ctx context.Context, scope tenant.Scope, typ entity.Type, id, baseVersion int64) error {
	tag, err := r.db.pool.Exec(ctx,
		`UPDATE practice_records
         SET deleted = TRUE, version = version + 1, updated_by = $1, updated_at = NOW()
         WHERE id = $2 AND tenant_id = $3 AND practice_id = $4 AND entity_type = $5
           AND NOT deleted AND ($6 <= 0 OR version = $6)`,
		scope.UserID, id, scope.TenantID, scope.PracticeID, typ, baseVersion)
	if err != nil {
		r.log.Error("failed to delete record", "type", typ, "id", id, "error", err)
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := r.Get(ctx, scope, typ, id)
	if err != nil {
		return err
	}
	if current.Deleted {
		return nil
	}
	return practice.ErrVersionConflict
}

// missOrConflict различает отсутствующую запись и устаревшую базовую версию.
func (r *PracticeRepository) missOrConflict(ctx context.Context, scope tenant.Scope, typ entity.Type, id int64) error {
	if _, err := r.Get(ctx, scope, typ, id); err != nil {
		return err
	}
	return practice.ErrVersionConflict
}

func (r *PracticeRepository) ListSince(ctx context.Context, scope tenant.Scope, typ entity.Type, since time.Time, limit int) ([]*entity.RemoteRecord, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM practice_records
         WHERE tenant_id = $1 AND practice_id = $2 AND entity_type = $3 AND updated_at > $4
         ORDER BY updated_at, id
         LIMIT $5`,
		scope.TenantID, scope.PracticeID, typ, since, limit)
	if err != nil {
		r.log.Error("failed to list records", "type", typ, "since", since, "error", err)
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*entity.RemoteRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*entity.RemoteRecord, error) {
	var rec entity.RemoteRecord
	var data []byte
	if err := row.Scan(&rec.ID, &rec.Type, &rec.ClientID, &data, &rec.Version, &rec.Deleted, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Data = data
	return &rec, nil
}
