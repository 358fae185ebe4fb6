package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"vetsync/internal/domain/conflict"
	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/tenant"
)

type ConflictRepository struct {
	s   *Storage
	log *slog.Logger
}

func NewConflictRepository(s *Storage, log *slog.Logger) *ConflictRepository {
	return &ConflictRepository{
		s:   s,
		log: log.With("component", "conflict_repository"),
	}
}

const conflictColumns = `id, entity_type, entity_id, local_version, remote_version, detected_at,
	resolution, resolved_at, resolved_by`

func (r *ConflictRepository) Insert(ctx context.Context, scope tenant.Scope, c *conflict.Conflict) error {
	local, remote, err := encodeVersions(c)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO conflicts (id, tenant_id, practice_id, entity_type, entity_id, local_version,
		                       remote_version, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.s.conn(ctx).ExecContext(ctx, query,
		c.ID, scope.TenantID, scope.PracticeID, c.EntityType, c.EntityID, local, remote, toUnix(c.DetectedAt))
	if err != nil {
		r.log.Error("failed to insert conflict", "id", c.ID, "error", err)
		return fmt.Errorf("insert conflict: %w", err)
	}
	return nil
}

func (r *ConflictRepository) Get(ctx context.Context, scope tenant.Scope, id string) (*conflict.Conflict, error) {
	const query = `SELECT ` + conflictColumns + `
		FROM conflicts WHERE tenant_id = ? AND practice_id = ? AND id = ?`

	c, err := scanConflict(r.s.conn(ctx).QueryRowContext(ctx, query, scope.TenantID, scope.PracticeID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", conflict.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get conflict: %w", err)
	}
	return c, nil
}

func (r *ConflictRepository) FindUnresolved(ctx context.Context, scope tenant.Scope, typ entity.Type, entityID string) (*conflict.Conflict, error) {
	const query = `SELECT ` + conflictColumns + `
		FROM conflicts
		WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND entity_id = ? AND resolution IS NULL
		ORDER BY detected_at DESC
		LIMIT 1`

	c, err := scanConflict(r.s.conn(ctx).QueryRowContext(ctx, query, scope.TenantID, scope.PracticeID, typ, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conflict.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find unresolved conflict: %w", err)
	}
	return c, nil
}

func (r *ConflictRepository) ListUnresolved(ctx context.Context, scope tenant.Scope) ([]*conflict.Conflict, error) {
	const query = `SELECT ` + conflictColumns + `
		FROM conflicts
		WHERE tenant_id = ? AND practice_id = ? AND resolution IS NULL
		ORDER BY detected_at, id`

	return r.list(ctx, query, scope.TenantID, scope.PracticeID)
}

func (r *ConflictRepository) ListByEntity(ctx context.Context, scope tenant.Scope, typ entity.Type, entityID string) ([]*conflict.Conflict, error) {
	const query = `SELECT ` + conflictColumns + `
		FROM conflicts
		WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND entity_id = ?
		ORDER BY detected_at, id`

	return r.list(ctx, query, scope.TenantID, scope.PracticeID, typ, entityID)
}

func (r *ConflictRepository) Refresh(ctx context.Context, scope tenant.Scope, c *conflict.Conflict) error {
	local, remote, err := encodeVersions(c)
	if err != nil {
		return err
	}

	const query = `
		UPDATE conflicts SET local_version = ?, remote_version = ?
		WHERE tenant_id = ? AND practice_id = ? AND id = ? AND resolution IS NULL`

	res, err := r.s.conn(ctx).ExecContext(ctx, query, local, remote, scope.TenantID, scope.PracticeID, c.ID)
	if err != nil {
		return fmt.Errorf("refresh conflict: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", conflict.ErrAlreadyResolved, c.ID)
	}
	return nil
}

func (r *ConflictRepository) Resolve(ctx context.Context, scope tenant.Scope, id string, strategy conflict.Strategy, at time.Time, by int64) error {
	const query = `
		UPDATE conflicts SET resolution = ?, resolved_at = ?, resolved_by = ?
		WHERE tenant_id = ? AND practice_id = ? AND id = ? AND resolution IS NULL`

	res, err := r.s.conn(ctx).ExecContext(ctx, query, strategy, toUnix(at), by, scope.TenantID, scope.PracticeID, id)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, scope, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", conflict.ErrAlreadyResolved, id)
	}
	return nil
}

func (r *ConflictRepository) list(ctx context.Context, query string, args ...any) ([]*conflict.Conflict, error) {
	rows, err := r.s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []*conflict.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func encodeVersions(c *conflict.Conflict) (string, any, error) {
	local, err := json.Marshal(c.LocalVersion)
	if err != nil {
		return "", nil, fmt.Errorf("encode local version: %w", err)
	}
	if c.RemoteVersion == nil {
		return string(local), nil, nil
	}
	remote, err := json.Marshal(c.RemoteVersion)
	if err != nil {
		return "", nil, fmt.Errorf("encode remote version: %w", err)
	}
	return string(local), string(remote), nil
}

func scanConflict(row scanner) (*conflict.Conflict, error) {
	var (
		c          conflict.Conflict
		local      string
		remote     sql.NullString
		detected   int64
		resolution sql.NullString
		resolvedAt sql.NullInt64
		resolvedBy sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.EntityType, &c.EntityID, &local, &remote, &detected,
		&resolution, &resolvedAt, &resolvedBy)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(local), &c.LocalVersion); err != nil {
		return nil, fmt.Errorf("decode local version: %w", err)
	}
	if remote.Valid {
		if err := json.Unmarshal([]byte(remote.String), &c.RemoteVersion); err != nil {
			return nil, fmt.Errorf("decode remote version: %w", err)
		}
	}
	c.DetectedAt = fromUnix(detected)
	if resolution.Valid {
		st := conflict.Strategy(resolution.String)
		c.Resolution = &st
		at := fromUnix(resolvedAt.Int64)
		c.ResolvedAt = &at
		c.ResolvedBy = resolvedBy.Int64
	}
	return &c, nil
}
