package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/queue"
	"vetsync/internal/domain/tenant"
)

type QueueRepository struct {
	s   *Storage
	log *slog.Logger
}

func NewQueueRepository(s *Storage, log *slog.Logger) *QueueRepository {
	return &QueueRepository{
		s:   s,
		log: log.With("component", "queue_repository"),
	}
}

const operationColumns = `id, entity_type, entity_id, kind, payload, status, retry_count, last_error,
	created_at, updated_at, next_attempt_at`

func (r *QueueRepository) Insert(ctx context.Context, scope tenant.Scope, op *queue.Operation) (int64, error) {
	const query = `
		INSERT INTO queue_operations (tenant_id, practice_id, user_id, entity_type, entity_id, kind,
		                              payload, status, retry_count, last_error, created_at, updated_at,
		                              next_attempt_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.s.conn(ctx).ExecContext(ctx, query,
		scope.TenantID, scope.PracticeID, scope.UserID, op.EntityType, op.EntityID, op.Kind,
		payloadArg(op.Payload), op.Status, op.RetryCount, op.LastError,
		toUnix(op.CreatedAt), toUnix(op.UpdatedAt), toUnix(op.NextAttemptAt),
	)
	if err != nil {
		r.log.Error("failed to insert operation", "type", op.EntityType, "entity", op.EntityID, "error", err)
		return 0, fmt.Errorf("insert operation: %w", err)
	}
	return res.LastInsertId()
}

func (r *QueueRepository) Get(ctx context.Context, scope tenant.Scope, id int64) (*queue.Operation, error) {
	const query = `SELECT ` + operationColumns + `
		FROM queue_operations
		WHERE tenant_id = ? AND practice_id = ? AND id = ?`

	op, err := scanOperation(r.s.conn(ctx).QueryRowContext(ctx, query, scope.TenantID, scope.PracticeID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get operation: %w", err)
	}
	return op, nil
}

func (r *QueueRepository) Outstanding(ctx context.Context, scope tenant.Scope) ([]*queue.Operation, error) {
	const query = `SELECT ` + operationColumns + `
		FROM queue_operations
		WHERE tenant_id = ? AND practice_id = ? AND status <> 'done'
		ORDER BY id`

	rows, err := r.s.conn(ctx).QueryContext(ctx, query, scope.TenantID, scope.PracticeID)
	if err != nil {
		return nil, fmt.Errorf("list outstanding operations: %w", err)
	}
	defer rows.Close()

	var ops []*queue.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (r *QueueRepository) Save(ctx context.Context, scope tenant.Scope, op *queue.Operation) error {
	const query = `
		UPDATE queue_operations
		SET entity_id = ?, payload = ?, status = ?, retry_count = ?, last_error = ?,
		    updated_at = ?, next_attempt_at = ?
		WHERE tenant_id = ? AND practice_id = ? AND id = ?`

	res, err := r.s.conn(ctx).ExecContext(ctx, query,
		op.EntityID, payloadArg(op.Payload), op.Status, op.RetryCount, op.LastError,
		toUnix(op.UpdatedAt), toUnix(op.NextAttemptAt),
		scope.TenantID, scope.PracticeID, op.ID,
	)
	if err != nil {
		return fmt.Errorf("save operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", queue.ErrNotFound, op.ID)
	}
	return nil
}

func (r *QueueRepository) CountOutstanding(ctx context.Context, scope tenant.Scope, typ entity.Type, entityID string) (int, error) {
	const query = `
		SELECT COUNT(*) FROM queue_operations
		WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND entity_id = ? AND status <> 'done'`

	var n int
	err := r.s.conn(ctx).QueryRowContext(ctx, query, scope.TenantID, scope.PracticeID, typ, entityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outstanding operations: %w", err)
	}
	return n, nil
}

func (r *QueueRepository) CloseEntity(ctx context.Context, scope tenant.Scope, typ entity.Type, entityID, note string, at time.Time) (int, error) {
	const query = `
		UPDATE queue_operations
		SET status = 'done', last_error = ?, updated_at = ?
		WHERE tenant_id = ? AND practice_id = ? AND entity_type = ? AND entity_id = ? AND status <> 'done'`

	res, err := r.s.conn(ctx).ExecContext(ctx, query, note, toUnix(at), scope.TenantID, scope.PracticeID, typ, entityID)
	if err != nil {
		return 0, fmt.Errorf("close entity operations: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *QueueRepository) CountByStatus(ctx context.Context, scope tenant.Scope) (map[queue.Status]int, error) {
	const query = `
		SELECT status, COUNT(*) FROM queue_operations
		WHERE tenant_id = ? AND practice_id = ?
		GROUP BY status`

	rows, err := r.s.conn(ctx).QueryContext(ctx, query, scope.TenantID, scope.PracticeID)
	if err != nil {
		return nil, fmt.Errorf("count operations: %w", err)
	}
	defer rows.Close()

	out := make(map[queue.Status]int)
	for rows.Next() {
		var (
			status queue.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *QueueRepository) DeleteDone(ctx context.Context, scope tenant.Scope, before time.Time) (int64, error) {
	const query = `
		DELETE FROM queue_operations
		WHERE tenant_id = ? AND practice_id = ? AND status = 'done' AND updated_at < ?`

	res, err := r.s.conn(ctx).ExecContext(ctx, query, scope.TenantID, scope.PracticeID, toUnix(before))
	if err != nil {
		return 0, fmt.Errorf("delete done operations: %w", err)
	}
	return res.RowsAffected()
}

// ResetInFlight возвращает операции, прерванные сбоем: без попыток в pending, остальные в failed.
func (r *QueueRepository) ResetInFlight(ctx context.Context, scope tenant.Scope, at time.Time) (int64, error) {
	const query = `
		UPDATE queue_operations
		SET status = CASE WHEN retry_count > 0 THEN 'failed' ELSE 'pending' END, updated_at = ?
		WHERE tenant_id = ? AND practice_id = ? AND status = 'in-flight'`

	res, err := r.s.conn(ctx).ExecContext(ctx, query, toUnix(at), scope.TenantID, scope.PracticeID)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight operations: %w", err)
	}
	return res.RowsAffected()
}

func payloadArg(p json.RawMessage) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}

func scanOperation(row scanner) (*queue.Operation, error) {
	var (
		op                        queue.Operation
		payload                   sql.NullString
		created, updated, nextAtt int64
	)
	err := row.Scan(&op.ID, &op.EntityType, &op.EntityID, &op.Kind, &payload, &op.Status,
		&op.RetryCount, &op.LastError, &created, &updated, &nextAtt)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		op.Payload = json.RawMessage(payload.String)
	}
	op.CreatedAt = fromUnix(created)
	op.UpdatedAt = fromUnix(updated)
	op.NextAttemptAt = fromUnix(nextAtt)
	return &op, nil
}
