package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/session"
	"vetsync/internal/domain/tenant"
)

type SessionRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSessionRepository(db *Storage, log *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log.With("component", "session_repository")}
}

func (r *SessionRepository) Create(ctx context.Context, staffID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO sessions (staff_id, token_hash, expires_at)
         VALUES ($1, decode($2, 'hex'), $3)`,
		staffID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Validate(ctx context.Context, tokenHash string) (tenant.Scope, error) {
	var s tenant.Scope
	err := r.db.pool.QueryRow(ctx,
		`SELECT st.tenant_id, st.practice_id, st.id
         FROM sessions se JOIN staff st ON st.id = se.staff_id
         WHERE se.token_hash = decode($1, 'hex') AND se.expires_at > NOW()`,
		tokenHash).Scan(&s.TenantID, &s.PracticeID, &s.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, session.ErrInvalidSession
	}
	if err != nil {
		return s, fmt.Errorf("validate session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = decode($1, 'hex')`, tokenHash)
	return err
}

// DeleteExpired удаляет истёкшие сессии.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
