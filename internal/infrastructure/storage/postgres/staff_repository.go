package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/staff"
)

type StaffRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewStaffRepository(db *Storage, log *slog.Logger) *StaffRepository {
	return &StaffRepository{db: db, log: log.With("component", "staff_repository")}
}

func (r *StaffRepository) Create(ctx context.Context, m staff.Member) (int64, error) {
	var id int64
	err := r.db.pool.QueryRow(ctx,
		`INSERT INTO staff (tenant_id, practice_id, login, password_hash)
         VALUES ($1, $2, $3, $4) RETURNING id`,
		m.TenantID, m.PracticeID, m.Login, m.Password).Scan(&id)
	if isUniqueViolation(err) {
		return 0, staff.ErrLoginTaken
	}
	if err != nil {
		r.log.Error("failed to create staff", "tenant", m.TenantID, "login", m.Login, "error", err)
		return 0, fmt.Errorf("create staff: %w", err)
	}
	return id, nil
}

func (r *StaffRepository) FindByLogin(ctx context.Context, tenantID, login string) (staff.Member, error) {
	var m staff.Member
	err := r.db.pool.QueryRow(ctx,
		`SELECT id, tenant_id, practice_id, login, password_hash, created_at
         FROM staff WHERE tenant_id = $1 AND login = $2`,
		tenantID, login).
		Scan(&m.ID, &m.TenantID, &m.PracticeID, &m.Login, &m.Password, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, staff.ErrNotFound
	}
	if err != nil {
		return m, fmt.Errorf("find staff: %w", err)
	}
	return m, nil
}
