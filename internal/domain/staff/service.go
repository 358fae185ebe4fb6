package staff

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	Register(ctx context.Context, tenantID string, practiceID int64, login, password string) (int64, error)
	Authenticate(ctx context.Context, tenantID, login, password string) (Member, error)
}

type Service struct {
	repo      Repository
	validator Validator
	log       *slog.Logger
}

func NewService(repo Repository, validator Validator, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		log:       log,
	}
}

// Register заводит учётную запись сотрудника в клинике арендатора.
func (s *Service) Register(ctx context.Context, tenantID string, practiceID int64, login, password string) (int64, error) {
	if tenantID == "" || practiceID <= 0 {
		return 0, fmt.Errorf("%w: tenant and practice are required", ErrInvalidInput)
	}
	if err := s.validator.ValidateRegister(login, password); err != nil {
		s.log.Debug("validation failed", "tenant", tenantID, "login", login, "error", err)
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.Create(ctx, Member{
		TenantID:   tenantID,
		PracticeID: practiceID,
		Login:      login,
		Password:   string(hash),
	})
}

// Authenticate проверяет логин и пароль внутри арендатора.
func (s *Service) Authenticate(ctx context.Context, tenantID, login, password string) (Member, error) {
	if tenantID == "" {
		return Member{}, ErrInvalidAuth
	}
	if err := s.validator.ValidateLogin(login); err != nil {
		return Member{}, ErrInvalidAuth
	}

	m, err := s.repo.FindByLogin(ctx, tenantID, login)
	if errors.Is(err, ErrNotFound) {
		return Member{}, ErrInvalidAuth
	}
	if err != nil {
		return Member{}, fmt.Errorf("find staff: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.Password), []byte(password)); err != nil {
		return Member{}, ErrInvalidAuth
	}

	return m, nil
}
