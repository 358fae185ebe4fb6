package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"vetsync/internal/domain/staff"
	"vetsync/internal/domain/tenant"
)

const DefaultTTL = 24 * time.Hour

type Servicer interface {
	Create(ctx context.Context, m staff.Member) (string, time.Time, error)
	Validate(ctx context.Context, token string) (tenant.Scope, error)
	Revoke(ctx context.Context, token string) error
}

type Service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
	log  *slog.Logger
}

func NewService(repo Repository, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
		log:  log,
	}
}

// Create выпускает токен сотрудника. В хранилище попадает только sha256 от токена.
func (s *Service) Create(ctx context.Context, m staff.Member) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(raw)

	expiresAt := s.now().Add(s.ttl).UTC()
	if err := s.repo.Create(ctx, m.ID, hashToken(token), expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("save session: %w", err)
	}

	s.log.Debug("session created", "scope", m.Scope().String(), "expires_at", expiresAt)
	return token, expiresAt, nil
}

func (s *Service) Validate(ctx context.Context, token string) (tenant.Scope, error) {
	if token == "" {
		return tenant.Scope{}, ErrInvalidSession
	}
	scope, err := s.repo.Validate(ctx, hashToken(token))
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err := scope.Validate(); err != nil {
		return tenant.Scope{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return scope, nil
}

func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.repo.Revoke(ctx, hashToken(token))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
