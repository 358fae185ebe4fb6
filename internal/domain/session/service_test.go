package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/staff"
	"vetsync/internal/domain/tenant"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, staffID int64, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, staffID, tokenHash, expiresAt).Error(0)
}

func (m *MockRepository) Validate(ctx context.Context, tokenHash string) (tenant.Scope, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(tenant.Scope), args.Error(1)
}

func (m *MockRepository) Revoke(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

var member = staff.Member{ID: 9, TenantID: "clinic-a", PracticeID: 4, Login: "vet"}

func newTestService(repo Repository) *Service {
	s := NewService(repo, time.Hour, slog.Default())
	s.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestService_CreateAndValidate(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	var stored string
	repo.On("Create", mock.Anything, int64(9), mock.AnythingOfType("string"), time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)).
		Run(func(args mock.Arguments) { stored = args.String(2) }).
		Return(nil)

	token, expiresAt, err := svc.Create(context.Background(), member)
	require.NoError(t, err)
	assert.Len(t, token, 44)
	assert.Equal(t, time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC), expiresAt)
	assert.NotEqual(t, token, stored, "raw token is never stored")
	assert.Len(t, stored, 64)

	repo.On("Validate", mock.Anything, stored).Return(member.Scope(), nil)
	scope, err := svc.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, member.Scope(), scope)

	repo.AssertExpectations(t)
}

func TestService_Create_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("database error"))

	_, _, err := newTestService(repo).Create(context.Background(), member)
	assert.ErrorContains(t, err, "database error")
}

func TestService_Validate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		token string
		scope tenant.Scope
		err   error
	}{
		{name: "empty token", token: ""},
		{name: "unknown token", token: "nope", err: errors.New("no rows")},
		{name: "incomplete scope", token: "tok", scope: tenant.Scope{TenantID: "clinic-a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			if tt.token != "" {
				repo.On("Validate", mock.Anything, hashToken(tt.token)).Return(tt.scope, tt.err)
			}

			_, err := newTestService(repo).Validate(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidSession)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Revoke(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Revoke", mock.Anything, hashToken("tok")).Return(nil)

	require.NoError(t, newTestService(repo).Revoke(context.Background(), "tok"))
	repo.AssertExpectations(t)
}
