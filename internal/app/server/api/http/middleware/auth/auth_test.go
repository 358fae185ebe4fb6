package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/staff"
	"vetsync/internal/domain/tenant"
)

type stubSessions struct {
	scope tenant.Scope
}

func (s stubSessions) Create(context.Context, staff.Member) (string, time.Time, error) {
	return "", time.Time{}, errors.New("not used")
}

func (s stubSessions) Validate(_ context.Context, token string) (tenant.Scope, error) {
	if token != "good" {
		return tenant.Scope{}, errors.New("invalid session")
	}
	return s.scope, nil
}

func (s stubSessions) Revoke(context.Context, string) error { return nil }

type whoamiOutput struct {
	Body struct {
		Scope string `json:"scope"`
	}
}

func TestAuth_Middleware(t *testing.T) {
	_, api := humatest.New(t)
	a := New(api, stubSessions{scope: tenant.Scope{TenantID: "clinic-a", PracticeID: 3, UserID: 8}}, slog.Default())

	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/whoami",
		Middlewares: huma.Middlewares{a.Middleware()},
	}, func(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
		s, err := tenant.FromContext(ctx)
		if err != nil {
			return nil, err
		}
		out := &whoamiOutput{}
		out.Body.Scope = s.String()
		return out, nil
	})

	tests := []struct {
		name     string
		headers  []any
		wantCode int
		wantBody string
	}{
		{name: "no token", wantCode: http.StatusUnauthorized},
		{name: "bad token", headers: []any{"Authorization: Bearer bad"}, wantCode: http.StatusUnauthorized},
		{name: "valid token", headers: []any{"Authorization: Bearer good"}, wantCode: http.StatusOK, wantBody: "clinic-a/3/8"},
		{
			name:     "matching headers",
			headers:  []any{"Authorization: Bearer good", "X-Tenant-Id: clinic-a", "X-Practice-Id: 3"},
			wantCode: http.StatusOK,
		},
		{
			name:     "foreign tenant",
			headers:  []any{"Authorization: Bearer good", "X-Tenant-Id: clinic-b"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "foreign practice",
			headers:  []any{"Authorization: Bearer good", "X-Practice-Id: 4"},
			wantCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Get("/whoami", tt.headers...)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantBody != "" {
				assert.Contains(t, resp.Body.String(), tt.wantBody)
			}
		})
	}
}
