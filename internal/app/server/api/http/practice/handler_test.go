package practice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/practice"
	"vetsync/internal/domain/tenant"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, typ entity.Type, clientID string, data json.RawMessage) (*entity.RemoteRecord, bool, error) {
	args := m.Called(ctx, typ, clientID, data)
	rec, _ := args.Get(0).(*entity.RemoteRecord)
	return rec, args.Bool(1), args.Error(2)
}

func (m *MockService) Update(ctx context.Context, typ entity.Type, id, baseVersion int64, data json.RawMessage) (*entity.RemoteRecord, error) {
	args := m.Called(ctx, typ, id, baseVersion, data)
	rec, _ := args.Get(0).(*entity.RemoteRecord)
	return rec, args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, typ entity.Type, id, baseVersion int64) error {
	return m.Called(ctx, typ, id, baseVersion).Error(0)
}

func (m *MockService) Get(ctx context.Context, typ entity.Type, id int64) (*entity.RemoteRecord, error) {
	args := m.Called(ctx, typ, id)
	rec, _ := args.Get(0).(*entity.RemoteRecord)
	return rec, args.Error(1)
}

func (m *MockService) List(ctx context.Context, typ entity.Type, since time.Time) ([]*entity.RemoteRecord, error) {
	args := m.Called(ctx, typ, since)
	recs, _ := args.Get(0).([]*entity.RemoteRecord)
	return recs, args.Error(1)
}

var scope = tenant.Scope{TenantID: "clinic-a", PracticeID: 3, UserID: 8}

func newTestAPI(t *testing.T, svc practice.Servicer) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	withScope := func(ctx huma.Context, next func(huma.Context)) {
		next(huma.WithContext(ctx, tenant.WithScope(ctx.Context(), scope)))
	}
	NewHandler(svc, slog.Default(), huma.Middlewares{withScope}).SetupRoutes(api)
	return api
}

func TestHandler_create(t *testing.T) {
	tests := []struct {
		name     string
		created  bool
		wantCode int
	}{
		{name: "new record", created: true, wantCode: http.StatusCreated},
		{name: "replayed client id", created: false, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Create", mock.Anything, entity.TypePet, "temp_1_a", mock.Anything).
				Return(&entity.RemoteRecord{ID: 41, Type: entity.TypePet, Version: 1, ClientID: "temp_1_a"}, tt.created, nil)
			api := newTestAPI(t, svc)

			resp := api.Post("/api/v1/entities/pets", map[string]any{
				"client_id": "temp_1_a",
				"data":      map[string]any{"name": "Rex"},
			})
			require.Equal(t, tt.wantCode, resp.Code, resp.Body.String())

			var rec entity.RemoteRecord
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &rec))
			assert.Equal(t, int64(41), rec.ID)
		})
	}
}

func TestHandler_updateConflictCarriesRecord(t *testing.T) {
	svc := new(MockService)
	current := &entity.RemoteRecord{ID: 5, Type: entity.TypeClient, Version: 4, Data: json.RawMessage(`{"first_name":"Ann"}`)}
	svc.On("Update", mock.Anything, entity.TypeClient, int64(5), int64(3), mock.Anything).
		Return(nil, &practice.ConflictError{Current: current})
	api := newTestAPI(t, svc)

	resp := api.Put("/api/v1/entities/clients/5", map[string]any{
		"base_version": 3,
		"data":         map[string]any{"first_name": "Anna"},
	})
	require.Equal(t, http.StatusConflict, resp.Code)

	var body struct {
		Title  string               `json:"title"`
		Record *entity.RemoteRecord `json:"record"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotNil(t, body.Record)
	assert.Equal(t, int64(4), body.Record.Version)
	assert.JSONEq(t, `{"first_name":"Ann"}`, string(body.Record.Data))
}

func TestHandler_errorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "not found", err: practice.ErrNotFound, wantCode: http.StatusNotFound},
		{name: "invalid data", err: practice.ErrInvalidData, wantCode: http.StatusUnprocessableEntity},
		{name: "no scope", err: tenant.ErrScope, wantCode: http.StatusUnauthorized},
		{name: "storage failure", err: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Get", mock.Anything, entity.TypeAdmission, int64(9)).Return(nil, tt.err)

			resp := newTestAPI(t, svc).Get("/api/v1/entities/admissions/9")
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestHandler_deleteAndList(t *testing.T) {
	svc := new(MockService)
	since := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.On("Delete", mock.Anything, entity.TypeSoapNote, int64(12), int64(2)).Return(nil)
	svc.On("List", mock.Anything, entity.TypeSoapNote, since).Return([]*entity.RemoteRecord{{ID: 1}, {ID: 2, Deleted: true}}, nil)
	svc.On("List", mock.Anything, entity.TypeSoapNote, time.Time{}).Return(nil, nil)
	api := newTestAPI(t, svc)

	resp := api.Delete("/api/v1/entities/soap_notes/12?base_version=2")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = api.Get("/api/v1/entities/soap_notes?since=2026-03-01T08:00:00Z")
	require.Equal(t, http.StatusOK, resp.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list.Records, 2)

	resp = api.Get("/api/v1/entities/soap_notes")
	require.Equal(t, http.StatusOK, resp.Code)
	list = ListResponse{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.NotNil(t, list.Records)
	assert.Empty(t, list.Records)

	resp = api.Get("/api/v1/entities/soap_notes?since=yesterday")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	svc.AssertExpectations(t)
}
