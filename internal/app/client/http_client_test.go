package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/sync"
	"vetsync/internal/domain/tenant"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newHTTPClient(srv.URL, 2*time.Second, discardLogger())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHTTPClient_SendsSessionHeaders(t *testing.T) {
	var got *http.Request
	var body createRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, entity.RemoteRecord{ID: 501, Type: entity.TypePet, Version: 1, ClientID: body.ClientID})
	})
	c.SetSession("tok", tenant.Scope{TenantID: "clinic-a", PracticeID: 4, UserID: 9})

	rec, err := c.Create(context.Background(), entity.TypePet, "temp_1_abc", json.RawMessage(`{"name":"Rex"}`))
	require.NoError(t, err)

	assert.Equal(t, int64(501), rec.ID)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/v1/entities/pets", got.URL.Path)
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "clinic-a", got.Header.Get("X-Tenant-Id"))
	assert.Equal(t, "4", got.Header.Get("X-Practice-Id"))
	assert.Equal(t, "temp_1_abc", body.ClientID)
	assert.JSONEq(t, `{"name":"Rex"}`, string(body.Data))
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	remote := &entity.RemoteRecord{ID: 7, Type: entity.TypeClient, Version: 4}

	tests := []struct {
		name   string
		status int
		body   any
		check  func(t *testing.T, err error)
	}{
		{
			name:   "conflict carries remote record",
			status: http.StatusConflict,
			body:   errorBody{Title: "Conflict", Record: remote},
			check: func(t *testing.T, err error) {
				var ce *sync.ConflictError
				require.ErrorAs(t, err, &ce)
				assert.ErrorIs(t, err, sync.ErrConflictDetected)
				assert.Equal(t, int64(4), ce.Remote.Version)
			},
		},
		{
			name:   "conflict without record is transport",
			status: http.StatusConflict,
			body:   errorBody{Title: "Conflict"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, sync.ErrTransport)
				assert.False(t, errors.Is(err, sync.ErrConflictDetected))
			},
		},
		{
			name:   "expired session is rejected as unauthorized",
			status: http.StatusUnauthorized,
			body:   errorBody{Title: "Unauthorized"},
			check: func(t *testing.T, err error) {
				var re *sync.RejectedError
				require.ErrorAs(t, err, &re)
				assert.True(t, re.Unauthorized())
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   errorBody{Title: "Not Found"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, sync.ErrRemoteNotFound)
			},
		},
		{
			name:   "server error is transport",
			status: http.StatusBadGateway,
			body:   errorBody{Detail: "upstream down"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, sync.ErrTransport)
				assert.Contains(t, err.Error(), "upstream down")
			},
		},
		{
			name:   "validation error is rejected",
			status: http.StatusUnprocessableEntity,
			body:   errorBody{Title: "Unprocessable Entity", Detail: "pet name is required"},
			check: func(t *testing.T, err error) {
				var re *sync.RejectedError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, http.StatusUnprocessableEntity, re.Status)
				assert.Equal(t, "pet name is required", re.Message)
				assert.False(t, re.Unauthorized())
				assert.False(t, errors.Is(err, sync.ErrTransport))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.Update(context.Background(), entity.TypeClient, 7, 3, json.RawMessage(`{}`))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPClient_NetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newHTTPClient(srv.URL, time.Second, discardLogger())
	srv.Close()

	_, err := c.Get(context.Background(), entity.TypePet, 1)
	assert.ErrorIs(t, err, sync.ErrTransport)
	assert.ErrorIs(t, c.Probe(context.Background()), sync.ErrTransport)
}

func TestHTTPClient_DeleteAndListQuery(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.RequestURI())
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Records: []*entity.RemoteRecord{{ID: 1}, {ID: 2, Deleted: true}}})
	})

	require.NoError(t, c.Delete(context.Background(), entity.TypeAdmission, 12, 3))

	since := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	recs, err := c.List(context.Background(), entity.TypeSoapNote, since)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = c.List(context.Background(), entity.TypeSoapNote, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"DELETE /api/v1/entities/admissions/12?base_version=3",
		"GET /api/v1/entities/soap_notes?since=2026-03-01T08%3A00%3A00Z",
		"GET /api/v1/entities/soap_notes",
	}, paths)
}

func TestHTTPClient_Login(t *testing.T) {
	scope := tenant.Scope{TenantID: "clinic-a", PracticeID: 2, UserID: 5}

	t.Run("stores session", func(t *testing.T) {
		var calls []*http.Request
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, r)
			if r.URL.Path == "/api/v1/auth/login" {
				var req loginRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				assert.Equal(t, "clinic-a", req.TenantID)
				writeJSON(w, http.StatusOK, Session{Token: "tok", Scope: scope})
				return
			}
			writeJSON(w, http.StatusOK, entity.RemoteRecord{ID: 1})
		})

		sess, err := c.Login(context.Background(), "clinic-a", "vet", "Secret#1")
		require.NoError(t, err)
		assert.Equal(t, scope, sess.Scope)

		_, err = c.Get(context.Background(), entity.TypePet, 1)
		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Equal(t, "Bearer tok", calls[1].Header.Get("Authorization"))
	})

	t.Run("incomplete scope", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, Session{Token: "tok", Scope: tenant.Scope{TenantID: "clinic-a"}})
		})
		_, err := c.Login(context.Background(), "clinic-a", "vet", "Secret#1")
		assert.ErrorIs(t, err, tenant.ErrScope)
	})

	t.Run("bad credentials", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Title: "Unauthorized", Detail: "invalid credentials"})
		})
		_, err := c.Login(context.Background(), "clinic-a", "vet", "nope")
		var re *sync.RejectedError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, http.StatusUnauthorized, re.Status)
	})
}

func TestHTTPClient_RegisterAndLogout(t *testing.T) {
	var calls []string
	var reg registerRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/auth/register":
			_ = json.NewDecoder(r.Body).Decode(&reg)
			writeJSON(w, http.StatusCreated, registerResponse{ID: 17})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	id, err := c.Register(context.Background(), "clinic-a", 3, "vet", "Secret#1")
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)
	assert.Equal(t, int64(3), reg.PracticeID)

	c.SetSession("tok", tenant.Scope{TenantID: "clinic-a", PracticeID: 3, UserID: 17})
	require.NoError(t, c.Logout(context.Background()))

	assert.Equal(t, []string{
		"POST /api/v1/auth/register ",
		"POST /api/v1/auth/logout Bearer tok",
	}, calls)
}
