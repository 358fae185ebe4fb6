package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"vetsync/internal/app/client/config"
	"vetsync/internal/domain/entity"
	"vetsync/internal/domain/sync"
	"vetsync/internal/domain/tenant"
)

const apiPrefix = "/api/v1"

// HTTPClient — клиент удалённого сервиса сущностей. Реализует sync.Remote и network.Prober.
type HTTPClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string

	mu    gosync.RWMutex
	token string
	scope tenant.Scope
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) *HTTPClient {
	return newHTTPClient(cfg.BaseURL(), cfg.Sync.RequestTimeout, log)
}

func newHTTPClient(baseURL string, timeout time.Duration, log *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:       log.With("component", "http_client"),
		baseURL:   baseURL,
		userAgent: "VetSync-Client/1.0",
	}
}

// SetSession устанавливает токен и область, которые передаются с каждым запросом.
func (h *HTTPClient) SetSession(token string, scope tenant.Scope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	h.scope = scope
}

// Probe проверяет доступность сервера
func (h *HTTPClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.baseURL+apiPrefix+"/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return &sync.TransportError{Op: "probe", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &sync.TransportError{Op: "probe", Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return nil
}

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Session — ответ сервера на вход.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Scope     tenant.Scope `json:"scope"`
}

func (h *HTTPClient) Login(ctx context.Context, tenantID, login, password string) (*Session, error) {
	var sess Session
	err := h.do(ctx, "login", http.MethodPost, apiPrefix+"/auth/login", loginRequest{
		TenantID: tenantID,
		Login:    login,
		Password: password,
	}, &sess)
	if err != nil {
		return nil, err
	}
	if err := sess.Scope.Validate(); err != nil {
		return nil, fmt.Errorf("сервер вернул неполную область: %w", err)
	}
	h.SetSession(sess.Token, sess.Scope)
	return &sess, nil
}

func (h *HTTPClient) Logout(ctx context.Context) error {
	return h.do(ctx, "logout", http.MethodPost, apiPrefix+"/auth/logout", nil, nil)
}

type registerRequest struct {
	TenantID   string `json:"tenant_id"`
	PracticeID int64  `json:"practice_id"`
	Login      string `json:"login"`
	Password   string `json:"password"`
}

type registerResponse struct {
	ID int64 `json:"user_id"`
}

// Register создаёт учётную запись сотрудника клиники.
func (h *HTTPClient) Register(ctx context.Context, tenantID string, practiceID int64, login, password string) (int64, error) {
	var resp registerResponse
	err := h.do(ctx, "register", http.MethodPost, apiPrefix+"/auth/register", registerRequest{
		TenantID:   tenantID,
		PracticeID: practiceID,
		Login:      login,
		Password:   password,
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

type createRequest struct {
	ClientID string          `json:"client_id"`
	Data     json.RawMessage `json:"data"`
}

type updateRequest struct {
	BaseVersion int64           `json:"base_version"`
	Data        json.RawMessage `json:"data"`
}

type listResponse struct {
	Records []*entity.RemoteRecord `json:"records"`
}

func (h *HTTPClient) Create(ctx context.Context, typ entity.Type, clientID string, data json.RawMessage) (*entity.RemoteRecord, error) {
	var rec entity.RemoteRecord
	err := h.do(ctx, "create", http.MethodPost, entityPath(typ), createRequest{ClientID: clientID, Data: data}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (h *HTTPClient) Update(ctx context.Context, typ entity.Type, id, baseVersion int64, data json.RawMessage) (*entity.RemoteRecord, error) {
	var rec entity.RemoteRecord
	err := h.do(ctx, "update", http.MethodPut, entityPath(typ, id), updateRequest{BaseVersion: baseVersion, Data: data}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (h *HTTPClient) Delete(ctx context.Context, typ entity.Type, id, baseVersion int64) error {
	path := entityPath(typ, id) + "?base_version=" + strconv.FormatInt(baseVersion, 10)
	return h.do(ctx, "delete", http.MethodDelete, path, nil, nil)
}

func (h *HTTPClient) Get(ctx context.Context, typ entity.Type, id int64) (*entity.RemoteRecord, error) {
	var rec entity.RemoteRecord
	if err := h.do(ctx, "get", http.MethodGet, entityPath(typ, id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (h *HTTPClient) List(ctx context.Context, typ entity.Type, since time.Time) ([]*entity.RemoteRecord, error) {
	path := entityPath(typ)
	if !since.IsZero() {
		path += "?" + url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}.Encode()
	}
	var resp listResponse
	if err := h.do(ctx, "list", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func entityPath(typ entity.Type, id ...int64) string {
	path := apiPrefix + "/entities/" + url.PathEscape(typ.String())
	if len(id) > 0 {
		path += "/" + strconv.FormatInt(id[0], 10)
	}
	return path
}

// errorBody — тело ошибки сервера. Record заполняется только для 409.
type errorBody struct {
	Title  string               `json:"title"`
	Detail string               `json:"detail"`
	Record *entity.RemoteRecord `json:"record"`
}

func (h *HTTPClient) do(ctx context.Context, op, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	h.mu.RLock()
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	if h.scope.TenantID != "" {
		req.Header.Set("X-Tenant-Id", h.scope.TenantID)
		req.Header.Set("X-Practice-Id", strconv.FormatInt(h.scope.PracticeID, 10))
	}
	h.mu.RUnlock()

	h.log.Debug("Отправка запроса", "method", method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		return &sync.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &sync.TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}

	h.log.Debug("Получен ответ", "op", op, "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		return h.statusError(op, resp.StatusCode, data)
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return &sync.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("ошибка парсинга ответа: %w", err)}
		}
	}
	return nil
}

// statusError переводит ответ сервера в ошибки движка синхронизации.
func (h *HTTPClient) statusError(op string, status int, data []byte) error {
	var body errorBody
	_ = json.Unmarshal(data, &body)
	msg := body.Detail
	if msg == "" {
		msg = body.Title
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusConflict && body.Record != nil:
		return &sync.ConflictError{Remote: body.Record}
	case status == http.StatusConflict:
		// Без текущей версии конфликт не разрешить; операция повторится позже.
		return &sync.TransportError{Op: op, Status: status, Err: errors.New(msg)}
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, sync.ErrRemoteNotFound)
	case status >= 500, status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return &sync.TransportError{Op: op, Status: status, Err: errors.New(msg)}
	}
	return &sync.RejectedError{Status: status, Message: msg}
}
