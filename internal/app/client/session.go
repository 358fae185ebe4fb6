package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"vetsync/internal/domain/tenant"
)

const sessionPermissions = 0600

var (
	ErrNoSession      = errors.New("no saved session")
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore хранит токен и область пользователя между запусками.
type SessionStore struct {
	path string
	now  func() time.Time
	mu   gosync.Mutex
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path, now: time.Now}
}

func (s *SessionStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации сессии: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("ошибка создания директории сессии: %w", err)
	}
	if err := os.WriteFile(s.path, data, sessionPermissions); err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	return nil
}

// Load читает сессию. Истёкшая сессия возвращается вместе с ErrSessionExpired.
func (s *SessionStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("ошибка разбора сессии: %w", err)
	}
	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		return &sess, ErrSessionExpired
	}
	return &sess, nil
}

func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления сессии: %w", err)
	}
	return nil
}

// Resolve восстанавливает область из сохранённой сессии. Истёкшая сессия область не теряет:
// локальная работа продолжается, а сервер ответит 401 до повторного входа.
func (s *SessionStore) Resolve(context.Context) (tenant.Scope, error) {
	sess, err := s.Load()
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		return tenant.Scope{}, err
	}
	if err := sess.Scope.Validate(); err != nil {
		return tenant.Scope{}, err
	}
	return sess.Scope, nil
}
