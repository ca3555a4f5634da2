// Пакет auth — хранение bearer-токена PoC API.
// Токен читается в момент каждого вызова PoC API и не кэшируется в контроллерах;
// хранилище передаётся явно (сессия UI, файл CLI), глобального состояния нет.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken — токен отсутствует (не выполнен вход или был сброшен).
var ErrNoToken = errors.New("токен авторизации отсутствует")

// TokenStore — хранилище bearer-токена.
type TokenStore interface {
	// Token возвращает текущий токен или ErrNoToken.
	Token(ctx context.Context) (string, error)
	// Set сохраняет новый токен.
	Set(ctx context.Context, token string) error
	// Clear удаляет токен (принудительная повторная аутентификация).
	Clear(ctx context.Context) error
}

// MemoryStore — токен в памяти, один экземпляр на UI-сессию.
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	cleared bool
}

// NewMemoryStore создаёт хранилище с начальным токеном (может быть пустым).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.cleared = false
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.cleared = true
	return nil
}

// Cleared сообщает, был ли токен сброшен через Clear после последнего Set.
func (s *MemoryStore) Cleared() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cleared
}

// FileStore — токен в файле (CLI). Файл создаётся с правами 0600.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore создаёт файловое хранилище.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultTokenPath возвращает путь по умолчанию: $XDG_CONFIG_HOME/pocctl/token.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("определение каталога конфигурации: %w", err)
	}
	return filepath.Join(dir, "pocctl", "token"), nil
}

// Path возвращает путь к файлу токена.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("чтение токена: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (s *FileStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("создание каталога токена: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("запись токена: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("удаление токена: %w", err)
	}
	return nil
}

// TokenExpiry извлекает время истечения (claim exp) из JWT без проверки подписи.
// Подпись проверяет PoC API; консоли нужен только срок, чтобы не отправлять
// заведомо просроченный токен. ok=false — токен не JWT или exp отсутствует.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// TokenSubject извлекает claim sub из JWT без проверки подписи.
func TokenSubject(token string) string {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}
