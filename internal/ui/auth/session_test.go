package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestManager создаёт менеджер с фиксированным ключом.
func newTestManager(t *testing.T, key string) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager(key, false, time.Hour)
	if err != nil {
		t.Fatalf("Ошибка создания SessionManager: %v", err)
	}
	return sm
}

// TestSessionEncryptDecryptRoundTrip проверяет шифрование и дешифрование SessionData.
func TestSessionEncryptDecryptRoundTrip(t *testing.T) {
	sm := newTestManager(t, "")

	original := &SessionData{
		ID:          "5b2f9c1e-0000-4000-8000-000000000001",
		AccessToken: "test-access-token-12345",
		ExpiresAt:   time.Now().Add(5 * time.Minute).Unix(),
		Username:    "admin",
	}

	encrypted, err := sm.Encrypt(original)
	if err != nil {
		t.Fatalf("Ошибка шифрования: %v", err)
	}
	if encrypted == "" {
		t.Fatal("Зашифрованная строка пустая")
	}

	decrypted, err := sm.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Ошибка дешифрования: %v", err)
	}
	if *decrypted != *original {
		t.Errorf("сессия после дешифрования: want %+v, got %+v", original, decrypted)
	}
}

// TestSessionDecryptWithWrongKey проверяет, что дешифрование чужим ключом не работает.
func TestSessionDecryptWithWrongKey(t *testing.T) {
	sm1 := newTestManager(t, "key-one")
	sm2 := newTestManager(t, "key-two")

	encrypted, err := sm1.Encrypt(&SessionData{ID: "s1", AccessToken: "secret"})
	if err != nil {
		t.Fatalf("Ошибка шифрования: %v", err)
	}

	if _, err := sm2.Decrypt(encrypted); err == nil {
		t.Error("Ожидалась ошибка при дешифровании чужим ключом")
	}
}

// TestSessionDecryptWithoutID — сессия без ID не принимается.
func TestSessionDecryptWithoutID(t *testing.T) {
	sm := newTestManager(t, "key")

	encrypted, err := sm.Encrypt(&SessionData{AccessToken: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Decrypt(encrypted); err == nil {
		t.Error("Ожидалась ошибка для сессии без ID")
	}
}

// TestSessionIsExpired проверяет логику истечения с буфером 30 секунд.
func TestSessionIsExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"в прошлом", now.Add(-time.Minute), true},
		{"через минуту", now.Add(time.Minute), false},
		{"в буферной зоне", now.Add(20 * time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SessionData{ExpiresAt: tt.expires.Unix()}
			if got := s.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, ожидается %v", got, tt.want)
			}
		})
	}
}

// TestNewSessionData проверяет выбор срока сессии по exp токена.
func TestNewSessionData(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	sign := func(exp time.Time) string {
		claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		return token
	}

	short := NewSessionData(sign(now.Add(10*time.Minute)), "admin", now, time.Hour)
	if short.ExpiresAt != now.Add(10*time.Minute).Unix() {
		t.Errorf("срок по exp токена: %d", short.ExpiresAt)
	}

	long := NewSessionData(sign(now.Add(48*time.Hour)), "admin", now, time.Hour)
	if long.ExpiresAt != now.Add(time.Hour).Unix() {
		t.Errorf("срок ограничен maxAge: %d", long.ExpiresAt)
	}

	opaque := NewSessionData("opaque", "admin", now, time.Hour)
	if opaque.ExpiresAt != now.Add(time.Hour).Unix() {
		t.Errorf("непрозрачный токен: %d", opaque.ExpiresAt)
	}
	if opaque.ID == "" || opaque.ID == short.ID {
		t.Errorf("ID сессий должны быть уникальны: %q %q", opaque.ID, short.ID)
	}
}

// TestSessionCookieSetAndGet проверяет установку и извлечение cookie.
func TestSessionCookieSetAndGet(t *testing.T) {
	sm := newTestManager(t, "test-key")

	data := &SessionData{
		ID:          "s-1",
		AccessToken: "access-123",
		Username:    "admin",
		ExpiresAt:   time.Now().Add(5 * time.Minute).Unix(),
	}

	w := httptest.NewRecorder()
	if err := sm.SetSessionCookie(w, data); err != nil {
		t.Fatalf("Ошибка установки cookie: %v", err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("Cookie не установлен")
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/pocs", nil)
	req.AddCookie(cookies[0])

	got, err := sm.GetSessionFromRequest(req)
	if err != nil {
		t.Fatalf("Ошибка чтения сессии из cookie: %v", err)
	}
	if got == nil {
		t.Fatal("Сессия не найдена")
	}
	if *got != *data {
		t.Errorf("сессия: want %+v, got %+v", data, got)
	}

	cookie := cookies[0]
	if cookie.Name != SessionCookieName {
		t.Errorf("Cookie name: want %q, got %q", SessionCookieName, cookie.Name)
	}
	if cookie.Path != "/admin" {
		t.Errorf("Cookie path: want %q, got %q", "/admin", cookie.Path)
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("Cookie MaxAge: want 3600, got %d", cookie.MaxAge)
	}
	if !cookie.HttpOnly {
		t.Error("Cookie должен быть HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Error("Cookie должен быть SameSite=Lax")
	}
}

// TestSessionCookieMissing проверяет, что отсутствие cookie возвращает nil, nil.
func TestSessionCookieMissing(t *testing.T) {
	sm := newTestManager(t, "test-key")

	req := httptest.NewRequest(http.MethodGet, "/admin/pocs", nil)
	data, err := sm.GetSessionFromRequest(req)
	if err != nil {
		t.Fatalf("Ожидалось nil error, получено: %v", err)
	}
	if data != nil {
		t.Error("Ожидалось nil data при отсутствии cookie")
	}
}

// TestClearSessionCookie проверяет очистку session cookie.
func TestClearSessionCookie(t *testing.T) {
	sm := newTestManager(t, "test-key")

	w := httptest.NewRecorder()
	sm.ClearSessionCookie(w)

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("Cookie очистки не установлен")
	}

	cookie := cookies[0]
	if cookie.MaxAge != -1 {
		t.Errorf("MaxAge: want -1, got %d", cookie.MaxAge)
	}
	if cookie.Value != "" {
		t.Error("Value должен быть пустым")
	}
}
