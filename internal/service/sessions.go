// Пакет service — сервисный слой PoC Admin.
// SessionService — страницы списка PoC по сессиям UI в LRU-кэше с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/poc-admin/internal/auth"
	"github.com/bigkaa/poc-admin/internal/page"
)

// Prometheus-метрики кэша сессий.
var (
	sessionCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pa_session_cache_hits_total",
		Help: "Общее количество попаданий в кэш страниц сессий.",
	})
	sessionCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pa_session_cache_misses_total",
		Help: "Общее количество промахов кэша страниц сессий.",
	})
)

// Flash — одноразовое сообщение, показываемое после redirect.
type Flash struct {
	// Kind — success, error или info
	Kind    string
	Message string
}

// SessionState — состояние одной сессии UI: страница и хранилище токена.
type SessionState struct {
	Page     *page.ListPage
	Tokens   *auth.MemoryStore
	Username string

	mu    sync.Mutex
	flash *Flash
}

// SetFlash сохраняет сообщение до следующего показа страницы.
func (st *SessionState) SetFlash(kind, message string) {
	st.mu.Lock()
	st.flash = &Flash{Kind: kind, Message: message}
	st.mu.Unlock()
}

// PopFlash возвращает и удаляет сообщение (nil если его нет).
func (st *SessionState) PopFlash() *Flash {
	st.mu.Lock()
	defer st.mu.Unlock()
	f := st.flash
	st.flash = nil
	return f
}

// PageFactory создаёт страницу для новой сессии.
type PageFactory func(tokens *auth.MemoryStore, username string) *page.ListPage

// SessionService — кэш состояний сессий.
// Каждый экземпляр держит собственный in-memory кэш; вытесненная сессия
// пересоздаётся из cookie при следующем запросе.
type SessionService struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *SessionState]
	factory PageFactory
}

// NewSessionService создаёт кэш сессий с указанным максимальным размером и TTL.
func NewSessionService(maxSize int, ttl time.Duration, factory PageFactory) *SessionService {
	onEvict := func(_ string, st *SessionState) {
		st.Page.Close()
	}
	cache := expirable.NewLRU[string, *SessionState](maxSize, onEvict, ttl)
	return &SessionService{cache: cache, factory: factory}
}

// Get возвращает состояние сессии или (nil, false).
func (s *SessionService) Get(sessionID string) (*SessionState, bool) {
	st, ok := s.cache.Get(sessionID)
	if ok {
		sessionCacheHitsTotal.Inc()
		return st, true
	}
	sessionCacheMissesTotal.Inc()
	return nil, false
}

// GetOrCreate возвращает состояние сессии, создавая его с токеном из cookie при промахе.
func (s *SessionService) GetOrCreate(sessionID, token, username string) *SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.Get(sessionID); ok {
		return st
	}

	tokens := auth.NewMemoryStore(token)
	st := &SessionState{
		Page:     s.factory(tokens, username),
		Tokens:   tokens,
		Username: username,
	}
	s.cache.Add(sessionID, st)
	return st
}

// Evict удаляет сессию (выход или истёкшая авторизация).
func (s *SessionService) Evict(sessionID string) {
	s.cache.Remove(sessionID)
}

// Len возвращает число сессий в кэше.
func (s *SessionService) Len() int {
	return s.cache.Len()
}
