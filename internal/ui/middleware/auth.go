// Пакет middleware — HTTP middleware для Admin UI.
// auth.go — проверка UI-сессии (cookie-based) и привязка страницы списка PoC.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/poc-admin/internal/service"
	"github.com/bigkaa/poc-admin/internal/ui/auth"
)

// LoginPath — страница входа.
const LoginPath = "/admin/login"

// contextKey — тип для ключей контекста UI (избегаем коллизий с API middleware).
type contextKey string

const (
	// ContextKeyUISession — данные UI-сессии в контексте запроса.
	ContextKeyUISession contextKey = "ui_session"
	// ContextKeySessionState — состояние сессии (страница списка PoC).
	ContextKeySessionState contextKey = "ui_session_state"
)

// UIAuth — middleware для проверки аутентификации UI-пользователей.
// Извлекает сессию из зашифрованного cookie, находит (или создаёт) страницу
// списка PoC сессии, redirect на /admin/login при отсутствии или истечении сессии.
// Обновления токена нет: PoC API выдаёт только access token.
type UIAuth struct {
	sessionManager *auth.SessionManager
	sessions       *service.SessionService
	now            func() time.Time
	logger         *slog.Logger
}

// NewUIAuth создаёт новый UIAuth middleware.
func NewUIAuth(
	sessionManager *auth.SessionManager,
	sessions *service.SessionService,
	logger *slog.Logger,
) *UIAuth {
	return &UIAuth{
		sessionManager: sessionManager,
		sessions:       sessions,
		now:            time.Now,
		logger:         logger.With(slog.String("component", "ui_auth_middleware")),
	}
}

// Middleware возвращает HTTP middleware для проверки UI-сессии.
// Применяется к маршрутам /admin/*, кроме /admin/login и /admin/set-language.
func (ua *UIAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Извлекаем сессию из cookie
			session, err := ua.sessionManager.GetSessionFromRequest(r)
			if err != nil {
				ua.logger.Debug("Ошибка чтения UI-сессии",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				// Повреждённый cookie — очищаем и redirect на login
				ua.sessionManager.ClearSessionCookie(w)
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			// 2. Если сессия отсутствует — redirect на login
			if session == nil {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			// 3. Срок сессии истёк — повторный вход
			if session.IsExpired(ua.now()) {
				ua.logger.Info("UI-сессия истекла",
					slog.String("username", session.Username),
				)
				ua.EndSession(w, r, session)
				return
			}

			// 4. Страница сессии; токен, сброшенный после ответа PoC API
			// об истёкшей авторизации, завершает сессию
			state := ua.sessions.GetOrCreate(session.ID, session.AccessToken, session.Username)
			if state.Tokens.Cleared() {
				ua.logger.Info("Авторизация PoC API истекла, требуется вход",
					slog.String("username", session.Username),
				)
				ua.EndSession(w, r, session)
				return
			}

			// 5. Помещаем сессию и состояние в контекст
			ctx := context.WithValue(r.Context(), ContextKeyUISession, session)
			ctx = context.WithValue(ctx, ContextKeySessionState, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EndSession удаляет страницу сессии, очищает cookie и перенаправляет на вход.
// Для htmx-запросов redirect передаётся заголовком HX-Redirect.
func (ua *UIAuth) EndSession(w http.ResponseWriter, r *http.Request, session *auth.SessionData) {
	if session != nil {
		ua.sessions.Evict(session.ID)
	}
	ua.sessionManager.ClearSessionCookie(w)
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", LoginPath)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// SessionFromContext извлекает SessionData из контекста запроса.
// Возвращает nil если сессия не найдена (не прошёл через UIAuth middleware).
func SessionFromContext(ctx context.Context) *auth.SessionData {
	session, ok := ctx.Value(ContextKeyUISession).(*auth.SessionData)
	if !ok {
		return nil
	}
	return session
}

// StateFromContext извлекает состояние сессии (страницу списка PoC).
func StateFromContext(ctx context.Context) *service.SessionState {
	state, ok := ctx.Value(ContextKeySessionState).(*service.SessionState)
	if !ok {
		return nil
	}
	return state
}
