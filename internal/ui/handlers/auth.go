// auth.go — вход по логину и паролю PoC API и выход из Admin UI.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bigkaa/poc-admin/internal/pocclient"
	"github.com/bigkaa/poc-admin/internal/ui/auth"
	"github.com/bigkaa/poc-admin/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/poc-admin/internal/ui/middleware"
	"github.com/bigkaa/poc-admin/internal/ui/pages"
)

// LoginClient — вход в PoC API.
type LoginClient interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// AuthHandler — обработчики аутентификации Admin UI.
type AuthHandler struct {
	client         LoginClient
	sessionManager *auth.SessionManager
	uiAuth         *uimiddleware.UIAuth
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthHandler создаёт новый AuthHandler.
func NewAuthHandler(
	client LoginClient,
	sessionManager *auth.SessionManager,
	uiAuth *uimiddleware.UIAuth,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		client:         client,
		sessionManager: sessionManager,
		uiAuth:         uiAuth,
		now:            time.Now,
		logger:         logger.With(slog.String("component", "ui_auth")),
	}
}

// HandleLoginPage — GET /admin/login
// Пользователь с действующей сессией сразу попадает в список PoC.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if session, err := h.sessionManager.GetSessionFromRequest(r); err == nil && session != nil && !session.IsExpired(h.now()) {
		http.Redirect(w, r, listPath, http.StatusFound)
		return
	}
	h.renderLogin(w, r, http.StatusOK, pages.LoginData{})
}

// HandleLogin — POST /admin/login
// Получает токен PoC API и сохраняет его в зашифрованной cookie-сессии.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, pages.LoginData{Error: i18n.T(r.Context(), "login.invalid")})
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		h.renderLogin(w, r, http.StatusBadRequest, pages.LoginData{
			Username: username,
			Error:    i18n.T(r.Context(), "login.invalid"),
		})
		return
	}

	token, err := h.client.Login(r.Context(), username, password)
	if err != nil {
		h.logger.Warn("Ошибка входа",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		status := http.StatusBadGateway
		var apiErr *pocclient.APIError
		if errors.As(err, &apiErr) || errors.Is(err, pocclient.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		h.renderLogin(w, r, status, pages.LoginData{
			Username: username,
			Error:    i18n.Tf(r.Context(), "login.failed", loginErrorText(err)),
		})
		return
	}

	session := auth.NewSessionData(token, username, h.now(), h.sessionManager.MaxAge())
	if err := h.sessionManager.SetSessionCookie(w, session); err != nil {
		h.logger.Error("Ошибка сохранения сессии", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Пользователь вошёл", slog.String("username", username))
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// HandleLogout — POST /admin/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	session := uimiddleware.SessionFromContext(r.Context())
	if session != nil {
		h.logger.Info("Пользователь вышел", slog.String("username", session.Username))
	}
	h.uiAuth.EndSession(w, r, session)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data pages.LoginData) {
	view := pages.View{Title: "title.login"}
	renderPage(w, r, h.logger, status, "login", pages.Login(view, data))
}

// loginErrorText — сообщение PoC API без служебного префикса.
func loginErrorText(err error) string {
	var apiErr *pocclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
