// auth.go — middleware Bearer-токена для JSON API PoC Admin.
// Подпись токена проверяет PoC API; middleware только извлекает токен,
// отклоняет заведомо просроченный и кладёт его в контекст запроса.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/poc-admin/internal/api/errors"
	"github.com/bigkaa/poc-admin/internal/auth"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyToken — Bearer-токен запроса.
	ContextKeyToken contextKey = "bearer_token"
	// ContextKeySubject — sub из токена (имя пользователя PoC API).
	ContextKeySubject contextKey = "token_subject"
)

// BearerAuth возвращает middleware, требующий заголовок Authorization: Bearer <token>.
// Токен без exp пропускается: срок проверит PoC API.
func BearerAuth(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				apierrors.Unauthorized(w, "Отсутствует Bearer-токен")
				return
			}

			if exp, hasExp := auth.TokenExpiry(token); hasExp && !now().Before(exp) {
				apierrors.Unauthorized(w, "Срок действия токена истёк")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyToken, token)
			ctx = context.WithValue(ctx, ContextKeySubject, auth.TokenSubject(token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из значения заголовка Authorization.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// TokenFromContext извлекает Bearer-токен из контекста запроса.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(ContextKeyToken).(string)
	return token
}

// SubjectFromContext извлекает sub токена из контекста запроса.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(ContextKeySubject).(string)
	return sub
}
