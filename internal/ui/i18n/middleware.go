package i18n

import (
	"net/http"
)

// LangCookieName — cookie с языком, выбранным в шапке консоли.
const LangCookieName = "lang"

// langCookieMaxAge — выбор языка помнится год.
const langCookieMaxAge = 365 * 24 * 60 * 60

// Middleware кладёт язык запроса в контекст и сообщает его в Content-Language.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := RequestLanguage(r)
			w.Header().Set("Content-Language", lang)
			w.Header().Add("Vary", "Accept-Language, Cookie")
			next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), lang)))
		})
	}
}

// RequestLanguage выбирает язык: cookie lang, затем Accept-Language,
// затем DefaultLang. Неподдерживаемое значение cookie игнорируется.
func RequestLanguage(r *http.Request) string {
	if c, err := r.Cookie(LangCookieName); err == nil && IsSupported(c.Value) {
		return c.Value
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}
	return DefaultLang
}

// SetLangCookie запоминает выбор языка. Cookie доступна JS (app.js читает язык).
func SetLangCookie(w http.ResponseWriter, lang string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   langCookieMaxAge,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}
