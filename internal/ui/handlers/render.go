// Пакет handlers — HTTP-обработчики Admin UI.
// render.go — общие функции отображения страниц и flash-сообщений.
package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/bigkaa/poc-admin/internal/service"
	"github.com/bigkaa/poc-admin/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/poc-admin/internal/ui/middleware"
	"github.com/bigkaa/poc-admin/internal/ui/pages"
)

// Виды flash-сообщений.
const (
	flashSuccess = "success"
	flashError   = "error"
	flashInfo    = "info"
)

// listPath — страница списка PoC.
const listPath = "/admin/pocs"

// renderPage отображает templ-компонент. Ошибка рендеринга — 500 без частичного ответа.
func renderPage(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, name string, page templ.Component) {
	var buf bytes.Buffer
	if err := page.Render(r.Context(), &buf); err != nil {
		logger.Error("Ошибка отображения страницы",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// baseView заполняет общие поля layout для аутентифицированной страницы.
func baseView(r *http.Request, title string, historyEnabled bool, st *service.SessionState) pages.View {
	view := pages.View{
		Title:          title,
		Lang:           i18n.LangFromContext(r.Context()),
		HistoryEnabled: historyEnabled,
	}
	if session := uimiddleware.SessionFromContext(r.Context()); session != nil {
		view.Username = session.Username
	}
	if st != nil {
		if f := st.PopFlash(); f != nil {
			view.Flash = &pages.Flash{Kind: f.Kind, Message: f.Message}
		}
	}
	return view
}

// redirectToList — PRG: после POST возвращаемся к списку.
func redirectToList(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}
