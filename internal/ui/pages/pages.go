// Пакет pages — HTML-страницы Admin UI в виде templ-компонентов.
// Каждая страница оборачивается в общий layout; строки переводятся
// по языку из контекста запроса.
package pages

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/bigkaa/poc-admin/internal/ui/i18n"
)

// View — общие данные layout.
type View struct {
	// Title — ключ перевода заголовка страницы
	Title          string
	Username       string
	Lang           string
	Languages      []string
	Flash          *Flash
	HistoryEnabled bool
}

// Flash — сообщение над содержимым страницы.
type Flash struct {
	Kind    string
	Message string
}

// LoginData — страница входа.
type LoginData struct {
	Username string
	Error    string
}

// PocRow — строка таблицы PoC.
type PocRow struct {
	ID    string
	Name  string
	Level string
	Tier  int
	Time  time.Time
}

// EditorData — открытый редактор PoC.
type EditorData struct {
	ID            string
	Name          string
	Level         string
	Levels        []string
	Content       string
	ContentLoaded bool
	IsNew         bool
	Error         string
}

// PocListData — страница списка PoC.
type PocListData struct {
	Filter      string
	Page        int
	PageSize    int
	PageSizes   []int
	PageCount   int
	Total       int
	Version     uint64
	Error       string
	Rows        []PocRow
	Editor      *EditorData
	ImportState string
	MaxFileSize int64
}

// ImportItem — запись журнала импортов.
type ImportItem struct {
	Username  string
	FileName  string
	FileSize  int64
	Outcome   string
	Code      int
	Message   string
	Refreshed bool
	CreatedAt time.Time
}

// ImportListData — страница журнала импортов.
type ImportListData struct {
	Outcome   string
	Outcomes  []string
	Page      int
	PageCount int
	Total     int
	Items     []ImportItem
}

// htmlWriter пишет разметку и запоминает первую ошибку записи.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

// raw пишет разметку без экранирования.
func (h *htmlWriter) raw(parts ...string) {
	for _, s := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, s)
	}
}

// text пишет экранированный текст (также годится для значений атрибутов).
func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// href пишет безопасный URL для атрибута href/action.
func (h *htmlWriter) href(u string) {
	h.text(string(templ.URL(u)))
}

// t пишет перевод ключа.
func (h *htmlWriter) t(key string) {
	h.text(i18n.T(h.ctx, key))
}

// tf пишет перевод ключа с форматированием.
func (h *htmlWriter) tf(key string, args ...any) {
	h.text(i18n.Tf(h.ctx, key, args...))
}

// attrIf пишет атрибут без значения при выполнении условия.
func (h *htmlWriter) attrIf(cond bool, name string) {
	if cond {
		h.raw(" ", name)
	}
}

// component выполняет вложенный компонент.
func (h *htmlWriter) component(c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(h.ctx, h.w)
}

// page собирает компонент страницы внутри layout.
func page(view View, content func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if view.Lang == "" {
			view.Lang = i18n.LangFromContext(ctx)
		}
		if view.Languages == nil {
			view.Languages = i18n.Languages
		}
		body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			h := &htmlWriter{ctx: ctx, w: w}
			content(h)
			return h.err
		})
		return layout(view, body).Render(ctx, w)
	})
}

// layout — общий каркас страницы: шапка, flash, содержимое.
func layout(view View, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{ctx: ctx, w: w}
		h.raw(`<!DOCTYPE html>`, "\n", `<html lang="`)
		h.text(view.Lang)
		h.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		h.t(view.Title)
		h.raw(` · PoC Admin</title><link rel="stylesheet" href="/static/css/app.css"></head><body>`)

		h.raw(`<header class="topbar"><a class="brand" href="/admin/pocs">PoC Admin</a>`)
		if view.Username != "" {
			h.raw(`<nav><a href="/admin/pocs">`)
			h.t("nav.pocs")
			h.raw(`</a>`)
			if view.HistoryEnabled {
				h.raw(`<a href="/admin/imports">`)
				h.t("nav.imports")
				h.raw(`</a>`)
			}
			h.raw(`</nav>`)
		}
		h.raw(`<div class="topbar-right"><form method="post" action="/admin/set-language" class="inline"><select name="lang" onchange="this.form.submit()">`)
		for _, lang := range view.Languages {
			h.raw(`<option value="`)
			h.text(lang)
			h.raw(`"`)
			h.attrIf(lang == view.Lang, "selected")
			h.raw(`>`)
			h.t("lang." + lang)
			h.raw(`</option>`)
		}
		h.raw(`</select></form>`)
		if view.Username != "" {
			h.raw(`<span class="user">`)
			h.text(view.Username)
			h.raw(`</span><form method="post" action="/admin/logout" class="inline"><button type="submit" class="link">`)
			h.t("nav.logout")
			h.raw(`</button></form>`)
		}
		h.raw(`</div></header><main>`)

		if view.Flash != nil {
			h.raw(`<div class="flash flash-`)
			h.text(view.Flash.Kind)
			h.raw(`" role="status">`)
			h.text(view.Flash.Message)
			h.raw(`</div>`)
		}
		h.component(content)

		h.raw(`</main><script src="/static/js/app.js" defer></script></body></html>`)
		return h.err
	})
}

// pager — строка пагинации; link строит URL страницы.
func pager(h *htmlWriter, total, current, count int, link func(page int) string) {
	h.raw(`<nav class="pager"><span>`)
	h.tf("pocs.total", total)
	h.raw(`</span>`)
	if current > 1 {
		h.raw(`<a href="`)
		h.href(link(current - 1))
		h.raw(`">&larr; `)
		h.t("pager.prev")
		h.raw(`</a>`)
	}
	h.raw(`<span>`)
	h.tf("pager.position", current, count)
	h.raw(`</span>`)
	if current < count {
		h.raw(`<a href="`)
		h.href(link(current + 1))
		h.raw(`">`)
		h.t("pager.next")
		h.raw(` &rarr;</a>`)
	}
	h.raw(`</nav>`)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatSize форматирует размер в байтах.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
