package pages

import (
	"net/url"
	"strconv"

	"github.com/a-h/templ"
)

// Pocs — страница списка PoC с панелью инструментов и редактором.
func Pocs(view View, data PocListData) templ.Component {
	return page(view, func(h *htmlWriter) {
		h.raw(`<section class="card" id="poc-list" data-version="`, strconv.FormatUint(data.Version, 10), `" data-events="/admin/events/pocs">`)
		pocToolbar(h, data)

		if data.Error != "" {
			h.raw(`<div class="flash flash-error">`)
			h.t("pocs.load_error")
			h.raw(`: `)
			h.text(data.Error)
			h.raw(`</div>`)
		}

		pocTable(h, data.Rows)

		pager(h, data.Total, data.Page, data.PageCount, func(p int) string {
			q := url.Values{
				"q":    {data.Filter},
				"size": {itoa(data.PageSize)},
				"page": {itoa(p)},
			}
			return "/admin/pocs?" + q.Encode()
		})
		h.raw(`</section>`)

		if data.Editor != nil {
			pocEditor(h, data.Editor)
		}
	})
}

// pocToolbar — поиск, размер страницы, создание и импорт.
func pocToolbar(h *htmlWriter, data PocListData) {
	uploading := data.ImportState == "uploading"

	h.raw(`<div class="toolbar"><form method="get" action="/admin/pocs" class="inline"><input type="search" name="q" value="`)
	h.text(data.Filter)
	h.raw(`" placeholder="`)
	h.t("pocs.search")
	h.raw(`"><select name="size">`)
	for _, size := range data.PageSizes {
		h.raw(`<option value="`, itoa(size), `"`)
		h.attrIf(size == data.PageSize, "selected")
		h.raw(`>`)
		h.tf("pocs.per_page", size)
		h.raw(`</option>`)
	}
	h.raw(`</select><button type="submit">`)
	h.t("pocs.search_button")
	h.raw(`</button></form><a class="button primary" href="/admin/pocs/new">`)
	h.t("pocs.new")
	h.raw(`</a>`)

	h.raw(`<form method="post" action="/admin/pocs/import" enctype="multipart/form-data" class="inline"><input type="file" name="file" required`)
	h.attrIf(uploading, "disabled")
	h.raw(`><button type="submit"`)
	h.attrIf(uploading, "disabled")
	h.raw(`>`)
	h.t("pocs.import")
	h.raw(`</button><small class="muted">`)
	h.tf("pocs.import_limit", formatSize(data.MaxFileSize))
	h.raw(`</small></form></div>`)
}

// pocTable — таблица строк с флажками массового удаления.
func pocTable(h *htmlWriter, rows []PocRow) {
	h.raw(`<form method="post" action="/admin/pocs/bulk-delete" id="bulk-form"><table class="grid"><thead><tr><th class="check"><input type="checkbox" data-check-all="ids"></th><th>`)
	h.t("pocs.name")
	h.raw(`</th><th>`)
	h.t("pocs.level")
	h.raw(`</th><th>`)
	h.t("pocs.time")
	h.raw(`</th><th class="actions">`)
	h.t("pocs.actions")
	h.raw(`</th></tr></thead><tbody>`)

	for _, row := range rows {
		h.raw(`<tr><td class="check"><input type="checkbox" name="ids" value="`)
		h.text(row.ID)
		h.raw(`"></td><td>`)
		h.text(row.Name)
		h.raw(`</td><td><span class="level level-`, itoa(row.Tier), `">`)
		h.t("level." + row.Level)
		h.raw(`</span></td><td>`)
		h.text(formatTime(row.Time))
		h.raw(`</td><td class="actions"><a href="`)
		h.href("/admin/pocs/" + url.PathEscape(row.ID) + "/edit")
		h.raw(`">`)
		h.t("pocs.edit")
		h.raw(`</a><button type="submit" class="link danger" formaction="`)
		h.href("/admin/pocs/" + url.PathEscape(row.ID) + "/delete")
		h.raw(`" data-confirm="`)
		h.t("pocs.delete_confirm")
		h.raw(`">`)
		h.t("pocs.delete")
		h.raw(`</button></td></tr>`)
	}
	if len(rows) == 0 {
		h.raw(`<tr><td colspan="5" class="empty">`)
		h.t("pocs.empty")
		h.raw(`</td></tr>`)
	}

	h.raw(`</tbody></table><div class="toolbar"><label class="inline"><input type="checkbox" name="confirm" value="yes"> `)
	h.t("pocs.bulk_confirm")
	h.raw(`</label><button type="submit" class="danger">`)
	h.t("pocs.bulk_delete")
	h.raw(`</button></div></form>`)
}

// pocEditor — форма редактирования черновика. Пока тело не загружено,
// форма помечает его как неизменённое.
func pocEditor(h *htmlWriter, ed *EditorData) {
	h.raw(`<section class="card editor"><h2>`)
	if ed.IsNew {
		h.t("editor.create")
	} else {
		h.t("editor.edit")
	}
	h.raw(`</h2>`)
	if ed.Error != "" {
		h.raw(`<div class="flash flash-error">`)
		h.text(ed.Error)
		h.raw(`</div>`)
	}

	h.raw(`<form method="post" action="/admin/pocs/save" class="stack"><label>`)
	h.t("pocs.name")
	h.raw(`<input type="text" name="name" value="`)
	h.text(ed.Name)
	h.raw(`" required></label><label>`)
	h.t("pocs.level")
	h.raw(`<select name="level">`)
	for _, lvl := range ed.Levels {
		h.raw(`<option value="`)
		h.text(lvl)
		h.raw(`"`)
		h.attrIf(lvl == ed.Level, "selected")
		h.raw(`>`)
		h.t("level." + lvl)
		h.raw(`</option>`)
	}
	h.raw(`</select></label><label>`)
	h.t("editor.content")
	if ed.ContentLoaded {
		h.raw(`<textarea name="content" rows="18" spellcheck="false">`)
		h.text(ed.Content)
		h.raw(`</textarea>`)
	} else {
		h.raw(`<textarea name="content" rows="18" spellcheck="false" placeholder="`)
		h.t("editor.content_loading")
		h.raw(`"></textarea><input type="hidden" name="content_unchanged" value="1">`)
	}
	h.raw(`</label><div class="toolbar"><button type="submit" class="primary">`)
	h.t("editor.save")
	h.raw(`</button><button type="submit" formaction="/admin/pocs/editor/close" formnovalidate>`)
	h.t("editor.close")
	h.raw(`</button></div></form></section>`)
}
