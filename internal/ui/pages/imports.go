package pages

import (
	"net/url"

	"github.com/a-h/templ"
)

// Imports — страница журнала импортов.
func Imports(view View, data ImportListData) templ.Component {
	return page(view, func(h *htmlWriter) {
		h.raw(`<section class="card"><div class="toolbar"><h1>`)
		h.t("imports.title")
		h.raw(`</h1><form method="get" action="/admin/imports" class="inline"><select name="outcome" onchange="this.form.submit()"><option value="">`)
		h.t("imports.all")
		h.raw(`</option>`)
		for _, o := range data.Outcomes {
			h.raw(`<option value="`)
			h.text(o)
			h.raw(`"`)
			h.attrIf(o == data.Outcome, "selected")
			h.raw(`>`)
			h.t("outcome." + o)
			h.raw(`</option>`)
		}
		h.raw(`</select></form></div>`)

		h.raw(`<table class="grid"><thead><tr>`)
		for _, key := range []string{"imports.time", "imports.user", "imports.file", "imports.size", "imports.outcome", "imports.message"} {
			h.raw(`<th>`)
			h.t(key)
			h.raw(`</th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for _, it := range data.Items {
			h.raw(`<tr><td>`)
			h.text(formatTime(it.CreatedAt))
			h.raw(`</td><td>`)
			h.text(it.Username)
			h.raw(`</td><td>`)
			h.text(it.FileName)
			h.raw(`</td><td>`)
			h.text(formatSize(it.FileSize))
			h.raw(`</td><td><span class="outcome outcome-`)
			h.text(it.Outcome)
			h.raw(`">`)
			h.t("outcome." + it.Outcome)
			h.raw(`</span>`)
			if it.Code != 0 {
				h.raw(` (`, itoa(it.Code), `)`)
			}
			h.raw(`</td><td>`)
			h.text(it.Message)
			h.raw(`</td></tr>`)
		}
		if len(data.Items) == 0 {
			h.raw(`<tr><td colspan="6" class="empty">`)
			h.t("imports.empty")
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table>`)

		pager(h, data.Total, data.Page, data.PageCount, func(p int) string {
			q := url.Values{"page": {itoa(p)}}
			if data.Outcome != "" {
				q.Set("outcome", data.Outcome)
			}
			return "/admin/imports?" + q.Encode()
		})
		h.raw(`</section>`)
	})
}
