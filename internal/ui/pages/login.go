package pages

import (
	"github.com/a-h/templ"
)

// Login — страница входа.
func Login(view View, data LoginData) templ.Component {
	return page(view, func(h *htmlWriter) {
		h.raw(`<section class="card narrow"><h1>`)
		h.t("login.title")
		h.raw(`</h1>`)
		if data.Error != "" {
			h.raw(`<div class="flash flash-error">`)
			h.text(data.Error)
			h.raw(`</div>`)
		}
		h.raw(`<form method="post" action="/admin/login" class="stack"><label>`)
		h.t("login.username")
		h.raw(`<input type="text" name="username" value="`)
		h.text(data.Username)
		h.raw(`" autocomplete="username" required autofocus></label><label>`)
		h.t("login.password")
		h.raw(`<input type="password" name="password" autocomplete="current-password" required></label><button type="submit" class="primary">`)
		h.t("login.submit")
		h.raw(`</button></form></section>`)
	})
}
