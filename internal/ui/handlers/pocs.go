// pocs.go — страница списка PoC: таблица, редактор, удаление и импорт.
// Состояние страницы живёт в сессии (service.SessionState); каждое действие
// выполняется над ним и возвращает пользователя на список (POST-redirect-GET).
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apihandlers "github.com/bigkaa/poc-admin/internal/api/handlers"
	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/domain/severity"
	"github.com/bigkaa/poc-admin/internal/importer"
	"github.com/bigkaa/poc-admin/internal/service"
	"github.com/bigkaa/poc-admin/internal/table"
	"github.com/bigkaa/poc-admin/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/poc-admin/internal/ui/middleware"
	"github.com/bigkaa/poc-admin/internal/ui/pages"
)

// contentWait — сколько список ждёт тело PoC для открытого редактора.
const contentWait = 3 * time.Second

// PocsHandler — обработчики страницы списка PoC.
type PocsHandler struct {
	uiAuth         *uimiddleware.UIAuth
	maxFileSize    int64
	historyEnabled bool
	logger         *slog.Logger
}

// NewPocsHandler создаёт обработчик страницы списка PoC.
func NewPocsHandler(
	uiAuth *uimiddleware.UIAuth,
	maxFileSize int64,
	historyEnabled bool,
	logger *slog.Logger,
) *PocsHandler {
	if maxFileSize <= 0 {
		maxFileSize = importer.DefaultMaxFileSize
	}
	return &PocsHandler{
		uiAuth:         uiAuth,
		maxFileSize:    maxFileSize,
		historyEnabled: historyEnabled,
		logger:         logger.With(slog.String("component", "ui_pocs")),
	}
}

// Routes регистрирует маршруты страницы (под UIAuth).
func (h *PocsHandler) Routes(r chi.Router) {
	r.Get("/pocs", h.HandleList)
	r.Get("/pocs/state", h.HandleState)
	r.Get("/pocs/new", h.HandleNew)
	r.Get("/pocs/{id}/edit", h.HandleEdit)
	r.Post("/pocs/save", h.HandleSave)
	r.Post("/pocs/editor/close", h.HandleCloseEditor)
	r.Post("/pocs/{id}/delete", h.HandleDelete)
	r.Post("/pocs/bulk-delete", h.HandleBulkDelete)
	r.Post("/pocs/import", h.HandleImport)
}

// HandleList — GET /admin/pocs?q=&page=&size=
// Без параметров перезагружает текущий запрос страницы.
func (h *PocsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	p := st.Page

	q, err := listQuery(r, p.Table().Query())
	if err != nil {
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.invalid_query", err.Error()))
		q = p.Table().Query()
	}
	if err := p.Load(r.Context(), q); err != nil {
		if errors.Is(err, table.ErrInvalidPage) || errors.Is(err, table.ErrInvalidPageSize) {
			st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.invalid_query", err.Error()))
			_ = p.Refresh(r.Context())
		}
		// Ошибка загрузки отображается из состояния таблицы.
	}
	if h.sessionEnded(w, r, st) {
		return
	}

	var editorErr string
	if draft, open := p.Draft(); open && !draft.IsNew() && !draft.ContentLoaded() {
		ctx, cancel := context.WithTimeout(r.Context(), contentWait)
		err := p.WaitContent(ctx)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			editorErr = err.Error()
		}
		if h.sessionEnded(w, r, st) {
			return
		}
	}

	h.renderList(w, r, st, editorErr)
}

// HandleState — GET /admin/pocs/state: текущий снимок таблицы без загрузки.
func (h *PocsHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(apihandlers.NewTableStateDTO(st.Page.Table().Snapshot()))
}

// HandleNew — GET /admin/pocs/new: пустой черновик.
func (h *PocsHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	st.Page.Create()
	redirectToList(w, r)
}

// HandleEdit — GET /admin/pocs/{id}/edit
// Редактор открывается сразу; тело PoC догружается в фоне.
func (h *PocsHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rec, ok := st.Page.FindRow(id)
	if !ok {
		rec = model.Record{ID: id}
	}
	if _, err := st.Page.Edit(r.Context(), rec); err != nil {
		st.SetFlash(flashError, err.Error())
	}
	redirectToList(w, r)
}

// HandleSave — POST /admin/pocs/save
func (h *PocsHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	p := st.Page

	if err := r.ParseForm(); err != nil {
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.save_failed", err.Error()))
		redirectToList(w, r)
		return
	}

	level, err := severity.Parse(r.PostForm.Get("level"))
	if err != nil {
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.save_failed", err.Error()))
		redirectToList(w, r)
		return
	}

	// Тело не загружено и не введено — сохраняется прежнее.
	var content *string
	text := r.PostForm.Get("content")
	if r.PostForm.Get("content_unchanged") == "" || text != "" {
		content = &text
	}

	if err := p.UpdateDraft(strings.TrimSpace(r.PostForm.Get("name")), level, content); err != nil {
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.save_failed", err.Error()))
		redirectToList(w, r)
		return
	}

	if err := p.SaveDraft(r.Context()); err != nil {
		if h.sessionEnded(w, r, st) {
			return
		}
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.save_failed", err.Error()))
		redirectToList(w, r)
		return
	}

	st.SetFlash(flashSuccess, i18n.T(r.Context(), "flash.saved"))
	redirectToList(w, r)
}

// HandleCloseEditor — POST /admin/pocs/editor/close
func (h *PocsHandler) HandleCloseEditor(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	st.Page.CloseEditor()
	redirectToList(w, r)
}

// HandleDelete — POST /admin/pocs/{id}/delete
func (h *PocsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	id := chi.URLParam(r, "id")

	err := st.Page.Delete(r.Context(), id)
	if h.sessionEnded(w, r, st) {
		return
	}
	if err != nil {
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.delete_failed", err.Error()))
	} else {
		st.SetFlash(flashSuccess, i18n.T(r.Context(), "flash.deleted"))
	}
	redirectToList(w, r)
}

// HandleBulkDelete — POST /admin/pocs/bulk-delete
// Подтверждение — отмеченный флажок confirm=yes. Пустой выбор с подтверждением
// передаётся в PoC API как пустой список.
func (h *PocsHandler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	p := st.Page

	if err := r.ParseForm(); err != nil {
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.delete_failed", err.Error()))
		redirectToList(w, r)
		return
	}

	confirmed := r.PostForm.Get("confirm") == "yes"
	confirm := func(context.Context) (bool, error) { return confirmed, nil }

	ids, err := p.BulkDelete(r.Context(), p.SelectionOf(r.PostForm["ids"]), confirm)
	if h.sessionEnded(w, r, st) {
		return
	}
	switch {
	case !confirmed:
		st.SetFlash(flashInfo, i18n.T(r.Context(), "flash.bulk_cancelled"))
	case err != nil:
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.delete_failed", err.Error()))
	default:
		st.SetFlash(flashSuccess, i18n.Tf(r.Context(), "flash.bulk_deleted", len(ids)))
	}
	redirectToList(w, r)
}

// HandleImport — POST /admin/pocs/import (multipart, поле file).
func (h *PocsHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())

	file, err := apihandlers.ReadUpload(w, r, "file", h.maxFileSize)
	if err != nil {
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.import_invalid", err.Error()))
		redirectToList(w, r)
		return
	}

	res, err := st.Page.Import(r.Context(), file)
	if err != nil {
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.import_invalid", err.Error()))
		redirectToList(w, r)
		return
	}
	if h.sessionEnded(w, r, st) {
		return
	}

	switch res.Outcome {
	case model.ImportOutcomeSuccess:
		st.SetFlash(flashSuccess, i18n.Tf(r.Context(), "flash.import_success", res.FileName, res.Message))
	case model.ImportOutcomeRejected:
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.import_rejected", res.FileName, res.Message))
	default:
		st.SetFlash(flashError, i18n.Tf(r.Context(), "flash.import_error", res.FileName, res.Message))
	}
	redirectToList(w, r)
}

// sessionEnded завершает сессию, если PoC API сообщил об истёкшей авторизации.
func (h *PocsHandler) sessionEnded(w http.ResponseWriter, r *http.Request, st *service.SessionState) bool {
	if !st.Tokens.Cleared() {
		return false
	}
	h.logger.Info("Авторизация PoC API истекла, сессия завершена",
		slog.String("username", st.Username),
	)
	h.uiAuth.EndSession(w, r, uimiddleware.SessionFromContext(r.Context()))
	return true
}

// renderList отображает текущее состояние страницы.
func (h *PocsHandler) renderList(w http.ResponseWriter, r *http.Request, st *service.SessionState, editorErr string) {
	p := st.Page
	snap := p.Table().Snapshot()

	data := pages.PocListData{
		Filter:      snap.Query.Filter,
		Page:        snap.Query.Page,
		PageSize:    snap.Query.PageSize,
		PageSizes:   p.Table().PageSizes(),
		PageCount:   table.PageCount(snap.Total, snap.Query.PageSize),
		Total:       snap.Total,
		Version:     snap.Version,
		Rows:        make([]pages.PocRow, 0, len(snap.Rows)),
		ImportState: p.Importer().State().String(),
		MaxFileSize: h.maxFileSize,
	}
	if snap.Err != nil {
		data.Error = snap.Err.Error()
	}
	for _, rec := range snap.Rows {
		data.Rows = append(data.Rows, pages.PocRow{
			ID:    rec.ID,
			Name:  rec.Name,
			Level: rec.Level.String(),
			Tier:  rec.Level.Tier(),
			Time:  rec.Time,
		})
	}
	if draft, open := p.Draft(); open {
		data.Editor = editorData(draft, editorErr)
	}

	view := baseView(r, "title.pocs", h.historyEnabled, st)
	renderPage(w, r, h.logger, http.StatusOK, "pocs", pages.Pocs(view, data))
}

// editorData — черновик для формы редактора.
func editorData(draft model.Record, errText string) *pages.EditorData {
	levels := make([]string, 0, len(severity.All()))
	for _, l := range severity.All() {
		levels = append(levels, l.String())
	}
	return &pages.EditorData{
		ID:            draft.ID,
		Name:          draft.Name,
		Level:         draft.Level.String(),
		Levels:        levels,
		Content:       draft.ContentText(),
		ContentLoaded: draft.IsNew() || draft.ContentLoaded(),
		IsNew:         draft.IsNew(),
		Error:         errText,
	}
}

// listQuery разбирает q/page/size поверх текущего запроса.
// Новый фильтр без явного номера страницы начинает с первой страницы.
func listQuery(r *http.Request, current table.Query) (table.Query, error) {
	values := r.URL.Query()
	q := current

	if values.Has("q") {
		filter := strings.TrimSpace(values.Get("q"))
		if filter != current.Filter && !values.Has("page") {
			q.Page = 1
		}
		q.Filter = filter
	}
	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return current, fmt.Errorf("page: некорректное число %q", v)
		}
		q.Page = n
	}
	if v := values.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return current, fmt.Errorf("size: некорректное число %q", v)
		}
		q.PageSize = n
	}
	return q, nil
}
