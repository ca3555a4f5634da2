// pocs.go — JSON API записей PoC: /api/v1/pocs.
// Каждый запрос работает со своей страницей списка, авторизованной Bearer-токеном
// вызывающего; токен пробрасывается в PoC API без изменений.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/poc-admin/internal/api/errors"
	"github.com/bigkaa/poc-admin/internal/api/middleware"
	"github.com/bigkaa/poc-admin/internal/auth"
	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/domain/severity"
	"github.com/bigkaa/poc-admin/internal/importer"
	"github.com/bigkaa/poc-admin/internal/page"
	"github.com/bigkaa/poc-admin/internal/repository"
	"github.com/bigkaa/poc-admin/internal/selection"
	"github.com/bigkaa/poc-admin/internal/service"
	"github.com/bigkaa/poc-admin/internal/table"
)

// multipartOverhead — запас на заголовки multipart сверх лимита файла.
const multipartOverhead = 1 << 20

// PocHandler — обработчик JSON API записей PoC.
type PocHandler struct {
	newPage     service.PageFactory
	history     *service.ImportHistoryService
	maxFileSize int64
	logger      *slog.Logger
}

// NewPocHandler создаёт обработчик JSON API.
// history может быть nil — тогда /api/v1/imports отвечает 503.
func NewPocHandler(newPage service.PageFactory, history *service.ImportHistoryService, maxFileSize int64, logger *slog.Logger) *PocHandler {
	if maxFileSize <= 0 {
		maxFileSize = importer.DefaultMaxFileSize
	}
	return &PocHandler{
		newPage:     newPage,
		history:     history,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "poc_api")),
	}
}

// Routes регистрирует маршруты JSON API (под BearerAuth).
func (h *PocHandler) Routes(r chi.Router) {
	r.Get("/pocs", h.List)
	r.Post("/pocs", h.Save)
	r.Post("/pocs/bulk-delete", h.BulkDelete)
	r.Post("/pocs/import", h.Import)
	r.Get("/pocs/{id}/content", h.Content)
	r.Delete("/pocs/{id}", h.Delete)
	r.Get("/imports", h.Imports)
}

// pageFor создаёт страницу для токена запроса.
func (h *PocHandler) pageFor(r *http.Request) *page.ListPage {
	ctx := r.Context()
	tokens := auth.NewMemoryStore(middleware.TokenFromContext(ctx))
	return h.newPage(tokens, middleware.SubjectFromContext(ctx))
}

// List — GET /api/v1/pocs?q=&page=&size=
func (h *PocHandler) List(w http.ResponseWriter, r *http.Request) {
	p := h.pageFor(r)
	defer p.Close()

	q, err := parseQuery(r, p.Table().Query())
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if err := p.Load(r.Context(), q); err != nil {
		apierrors.FromError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, NewTableStateDTO(p.Table().Snapshot()))
}

// contentResponse — тело PoC.
type contentResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Content — GET /api/v1/pocs/{id}/content
func (h *PocHandler) Content(w http.ResponseWriter, r *http.Request) {
	p := h.pageFor(r)
	defer p.Close()

	id := chi.URLParam(r, "id")
	if _, err := p.Edit(r.Context(), model.Record{ID: id}); err != nil {
		apierrors.FromError(w, err)
		return
	}
	if err := p.WaitContent(r.Context()); err != nil {
		apierrors.FromError(w, err)
		return
	}

	draft, _ := p.Draft()
	writeJSON(w, http.StatusOK, contentResponse{ID: id, Content: draft.ContentText()})
}

// saveRequest — тело POST /api/v1/pocs. Пустой ID — создание.
type saveRequest struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Level   string  `json:"level"`
	Content *string `json:"content"`
}

// Save — POST /api/v1/pocs (создание или обновление).
func (h *PocHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	// Уровень по умолчанию только у новой записи: обновление без level
	// понизило бы критичность существующей.
	level := severity.Info
	switch {
	case req.Level != "":
		parsed, err := severity.Parse(req.Level)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		level = parsed
	case req.ID != "":
		apierrors.ValidationError(w, "level: обязателен при обновлении записи")
		return
	}

	p := h.pageFor(r)
	defer p.Close()

	if req.ID == "" {
		p.Create()
	} else {
		if _, err := p.Edit(r.Context(), model.Record{ID: req.ID}); err != nil {
			apierrors.FromError(w, err)
			return
		}
		// Тело из запроса важнее загруженного; ошибка загрузки не мешает сохранению.
		if req.Content == nil {
			if err := p.WaitContent(r.Context()); err != nil {
				apierrors.FromError(w, err)
				return
			}
		}
	}
	if err := p.UpdateDraft(req.Name, level, req.Content); err != nil {
		apierrors.FromError(w, err)
		return
	}
	if err := p.SaveDraft(r.Context()); err != nil {
		apierrors.FromError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, NewTableStateDTO(p.Table().Snapshot()))
}

// Delete — DELETE /api/v1/pocs/{id}
func (h *PocHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := h.pageFor(r)
	defer p.Close()

	if err := p.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		apierrors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewTableStateDTO(p.Table().Snapshot()))
}

// bulkDeleteRequest — тело POST /api/v1/pocs/bulk-delete.
type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// bulkDeleteResponse — переданные на удаление ID и состояние таблицы.
type bulkDeleteResponse struct {
	Deleted []string      `json:"deleted"`
	State   TableStateDTO `json:"state"`
}

// BulkDelete — POST /api/v1/pocs/bulk-delete. Запрос сам по себе является подтверждением.
func (h *PocHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	p := h.pageFor(r)
	defer p.Close()

	src := make(selection.Static[model.Record], 0, len(req.IDs))
	for _, id := range req.IDs {
		src = append(src, model.Record{ID: id})
	}

	ids, err := p.BulkDelete(r.Context(), src, page.Confirmed)
	if err != nil {
		apierrors.FromError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkDeleteResponse{
		Deleted: ids,
		State:   NewTableStateDTO(p.Table().Snapshot()),
	})
}

// importResponse — исход импорта.
type importResponse struct {
	Outcome   string `json:"outcome"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	Refreshed bool   `json:"refreshed"`
}

// Import — POST /api/v1/pocs/import (multipart, поле file).
func (h *PocHandler) Import(w http.ResponseWriter, r *http.Request) {
	file, err := ReadUpload(w, r, "file", h.maxFileSize)
	if err != nil {
		apierrors.FromError(w, err)
		return
	}

	p := h.pageFor(r)
	defer p.Close()

	res, err := p.Import(r.Context(), file)
	if err != nil {
		apierrors.FromError(w, err)
		return
	}

	status := http.StatusOK
	switch res.Outcome {
	case model.ImportOutcomeRejected:
		status = http.StatusUnprocessableEntity
	case model.ImportOutcomeAuthExpired:
		status = http.StatusUnauthorized
	case model.ImportOutcomeError:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, importResponse{
		Outcome:   res.Outcome,
		Code:      res.Code,
		Message:   res.Message,
		FileName:  res.FileName,
		FileSize:  res.FileSize,
		Refreshed: res.Refreshed,
	})
}

// importRecordDTO — запись журнала импортов.
type importRecordDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	Outcome   string `json:"outcome"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Refreshed bool   `json:"refreshed"`
	CreatedAt string `json:"created_at"`
}

// importListResponse — страница журнала импортов.
type importListResponse struct {
	Items  []importRecordDTO `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// Imports — GET /api/v1/imports?outcome=&limit=&offset=
func (h *PocHandler) Imports(w http.ResponseWriter, r *http.Request) {
	if !h.history.Enabled() {
		apierrors.ServiceUnavailable(w, service.ErrHistoryDisabled.Error())
		return
	}

	filter := repository.ImportHistoryFilter{
		Outcome: r.URL.Query().Get("outcome"),
		Limit:   queryInt(r, "limit", 50),
		Offset:  queryInt(r, "offset", 0),
	}
	if filter.Limit < 1 || filter.Limit > 500 || filter.Offset < 0 {
		apierrors.ValidationError(w, "limit должен быть 1..500, offset >= 0")
		return
	}

	records, total, err := h.history.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Ошибка чтения журнала импортов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка чтения журнала импортов")
		return
	}

	resp := importListResponse{
		Items:  make([]importRecordDTO, 0, len(records)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, rec := range records {
		resp.Items = append(resp.Items, importRecordDTO{
			ID:        rec.ID.String(),
			Username:  rec.Username,
			FileName:  rec.FileName,
			FileSize:  rec.FileSize,
			Outcome:   rec.Outcome,
			Code:      rec.Code,
			Message:   rec.Message,
			Refreshed: rec.Refreshed,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Вспомогательные функции ---

// ReadUpload читает файл из multipart-поля. Файл больше maxSize отклоняется
// с importer.ErrFileTooLarge, отсутствующее поле — с importer.ErrEmptyFileName.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (importer.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return importer.File{}, importer.ErrFileTooLarge
		}
		return importer.File{}, fmt.Errorf("%w: %v", importer.ErrEmptyFileName, err)
	}

	f, header, err := r.FormFile(field)
	if err != nil {
		return importer.File{}, fmt.Errorf("%w: %v", importer.ErrEmptyFileName, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return importer.File{}, fmt.Errorf("чтение файла %s: %w", header.Filename, err)
	}
	if int64(len(data)) > maxSize {
		return importer.File{}, fmt.Errorf("%w: %s > %d байт", importer.ErrFileTooLarge, header.Filename, maxSize)
	}
	return importer.File{Name: header.Filename, Data: data}, nil
}

// parseQuery разбирает параметры q/page/size поверх текущего запроса таблицы.
// search принимается как устаревший синоним q.
func parseQuery(r *http.Request, current table.Query) (table.Query, error) {
	values := r.URL.Query()
	q := current
	filter := values.Get("q")
	if !values.Has("q") {
		filter = values.Get("search")
	}
	q.Filter = strings.TrimSpace(filter)

	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("page: некорректное число %q", v)
		}
		q.Page = n
	}
	if v := values.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("size: некорректное число %q", v)
		}
		q.PageSize = n
	}
	return q, nil
}

// queryInt возвращает целочисленный параметр запроса или значение по умолчанию.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
