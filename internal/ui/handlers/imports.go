// imports.go — страница журнала импортов PoC-файлов.
package handlers

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/repository"
	"github.com/bigkaa/poc-admin/internal/service"
	"github.com/bigkaa/poc-admin/internal/table"
	"github.com/bigkaa/poc-admin/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/poc-admin/internal/ui/middleware"
	"github.com/bigkaa/poc-admin/internal/ui/pages"
)

// importsPageSize — записей журнала на странице.
const importsPageSize = 20

// importOutcomes — исходы, доступные в фильтре.
var importOutcomes = []string{
	model.ImportOutcomeSuccess,
	model.ImportOutcomeRejected,
	model.ImportOutcomeAuthExpired,
	model.ImportOutcomeError,
}

// ImportsHandler — обработчик страницы журнала импортов.
type ImportsHandler struct {
	history *service.ImportHistoryService
	logger  *slog.Logger
}

// NewImportsHandler создаёт обработчик журнала импортов.
func NewImportsHandler(history *service.ImportHistoryService, logger *slog.Logger) *ImportsHandler {
	return &ImportsHandler{
		history: history,
		logger:  logger.With(slog.String("component", "ui_imports")),
	}
}

// HandleList — GET /admin/imports?outcome=&page=
// Без журнала (PA_DB_HOST не задан) — 404.
func (h *ImportsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.history.Enabled() {
		http.NotFound(w, r)
		return
	}
	st := uimiddleware.StateFromContext(r.Context())

	outcome := r.URL.Query().Get("outcome")
	if !slices.Contains(importOutcomes, outcome) {
		outcome = ""
	}
	pageNum, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || pageNum < 1 {
		pageNum = 1
	}

	data := pages.ImportListData{
		Outcome:   outcome,
		Outcomes:  importOutcomes,
		Page:      pageNum,
		PageCount: 1,
	}

	records, total, err := h.history.List(r.Context(), repository.ImportHistoryFilter{
		Outcome: outcome,
		Limit:   importsPageSize,
		Offset:  (pageNum - 1) * importsPageSize,
	})
	if err != nil {
		h.logger.Error("Ошибка чтения журнала импортов", slog.String("error", err.Error()))
		if st != nil {
			st.SetFlash(flashError, i18n.T(r.Context(), "flash.history_failed"))
		}
	} else {
		data.Total = total
		data.PageCount = table.PageCount(total, importsPageSize)
		data.Items = make([]pages.ImportItem, 0, len(records))
		for _, rec := range records {
			data.Items = append(data.Items, pages.ImportItem{
				Username:  rec.Username,
				FileName:  rec.FileName,
				FileSize:  rec.FileSize,
				Outcome:   rec.Outcome,
				Code:      rec.Code,
				Message:   rec.Message,
				Refreshed: rec.Refreshed,
				CreatedAt: rec.CreatedAt,
			})
		}
	}

	view := baseView(r, "title.imports", true, st)
	renderPage(w, r, h.logger, http.StatusOK, "imports", pages.Imports(view, data))
}
