// Пакет errors — конструкторы стандартных ошибок JSON-ответов PoC Admin.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bigkaa/poc-admin/internal/importer"
	"github.com/bigkaa/poc-admin/internal/page"
	"github.com/bigkaa/poc-admin/internal/pocclient"
	"github.com/bigkaa/poc-admin/internal/table"
)

// Коды ошибок.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeConflict           = "CONFLICT"
	CodePocAPIUnavailable  = "POC_API_UNAVAILABLE"
	CodePocAPIError        = "POC_API_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Conflict — 409 операция несовместима с текущим состоянием.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// PocAPIUnavailable — 502 PoC API недоступен.
func PocAPIUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodePocAPIUnavailable, message)
}

// ServiceUnavailable — 503 функция отключена конфигурацией.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// FromError выбирает статус и код по ошибке операций страницы PoC.
func FromError(w http.ResponseWriter, err error) {
	var apiErr *pocclient.APIError
	switch {
	case errors.Is(err, pocclient.ErrUnauthorized):
		Unauthorized(w, err.Error())
	case errors.Is(err, table.ErrInvalidPage),
		errors.Is(err, table.ErrInvalidPageSize),
		errors.Is(err, page.ErrEmptyName),
		errors.Is(err, page.ErrNoRecordID),
		errors.Is(err, importer.ErrEmptyFileName),
		errors.Is(err, importer.ErrFileTooLarge):
		ValidationError(w, err.Error())
	case errors.Is(err, page.ErrEditorClosed),
		errors.Is(err, importer.ErrUploadInProgress),
		errors.Is(err, importer.ErrNoFileStaged):
		Conflict(w, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, CodeTimeout, err.Error())
	case errors.As(err, &apiErr):
		WriteError(w, http.StatusBadGateway, CodePocAPIError, apiErr.Error())
	default:
		PocAPIUnavailable(w, err.Error())
	}
}
