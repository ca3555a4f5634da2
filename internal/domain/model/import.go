package model

import (
	"time"

	"github.com/google/uuid"
)

// Исходы импорта.
const (
	ImportOutcomeSuccess     = "success"
	ImportOutcomeRejected    = "rejected"
	ImportOutcomeAuthExpired = "auth_expired"
	ImportOutcomeError       = "error"
)

// ImportRecord — запись журнала импорта PoC-файлов.
// Хранится в таблице import_history.
type ImportRecord struct {
	// ID — UUID записи
	ID uuid.UUID
	// Username — пользователь консоли, выполнивший импорт
	Username string
	// FileName — имя загруженного файла
	FileName string
	// FileSize — размер файла в байтах
	FileSize int64
	// Outcome — исход (success, rejected, auth_expired, error)
	Outcome string
	// Code — код ответа PoC API (0 при транспортной ошибке)
	Code int
	// Message — сообщение PoC API или текст ошибки
	Message string
	// Refreshed — был ли обновлён список после импорта
	Refreshed bool
	// CreatedAt — время импорта
	CreatedAt time.Time
}
