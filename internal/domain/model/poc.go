package model

import (
	"time"

	"github.com/bigkaa/poc-admin/internal/domain/severity"
)

// Record — PoC-запись (proof-of-concept эксплойт).
// Список PoC API отдаёт записи без Content; тело загружается отдельным запросом по ID.
type Record struct {
	// ID — идентификатор, присваивается PoC API (пустой у несохранённого черновика)
	ID string
	// Name — отображаемое имя
	Name string
	// Level — уровень критичности
	Level severity.Level
	// Time — время создания (только чтение, задаёт сервер)
	Time time.Time
	// Content — тело PoC; nil — ещё не загружено
	Content *string
}

// IsNew сообщает, что запись ещё не сохранена в PoC API.
func (r Record) IsNew() bool {
	return r.ID == ""
}

// ContentLoaded сообщает, загружено ли тело PoC.
func (r Record) ContentLoaded() bool {
	return r.Content != nil
}

// ContentText возвращает тело PoC или пустую строку, если оно не загружено.
func (r Record) ContentText() string {
	if r.Content == nil {
		return ""
	}
	return *r.Content
}

// WithContent возвращает копию записи с заданным телом.
func (r Record) WithContent(content string) Record {
	r.Content = &content
	return r
}

// NewRecord возвращает пустой черновик с минимальным значимым уровнем.
func NewRecord() Record {
	return Record{Level: severity.Info}
}
