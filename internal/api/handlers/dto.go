// dto.go — JSON-представления записей PoC и состояния таблицы.
// Используются JSON API и SSE-потоком админ-интерфейса.
package handlers

import (
	"time"

	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/table"
)

// PocDTO — запись PoC в JSON-ответах консоли.
type PocDTO struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Level   string  `json:"level"`
	Tier    int     `json:"tier"`
	Time    string  `json:"time,omitempty"`
	Content *string `json:"content,omitempty"`
}

// TableStateDTO — снимок состояния таблицы PoC.
type TableStateDTO struct {
	Filter    string   `json:"filter"`
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
	PageCount int      `json:"page_count"`
	Total     int      `json:"total"`
	Loading   bool     `json:"loading"`
	Error     string   `json:"error,omitempty"`
	Version   uint64   `json:"version"`
	Items     []PocDTO `json:"items"`
}

// NewPocDTO преобразует запись в DTO.
func NewPocDTO(r model.Record) PocDTO {
	dto := PocDTO{
		ID:      r.ID,
		Name:    r.Name,
		Level:   r.Level.String(),
		Tier:    r.Level.Tier(),
		Content: r.Content,
	}
	if !r.Time.IsZero() {
		dto.Time = r.Time.UTC().Format(time.RFC3339)
	}
	return dto
}

// NewTableStateDTO преобразует снимок контроллера таблицы в DTO.
func NewTableStateDTO(st table.State[model.Record]) TableStateDTO {
	dto := TableStateDTO{
		Filter:    st.Query.Filter,
		Page:      st.Query.Page,
		PageSize:  st.Query.PageSize,
		PageCount: table.PageCount(st.Total, st.Query.PageSize),
		Total:     st.Total,
		Loading:   st.Loading,
		Version:   st.Version,
		Items:     make([]PocDTO, 0, len(st.Rows)),
	}
	if st.Err != nil {
		dto.Error = st.Err.Error()
	}
	for _, r := range st.Rows {
		dto.Items = append(dto.Items, NewPocDTO(r))
	}
	return dto
}
