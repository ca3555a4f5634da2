// Пакет selection — вычисление множества выбранных ID в момент массового действия.
// Выбор никогда не кэшируется: Tracker каждый раз читает Source заново.
package selection

import (
	"slices"
)

// IDSet — множество идентификаторов записей.
type IDSet map[string]struct{}

// NewIDSet создаёт множество из списка ID. Пустые ID пропускаются.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has сообщает, входит ли ID в множество.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len возвращает размер множества.
func (s IDSet) Len() int {
	return len(s)
}

// Slice возвращает ID в отсортированном порядке (никогда не nil).
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Source — текущий выбор строк в представлении таблицы.
type Source[T any] interface {
	Selected() []T
}

// SourceFunc адаптирует функцию к Source.
type SourceFunc[T any] func() []T

// Selected реализует Source.
func (f SourceFunc[T]) Selected() []T {
	return f()
}

// Static — фиксированный выбор (CLI, тесты).
type Static[T any] []T

// Selected реализует Source.
func (s Static[T]) Selected() []T {
	return s
}

// Tracker извлекает ID из выбранных строк.
type Tracker[T any] struct {
	idOf func(T) string
}

// NewTracker создаёт Tracker с функцией получения ID строки.
func NewTracker[T any](idOf func(T) string) *Tracker[T] {
	return &Tracker[T]{idOf: idOf}
}

// SelectedIDs вычисляет множество ID выбранных строк.
// nil-источник и пустой выбор дают пустое множество.
func (t *Tracker[T]) SelectedIDs(src Source[T]) IDSet {
	if src == nil {
		return IDSet{}
	}
	rows := src.Selected()
	s := make(IDSet, len(rows))
	for _, row := range rows {
		if id := t.idOf(row); id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}
