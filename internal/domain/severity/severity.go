// Пакет severity — уровень критичности PoC-записи и его кодирование на границе
// с PoC API. Ядро работает только с Level; строковое или целочисленное
// представление существует лишь внутри Codec.
package severity

import (
	"fmt"
	"strings"
)

// Level — упорядоченный уровень критичности.
type Level int

// Уровни по возрастанию критичности.
const (
	Unknown Level = iota
	Info
	Low
	Medium
	High
	Critical
)

// levelNames — каноничные имена уровней (индекс = Level).
var levelNames = [...]string{"unknown", "info", "low", "medium", "high", "critical"}

// All возвращает все уровни по возрастанию.
func All() []Level {
	return []Level{Unknown, Info, Low, Medium, High, Critical}
}

// Valid сообщает, входит ли уровень в перечисление.
func (l Level) Valid() bool {
	return l >= Unknown && l <= Critical
}

// String возвращает каноничное имя уровня.
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Tier — номер уровня отображения: 0 (низший) … 5 (высший).
// Монотонен по Level.
func (l Level) Tier() int {
	if !l.Valid() {
		return 0
	}
	return int(l)
}

// Parse разбирает каноничное имя уровня (регистр не важен).
func Parse(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return Unknown, fmt.Errorf("неизвестный уровень критичности %q", s)
}
