// codec.go — преобразование Level ↔ wire-представление PoC API.
// Встречаются два варианта бэкенда: строковый enum и целое 1..6.
package severity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Encoding — вариант wire-представления уровня.
type Encoding string

const (
	// EncodingString — уровень передаётся строкой ("critical").
	EncodingString Encoding = "string"
	// EncodingInt — уровень передаётся целым числом (6).
	EncodingInt Encoding = "int"
)

// ErrUnknownValue — wire-значение не соответствует ни одному уровню.
var ErrUnknownValue = errors.New("неизвестное значение уровня критичности")

// Codec кодирует и декодирует уровень критичности.
// Отображение полное (все уровни) и инъективное; для EncodingInt — строго возрастающее.
type Codec struct {
	encoding Encoding
	names    map[Level]string
	numbers  map[Level]int
	byName   map[string]Level
	byNumber map[int]Level
}

// NewCodec создаёт Codec со стандартным отображением:
// строки — каноничные имена, числа — 1 (unknown) … 6 (critical).
func NewCodec(enc Encoding) (*Codec, error) {
	names := make(map[Level]string, len(levelNames))
	numbers := make(map[Level]int, len(levelNames))
	for _, l := range All() {
		names[l] = l.String()
		numbers[l] = int(l) + 1
	}
	return newCodec(enc, names, numbers)
}

// MappingFile — схема YAML-файла с переопределением отображения.
//
//	encoding: int
//	int_values:
//	  critical: 10
//	string_values:
//	  info: informational
type MappingFile struct {
	Encoding     Encoding          `yaml:"encoding"`
	StringValues map[string]string `yaml:"string_values"`
	IntValues    map[string]int    `yaml:"int_values"`
}

// LoadCodec загружает Codec из YAML-файла. Непереопределённые уровни
// получают стандартные значения. fallback используется, если encoding в файле не задан.
func LoadCodec(path string, fallback Encoding) (*Codec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла отображения уровней: %w", err)
	}

	var mf MappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("разбор файла отображения уровней %s: %w", path, err)
	}
	if mf.Encoding == "" {
		mf.Encoding = fallback
	}
	return FromMapping(mf)
}

// FromMapping строит Codec из описания отображения.
func FromMapping(mf MappingFile) (*Codec, error) {
	names := make(map[Level]string, len(levelNames))
	numbers := make(map[Level]int, len(levelNames))
	for _, l := range All() {
		names[l] = l.String()
		numbers[l] = int(l) + 1
	}

	for key, v := range mf.StringValues {
		l, err := Parse(key)
		if err != nil {
			return nil, fmt.Errorf("string_values: %w", err)
		}
		names[l] = v
	}
	for key, v := range mf.IntValues {
		l, err := Parse(key)
		if err != nil {
			return nil, fmt.Errorf("int_values: %w", err)
		}
		numbers[l] = v
	}

	return newCodec(mf.Encoding, names, numbers)
}

func newCodec(enc Encoding, names map[Level]string, numbers map[Level]int) (*Codec, error) {
	if enc != EncodingString && enc != EncodingInt {
		return nil, fmt.Errorf("недопустимая кодировка уровня %q, допустимые: string, int", enc)
	}

	c := &Codec{
		encoding: enc,
		names:    names,
		numbers:  numbers,
		byName:   make(map[string]Level, len(names)),
		byNumber: make(map[int]Level, len(numbers)),
	}

	prev := 0
	for i, l := range All() {
		name := names[l]
		if name == "" {
			return nil, fmt.Errorf("пустое строковое значение для уровня %s", l)
		}
		if other, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("значение %q назначено уровням %s и %s", name, other, l)
		}
		c.byName[name] = l

		n := numbers[l]
		if i > 0 && n <= prev {
			return nil, fmt.Errorf("числовые значения должны возрастать: %s=%d после %d", l, n, prev)
		}
		prev = n
		c.byNumber[n] = l
	}

	return c, nil
}

// Encoding возвращает кодировку Codec.
func (c *Codec) Encoding() Encoding {
	return c.encoding
}

// Wire возвращает wire-значение уровня (string или int).
func (c *Codec) Wire(l Level) any {
	if !l.Valid() {
		l = Unknown
	}
	if c.encoding == EncodingInt {
		return c.numbers[l]
	}
	return c.names[l]
}

// EncodeJSON кодирует уровень в JSON согласно кодировке.
func (c *Codec) EncodeJSON(l Level) (json.RawMessage, error) {
	return json.Marshal(c.Wire(l))
}

// DecodeJSON декодирует wire-значение. Принимает и строку, и число —
// числовая строка ("6") трактуется как число, если кодировка int.
func (c *Codec) DecodeJSON(raw json.RawMessage) (Level, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Unknown, fmt.Errorf("%w: пустое значение", ErrUnknownValue)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Unknown, fmt.Errorf("декодирование уровня: %w", err)
		}
		return c.DecodeString(s)
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return Unknown, fmt.Errorf("декодирование уровня: %w", err)
	}
	return c.DecodeInt(n)
}

// DecodeString декодирует строковое wire-значение.
func (c *Codec) DecodeString(s string) (Level, error) {
	if l, ok := c.byName[s]; ok {
		return l, nil
	}
	if c.encoding == EncodingInt {
		if n, err := strconv.Atoi(s); err == nil {
			return c.DecodeInt(n)
		}
	}
	if l, err := Parse(s); err == nil {
		return l, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownValue, s)
}

// DecodeInt декодирует целочисленное wire-значение.
func (c *Codec) DecodeInt(n int) (Level, error) {
	if l, ok := c.byNumber[n]; ok {
		return l, nil
	}
	return Unknown, fmt.Errorf("%w: %d", ErrUnknownValue, n)
}

// Values возвращает wire-значения всех уровней по возрастанию (для форм выбора).
func (c *Codec) Values() []any {
	out := make([]any, 0, len(levelNames))
	for _, l := range All() {
		out = append(out, c.Wire(l))
	}
	return out
}
