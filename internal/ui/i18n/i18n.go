// Пакет i18n — переводы Admin UI (en, ru, zh).
// Каталоги — плоские JSON "ключ → строка"; язык запроса лежит в контексте,
// его выбирает Middleware. Ключ без перевода берётся из английского
// каталога, а если нет и там — выводится как есть.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLang — язык по умолчанию и источник недостающих переводов.
const DefaultLang = "en"

// Languages — коды языков консоли в порядке переключателя; первый — DefaultLang.
var Languages = []string{"en", "ru", "zh"}

// matcher сопоставляет Accept-Language с Languages (индексы совпадают).
var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Russian,
	language.Chinese,
})

// MatchLanguage выбирает язык консоли по заголовку Accept-Language.
func MatchLanguage(acceptLanguage string) string {
	_, i := language.MatchStrings(matcher, acceptLanguage)
	if i < 0 || i >= len(Languages) {
		return DefaultLang
	}
	return Languages[i]
}

// IsSupported сообщает, есть ли каталог для языка.
func IsSupported(lang string) bool {
	return slices.Contains(Languages, lang)
}

// Bundle — загруженные каталоги.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string
	logger   *slog.Logger
}

// NewBundle создаёт пустой набор каталогов. logger может быть nil.
func NewBundle(logger *slog.Logger) *Bundle {
	return &Bundle{catalogs: make(map[string]map[string]string), logger: logger}
}

// LoadMessages заменяет каталог языка содержимым JSON.
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: каталог %s: %w", lang, err)
	}

	b.mu.Lock()
	b.catalogs[lang] = messages
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug("Каталог переводов загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return nil
}

// Translate возвращает строку для ключа: lang → DefaultLang → сам ключ.
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, l := range []string{lang, DefaultLang} {
		if msg, ok := b.catalogs[l][key]; ok {
			return msg
		}
	}
	return key
}

// Translatef — Translate с подстановкой аргументов в стиле fmt.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	msg := b.Translate(lang, key)
	if len(args) == 0 {
		return msg
	}
	return sprintf(msg, args...)
}

// sprintf — fmt.Sprintf через переменную: иначе vet сочтёт Tf printf-обёрткой
// и будет проверять ключи каталога как формат-строки.
var sprintf = fmt.Sprintf

var (
	global     *Bundle
	globalOnce sync.Once
)

// Init создаёт общий Bundle процесса; повторные вызовы возвращают тот же.
func Init(logger *slog.Logger) *Bundle {
	globalOnce.Do(func() {
		global = NewBundle(logger)
	})
	return global
}

type langKey struct{}

// WithLang кладёт язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// LangFromContext возвращает язык из контекста или DefaultLang.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// T переводит ключ на язык из контекста.
func T(ctx context.Context, key string) string {
	if global == nil {
		return key
	}
	return global.Translate(LangFromContext(ctx), key)
}

// Tf переводит ключ и подставляет аргументы.
func Tf(ctx context.Context, key string, args ...any) string {
	if global == nil {
		if len(args) == 0 {
			return key
		}
		return sprintf(key, args...)
	}
	return global.Translatef(LangFromContext(ctx), key, args...)
}
