package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
)

//go:embed locales/*.json
var localeFS embed.FS

// LoadFromEmbedFS загружает каталоги, встроенные в бинарник.
func LoadFromEmbedFS(bundle *Bundle, logger *slog.Logger) error {
	return LoadFromFS(bundle, localeFS, logger)
}

// LoadFromFS загружает locales/<lang>.json для каждого из Languages.
// Отсутствующий каталог — ошибка; недостающие ключи только логируются,
// при выводе их заменит перевод языка по умолчанию.
func LoadFromFS(bundle *Bundle, fsys fs.FS, logger *slog.Logger) error {
	for _, lang := range Languages {
		name := "locales/" + lang + ".json"
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("i18n: каталог %s: %w", name, err)
		}
		if err := bundle.LoadMessages(lang, data); err != nil {
			return err
		}
	}

	for _, lang := range Languages {
		if missing := bundle.MissingKeys(lang); len(missing) > 0 {
			logger.Warn("В каталоге не хватает переводов",
				slog.String("lang", lang),
				slog.Int("missing", len(missing)),
				slog.Any("keys", missing[:min(len(missing), 5)]),
			)
		}
	}
	return nil
}

// MissingKeys возвращает ключи каталога языка по умолчанию,
// которых нет в каталоге lang. Результат отсортирован.
func (b *Bundle) MissingKeys(lang string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	catalog := b.catalogs[lang]
	var missing []string
	for _, key := range slices.Sorted(maps.Keys(b.catalogs[DefaultLang])) {
		if _, ok := catalog[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
