// Пакет config — загрузка и валидация конфигурации PoC Admin
// из переменных окружения (префикс PA_) и необязательного .env-файла.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/bigkaa/poc-admin/internal/domain/severity"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации PoC Admin.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PoC API ---

	// Базовый URL PoC API
	PocAPIURL string
	// Путь к CA-сертификату для TLS-соединений с PoC API (опционально)
	PocAPICACertPath string
	// Таймаут HTTP-запроса к PoC API
	PocAPITimeout time.Duration
	// Кодировка уровня критичности (string, int)
	SeverityEncoding severity.Encoding
	// YAML-файл переопределения значений уровня (опционально)
	SeverityMapFile string
	// Код успешного ответа в конверте PoC API
	SuccessCode int
	// Код "авторизация истекла"
	AuthExpiredCode int

	// --- Таблица и импорт ---

	// Допустимые размеры страницы
	PageSizes []int
	// Размер страницы по умолчанию
	DefaultPageSize int
	// Таймаут загрузки страницы и тела PoC
	FetchTimeout time.Duration
	// Таймаут загрузки файла импорта
	ImportTimeout time.Duration
	// Максимальный размер файла импорта в байтах
	ImportMaxFileSize int64

	// --- Сессии UI ---

	// Секрет шифрования session cookie
	SessionSecret string
	// Максимальное число активных сессий в памяти
	SessionCacheSize int
	// Время жизни сессии без обращений
	SessionTTL time.Duration
	// Secure flag session cookie (консоль за HTTPS)
	SessionSecure bool
	// Интервал heartbeat SSE-потока
	SSEInterval time.Duration

	// --- PostgreSQL (журнал импортов, опционально) ---

	// Хост PostgreSQL (пусто — журнал отключён)
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Зависимости ---

	// Группа topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// LoadDotEnv загружает переменные из .env-файлов. Отсутствующие файлы пропускаются,
// уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("загрузка %s: %w", p, err)
		}
	}
	return nil
}

// Load загружает полную конфигурацию сервера из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}

	// --- Сервер ---

	// PA_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("PA_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("PA_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PA_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// --- Сессии UI ---

	// PA_SESSION_SECRET — обязательный, не короче 32 символов
	cfg.SessionSecret, err = getEnvRequired("PA_SESSION_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("PA_SESSION_SECRET: длина %d меньше 32 символов", len(cfg.SessionSecret))
	}

	// PA_SESSION_CACHE_SIZE — число сессий в памяти (по умолчанию 1000)
	cfg.SessionCacheSize, err = getEnvInt("PA_SESSION_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("PA_SESSION_CACHE_SIZE: %w", err)
	}
	if cfg.SessionCacheSize < 1 {
		return nil, fmt.Errorf("PA_SESSION_CACHE_SIZE: значение %d должно быть >= 1", cfg.SessionCacheSize)
	}

	// PA_SESSION_TTL — время жизни сессии (по умолчанию 8h)
	cfg.SessionTTL, err = getEnvDuration("PA_SESSION_TTL", 8*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PA_SESSION_TTL: %w", err)
	}

	// PA_SESSION_SECURE — Secure flag session cookie (по умолчанию false)
	cfg.SessionSecure, err = strconv.ParseBool(getEnvDefault("PA_SESSION_SECURE", "false"))
	if err != nil {
		return nil, fmt.Errorf("PA_SESSION_SECURE: %w", err)
	}

	// PA_SSE_INTERVAL — heartbeat SSE (по умолчанию 15s)
	cfg.SSEInterval, err = getEnvDuration("PA_SSE_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_SSE_INTERVAL: %w", err)
	}

	// --- PostgreSQL ---

	// PA_DB_HOST — если задан, остальные параметры БД обязательны
	cfg.DBHost = getEnvDefault("PA_DB_HOST", "")
	if cfg.DBHost != "" {
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	}

	// --- Зависимости ---

	// PA_DEPHEALTH_GROUP — группа topologymetrics (по умолчанию poc-admin)
	cfg.DephealthGroup = getEnvDefault("PA_DEPHEALTH_GROUP", "poc-admin")

	// PA_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("PA_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// PA_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("PA_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// LoadClient загружает конфигурацию, нужную CLI: логирование, PoC API, таблица, импорт.
func LoadClient() (*Config, error) {
	return loadCommon()
}

// loadCommon загружает параметры, общие для сервера и CLI.
func loadCommon() (*Config, error) {
	cfg := &Config{}
	var err error

	// PA_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PA_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PA_LOG_LEVEL: %w", err)
	}

	// PA_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PA_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PA_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PoC API ---

	// PA_POC_API_URL — обязательный
	cfg.PocAPIURL, err = getEnvRequired("PA_POC_API_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.PocAPIURL = strings.TrimRight(cfg.PocAPIURL, "/")

	// PA_POC_API_CA_CERT_PATH — путь к CA-сертификату PoC API (опционально)
	cfg.PocAPICACertPath = getEnvDefault("PA_POC_API_CA_CERT_PATH", "")

	// PA_POC_API_TIMEOUT — таймаут запроса (по умолчанию 30s)
	cfg.PocAPITimeout, err = getEnvDuration("PA_POC_API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_POC_API_TIMEOUT: %w", err)
	}

	// PA_SEVERITY_ENCODING — string или int (по умолчанию string)
	cfg.SeverityEncoding = severity.Encoding(getEnvDefault("PA_SEVERITY_ENCODING", string(severity.EncodingString)))
	if cfg.SeverityEncoding != severity.EncodingString && cfg.SeverityEncoding != severity.EncodingInt {
		return nil, fmt.Errorf("PA_SEVERITY_ENCODING: недопустимое значение %q, допустимые: string, int", cfg.SeverityEncoding)
	}

	// PA_SEVERITY_MAP_FILE — YAML-файл отображения уровней (опционально)
	cfg.SeverityMapFile = getEnvDefault("PA_SEVERITY_MAP_FILE", "")

	// PA_SUCCESS_CODE — код успеха (по умолчанию 200)
	cfg.SuccessCode, err = getEnvInt("PA_SUCCESS_CODE", 200)
	if err != nil {
		return nil, fmt.Errorf("PA_SUCCESS_CODE: %w", err)
	}

	// PA_AUTH_EXPIRED_CODE — код истёкшей авторизации в конверте (по умолчанию 505).
	// HTTP 401 клиент трактует так же независимо от значения.
	cfg.AuthExpiredCode, err = getEnvInt("PA_AUTH_EXPIRED_CODE", 505)
	if err != nil {
		return nil, fmt.Errorf("PA_AUTH_EXPIRED_CODE: %w", err)
	}
	if cfg.AuthExpiredCode == cfg.SuccessCode {
		return nil, fmt.Errorf("PA_AUTH_EXPIRED_CODE: совпадает с PA_SUCCESS_CODE (%d)", cfg.SuccessCode)
	}

	// --- Таблица и импорт ---

	// PA_PAGE_SIZES — допустимые размеры страницы (по умолчанию 10,20,50,100)
	cfg.PageSizes, err = parseIntCSV(getEnvDefault("PA_PAGE_SIZES", "10,20,50,100"))
	if err != nil {
		return nil, fmt.Errorf("PA_PAGE_SIZES: %w", err)
	}
	if len(cfg.PageSizes) == 0 {
		return nil, fmt.Errorf("PA_PAGE_SIZES: пустой список")
	}

	// PA_DEFAULT_PAGE_SIZE — размер по умолчанию (по умолчанию первый из PA_PAGE_SIZES)
	cfg.DefaultPageSize, err = getEnvInt("PA_DEFAULT_PAGE_SIZE", cfg.PageSizes[0])
	if err != nil {
		return nil, fmt.Errorf("PA_DEFAULT_PAGE_SIZE: %w", err)
	}
	if !slices.Contains(cfg.PageSizes, cfg.DefaultPageSize) {
		return nil, fmt.Errorf("PA_DEFAULT_PAGE_SIZE: значение %d не входит в PA_PAGE_SIZES %v", cfg.DefaultPageSize, cfg.PageSizes)
	}

	// PA_FETCH_TIMEOUT — таймаут загрузки страницы (по умолчанию 15s)
	cfg.FetchTimeout, err = getEnvDuration("PA_FETCH_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_FETCH_TIMEOUT: %w", err)
	}

	// PA_IMPORT_TIMEOUT — таймаут импорта (по умолчанию 5m)
	cfg.ImportTimeout, err = getEnvDuration("PA_IMPORT_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PA_IMPORT_TIMEOUT: %w", err)
	}

	// PA_IMPORT_MAX_FILE_SIZE — максимальный размер файла в байтах (по умолчанию 32 MiB)
	maxSize, err := getEnvInt("PA_IMPORT_MAX_FILE_SIZE", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("PA_IMPORT_MAX_FILE_SIZE: %w", err)
	}
	if maxSize < 1 {
		return nil, fmt.Errorf("PA_IMPORT_MAX_FILE_SIZE: значение %d должно быть >= 1", maxSize)
	}
	cfg.ImportMaxFileSize = int64(maxSize)

	return cfg, nil
}

// loadDatabase загружает параметры PostgreSQL.
func loadDatabase(cfg *Config) error {
	var err error

	// PA_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("PA_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("PA_DB_PORT: %w", err)
	}

	// PA_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("PA_DB_NAME")
	if err != nil {
		return err
	}

	// PA_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("PA_DB_USER")
	if err != nil {
		return err
	}

	// PA_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("PA_DB_PASSWORD")
	if err != nil {
		return err
	}

	// PA_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PA_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("PA_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	return nil
}

// HistoryEnabled сообщает, настроен ли журнал импортов в PostgreSQL.
func (c *Config) HistoryEnabled() bool {
	return c.DBHost != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без учётных данных (лейблы метрик topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SeverityCodec строит кодек уровня критичности: из YAML-файла, если он задан.
func (c *Config) SeverityCodec() (*severity.Codec, error) {
	if c.SeverityMapFile != "" {
		return severity.LoadCodec(c.SeverityMapFile, c.SeverityEncoding)
	}
	return severity.NewCodec(c.SeverityEncoding)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseIntCSV разбирает список положительных целых через запятую.
// Результат отсортирован, повторы удалены.
func parseIntCSV(s string) ([]int, error) {
	parts := parseCSV(s)
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("некорректное целое число: %q", p)
		}
		if n < 1 {
			return nil, fmt.Errorf("значение %d должно быть >= 1", n)
		}
		result = append(result, n)
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}
