package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bigkaa/poc-admin/internal/domain/severity"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"PA_POC_API_URL":    "https://scope.kryukov.lan/",
		"PA_SESSION_SECRET": "0123456789abcdef0123456789abcdef",
	}
}

// unsetMinimal очищает обязательные переменные перед подстановкой своих.
func unsetMinimal() {
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.PocAPIURL != "https://scope.kryukov.lan" {
		t.Errorf("PocAPIURL = %q, ожидается без trailing slash", cfg.PocAPIURL)
	}
	if cfg.SeverityEncoding != severity.EncodingString {
		t.Errorf("SeverityEncoding = %q, ожидается string", cfg.SeverityEncoding)
	}
	if cfg.SuccessCode != 200 || cfg.AuthExpiredCode != 505 {
		t.Errorf("коды = %d/%d, ожидается 200/505", cfg.SuccessCode, cfg.AuthExpiredCode)
	}
	if !slices.Equal(cfg.PageSizes, []int{10, 20, 50, 100}) {
		t.Errorf("PageSizes = %v", cfg.PageSizes)
	}
	if cfg.DefaultPageSize != 10 {
		t.Errorf("DefaultPageSize = %d, ожидается 10", cfg.DefaultPageSize)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("FetchTimeout = %v, ожидается 15s", cfg.FetchTimeout)
	}
	if cfg.ImportMaxFileSize != 32<<20 {
		t.Errorf("ImportMaxFileSize = %d", cfg.ImportMaxFileSize)
	}
	if cfg.SessionTTL != 8*time.Hour {
		t.Errorf("SessionTTL = %v, ожидается 8h", cfg.SessionTTL)
	}
	if cfg.HistoryEnabled() {
		t.Error("журнал импортов не должен быть включён без PA_DB_HOST")
	}
	if cfg.DephealthGroup != "poc-admin" {
		t.Errorf("DephealthGroup = %q", cfg.DephealthGroup)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["PA_PORT"] = "9090"
	envs["PA_LOG_LEVEL"] = "debug"
	envs["PA_LOG_FORMAT"] = "text"
	envs["PA_SEVERITY_ENCODING"] = "int"
	envs["PA_PAGE_SIZES"] = "50, 25,25"
	envs["PA_DEFAULT_PAGE_SIZE"] = "50"
	envs["PA_SUCCESS_CODE"] = "1"
	envs["PA_AUTH_EXPIRED_CODE"] = "2"
	envs["PA_IMPORT_TIMEOUT"] = "1m"
	envs["PA_POC_API_CA_CERT_PATH"] = "/certs/ca.pem"
	envs["PA_DB_HOST"] = "db"
	envs["PA_DB_NAME"] = "pocadmin"
	envs["PA_DB_USER"] = "pocadmin"
	envs["PA_DB_PASSWORD"] = "secret"
	envs["PA_DB_SSL_MODE"] = "require"
	envs["PA_SESSION_SECURE"] = "true"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.SeverityEncoding != severity.EncodingInt {
		t.Errorf("SeverityEncoding = %q", cfg.SeverityEncoding)
	}
	if !slices.Equal(cfg.PageSizes, []int{25, 50}) {
		t.Errorf("PageSizes = %v, ожидается [25 50]", cfg.PageSizes)
	}
	if cfg.DefaultPageSize != 50 {
		t.Errorf("DefaultPageSize = %d", cfg.DefaultPageSize)
	}
	if cfg.SuccessCode != 1 || cfg.AuthExpiredCode != 2 {
		t.Errorf("коды = %d/%d", cfg.SuccessCode, cfg.AuthExpiredCode)
	}
	if cfg.ImportTimeout != time.Minute {
		t.Errorf("ImportTimeout = %v", cfg.ImportTimeout)
	}
	if !cfg.SessionSecure {
		t.Error("SessionSecure = false, ожидается true")
	}
	if cfg.PocAPICACertPath != "/certs/ca.pem" {
		t.Errorf("PocAPICACertPath = %q", cfg.PocAPICACertPath)
	}
	if !cfg.HistoryEnabled() || cfg.DBPort != 5432 || cfg.DBSSLMode != "require" {
		t.Errorf("DB = %s:%d %s", cfg.DBHost, cfg.DBPort, cfg.DBSSLMode)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, missing := range []string{"PA_POC_API_URL", "PA_SESSION_SECRET"} {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, missing)
			unsetMinimal()
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

// TestLoadClient_NoSessionSecret — CLI не требует секрет сессий.
func TestLoadClient_NoSessionSecret(t *testing.T) {
	unsetMinimal()
	t.Setenv("PA_POC_API_URL", "http://localhost:8082")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() вернул ошибку: %v", err)
	}
	if cfg.PocAPIURL != "http://localhost:8082" {
		t.Errorf("PocAPIURL = %q", cfg.PocAPIURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт не число", "PA_PORT", "abc"},
		{"порт вне диапазона", "PA_PORT", "70000"},
		{"уровень логов", "PA_LOG_LEVEL", "verbose"},
		{"формат логов", "PA_LOG_FORMAT", "xml"},
		{"кодировка уровня", "PA_SEVERITY_ENCODING", "float"},
		{"размеры страниц", "PA_PAGE_SIZES", "10,x"},
		{"нулевой размер", "PA_PAGE_SIZES", "0,10"},
		{"размер по умолчанию", "PA_DEFAULT_PAGE_SIZE", "15"},
		{"длительность", "PA_FETCH_TIMEOUT", "abc"},
		{"коды совпадают", "PA_AUTH_EXPIRED_CODE", "200"},
		{"короткий секрет", "PA_SESSION_SECRET", "short"},
		{"размер кэша", "PA_SESSION_CACHE_SIZE", "0"},
		{"размер файла", "PA_IMPORT_MAX_FILE_SIZE", "0"},
		{"secure cookie", "PA_SESSION_SECURE", "maybe"},
		{"БД без имени", "PA_DB_HOST", "db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.val
			unsetMinimal()
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PA_TEST_DOTENV=from-file\nPA_TEST_DOTENV_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PA_TEST_DOTENV_KEEP", "from-env")
	t.Setenv("PA_TEST_DOTENV", "")
	os.Unsetenv("PA_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("PA_TEST_DOTENV"); got != "from-file" {
		t.Errorf("PA_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("PA_TEST_DOTENV_KEEP"); got != "from-env" {
		t.Errorf("PA_TEST_DOTENV_KEEP = %q, переменная окружения перезаписана", got)
	}
}

func TestSeverityCodec(t *testing.T) {
	cfg := &Config{SeverityEncoding: severity.EncodingInt}
	codec, err := cfg.SeverityCodec()
	if err != nil {
		t.Fatal(err)
	}
	if codec.Wire(severity.Critical) != 6 {
		t.Errorf("Wire(Critical) = %v", codec.Wire(severity.Critical))
	}

	cfg.SeverityMapFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.SeverityCodec(); err == nil {
		t.Error("ожидалась ошибка для отсутствующего файла")
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5432,
		DBName:     "pocadmin",
		DBUser:     "user",
		DBPassword: "pass",
		DBSSLMode:  "disable",
	}
	expected := "host=db.example.com port=5432 dbname=pocadmin user=user password=pass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, expected)
	}
	if u := cfg.DatabaseURL(); u != "postgres://db.example.com:5432/pocadmin" {
		t.Errorf("DatabaseURL() = %q", u)
	}
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			logger := SetupLogger(&Config{LogLevel: slog.LevelInfo, LogFormat: format})
			if logger == nil {
				t.Error("SetupLogger() вернул nil")
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,,b,", []string{"a", "b"}},
		{" a , b ", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseCSV(tt.input); !slices.Equal(got, tt.expected) {
				t.Errorf("parseCSV(%q) = %v, ожидается %v", tt.input, got, tt.expected)
			}
		})
	}
}
