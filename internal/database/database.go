// Пакет database — хранилище журнала импортов: пул pgx, встроенные миграции
// golang-migrate и проверка готовности по таблице import_history.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/poc-admin/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// HistoryTable — таблица журнала импортов.
const HistoryTable = "import_history"

// Параметры пула журнала: запись раз на импорт, чтение — страница журнала.
const (
	historyMaxConns     = 4
	historyConnIdleTime = 5 * time.Minute
	applicationName     = "poc-admin"
	readyTimeout        = 3 * time.Second
)

// Connect открывает пул журнала импортов и проверяет доступность PostgreSQL.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("разбор DSN журнала импортов: %w", err)
	}
	poolCfg.MaxConns = historyMaxConns
	poolCfg.MinConns = 0
	poolCfg.MaxConnIdleTime = historyConnIdleTime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("создание пула журнала импортов: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL журнала импортов недоступен: %w", err)
	}

	logger.Info("Журнал импортов подключён",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// Migrate приводит схему журнала импортов к последней встроенной миграции.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("источник миграций журнала: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return fmt.Errorf("инициализация миграций журнала: %w", err)
	}
	defer m.Close()
	m.Log = migrationLogger{logger: logger}

	before, _, _ := m.Version()
	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Схема журнала импортов актуальна", slog.Uint64("version", uint64(before)))
		return nil
	case err != nil:
		return fmt.Errorf("применение миграций журнала: %w", err)
	}

	after, dirty, _ := m.Version()
	logger.Info("Миграции журнала импортов применены",
		slog.Uint64("from", uint64(before)),
		slog.Uint64("to", uint64(after)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// migrateURL — адрес для драйвера pgx5; учётные данные экранируются.
func migrateURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// migrationLogger передаёт сообщения golang-migrate в slog на уровне DEBUG.
type migrationLogger struct {
	logger *slog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrationLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}

// historyDB — часть pgxpool.Pool, нужная проверке готовности.
type historyDB interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReadinessChecker — готовность журнала импортов для /health/ready:
// PostgreSQL отвечает и таблица журнала создана.
type ReadinessChecker struct {
	db historyDB
}

// NewReadinessChecker создаёт проверку готовности журнала.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{db: pool}
}

// CheckReady возвращает "ok" или "fail" и сообщение.
func (c *ReadinessChecker) CheckReady(ctx context.Context) (status string, message string) {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}

	var exists bool
	if err := c.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, HistoryTable).Scan(&exists); err != nil {
		return "fail", fmt.Sprintf("проверка таблицы %s: %v", HistoryTable, err)
	}
	if !exists {
		return "fail", fmt.Sprintf("таблица %s отсутствует, миграции не применены", HistoryTable)
	}
	return "ok", "журнал импортов доступен"
}
