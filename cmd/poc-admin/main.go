// Точка входа PoC Admin — веб-консоль управления PoC-записями.
// Загружает конфигурацию, создаёт клиент PoC API, при заданном PA_DB_HOST
// подключает журнал импортов в PostgreSQL, запускает topologymetrics,
// HTTP-сервер (Admin UI + JSON API) и graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/poc-admin/internal/api/handlers"
	tokenauth "github.com/bigkaa/poc-admin/internal/auth"
	"github.com/bigkaa/poc-admin/internal/config"
	"github.com/bigkaa/poc-admin/internal/database"
	"github.com/bigkaa/poc-admin/internal/importer"
	"github.com/bigkaa/poc-admin/internal/page"
	"github.com/bigkaa/poc-admin/internal/pocclient"
	"github.com/bigkaa/poc-admin/internal/repository"
	"github.com/bigkaa/poc-admin/internal/server"
	"github.com/bigkaa/poc-admin/internal/service"
	"github.com/bigkaa/poc-admin/internal/table"
	"github.com/bigkaa/poc-admin/internal/ui/auth"
	uihandlers "github.com/bigkaa/poc-admin/internal/ui/handlers"
	"github.com/bigkaa/poc-admin/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/poc-admin/internal/ui/middleware"
)

func main() {
	// 0. .env (переменные окружения имеют приоритет)
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("Ошибка загрузки .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("PoC Admin запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("poc_api_url", cfg.PocAPIURL),
	)

	if os.Getenv("PA_DEPHEALTH_GROUP") == "" {
		logger.Warn("PA_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx := context.Background()

	// 3. Клиент PoC API (общий транспорт; токен — у каждой сессии свой)
	codec, err := cfg.SeverityCodec()
	if err != nil {
		logger.Error("Ошибка настройки кодировки уровня", slog.String("error", err.Error()))
		os.Exit(1)
	}
	client, err := pocclient.New(pocclient.Options{
		BaseURL:         cfg.PocAPIURL,
		CACertPath:      cfg.PocAPICACertPath,
		Timeout:         cfg.PocAPITimeout,
		SuccessCode:     cfg.SuccessCode,
		AuthExpiredCode: cfg.AuthExpiredCode,
		Codec:           codec,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента PoC API", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Журнал импортов (опционально): миграции, пул, репозиторий
	var (
		pool        *pgxpool.Pool
		pgDB        *sql.DB
		historyRepo repository.ImportHistoryRepository
		pgChecker   handlers.ReadinessChecker
	)
	if cfg.HistoryEnabled() {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err = database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		historyRepo = repository.NewImportHistoryRepository(pool)
		pgChecker = database.NewReadinessChecker(pool)
	} else {
		logger.Info("Журнал импортов отключён (PA_DB_HOST не задан)")
	}
	history := service.NewImportHistoryService(historyRepo, logger)

	// 5. Фабрика страниц списка PoC: одна на UI-сессию или на запрос JSON API
	pageOpts := page.Options{
		Table: table.Options{
			PageSizes:       cfg.PageSizes,
			DefaultPageSize: cfg.DefaultPageSize,
			FetchTimeout:    cfg.FetchTimeout,
		},
		Import: importer.Options{
			SuccessCode:     cfg.SuccessCode,
			AuthExpiredCode: cfg.AuthExpiredCode,
			Timeout:         cfg.ImportTimeout,
			MaxFileSize:     cfg.ImportMaxFileSize,
		},
		DetailTimeout: cfg.FetchTimeout,
	}
	newPage := service.PageFactory(func(tokens *tokenauth.MemoryStore, username string) *page.ListPage {
		opts := pageOpts
		opts.Import.Username = username
		p := page.New(client.WithTokenProvider(tokens.Token), tokens, opts, logger)
		p.Importer().SetRecorder(history)
		return p
	})

	// 6. topologymetrics — мониторинг зависимостей (PoC API + PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:        "poc-admin",
		Group:            cfg.DephealthGroup,
		PocAPIURL:        cfg.PocAPIURL,
		PocAPISkipVerify: cfg.PocAPICACertPath != "",
		DB:               pgDB,
		PgConnURL:        cfg.DatabaseURL(),
		CheckInterval:    cfg.DephealthCheckInterval,
	}, logger)
	var healthSource uihandlers.HealthSource
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		healthSource = dephealthSvc
		defer dephealthSvc.Stop()
	}

	// 7. Admin UI: переводы, сессии
	bundle := i18n.Init(logger)
	if err := i18n.LoadFromEmbedFS(bundle, logger); err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionSecure, cfg.SessionTTL)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sessions := service.NewSessionService(cfg.SessionCacheSize, cfg.SessionTTL, newPage)
	uiAuth := uimiddleware.NewUIAuth(sessionMgr, sessions, logger)

	// 8. HTTP-сервер
	pocChecker := handlers.NewPingChecker("PoC API", client.Ping)
	healthHandler := handlers.NewHealthHandler(pocChecker, pgChecker)

	srv := server.New(cfg, logger, server.Components{
		Health:         healthHandler,
		PocAPI:         handlers.NewPocHandler(newPage, history, cfg.ImportMaxFileSize, logger),
		AuthHandler:    uihandlers.NewAuthHandler(client, sessionMgr, uiAuth, logger),
		AuthMiddleware: uiAuth,
		PocsHandler:    uihandlers.NewPocsHandler(uiAuth, cfg.ImportMaxFileSize, cfg.HistoryEnabled(), logger),
		ImportsHandler: uihandlers.NewImportsHandler(history, logger),
		EventsHandler:  uihandlers.NewEventsHandler(healthSource, cfg.SSEInterval, logger),
	})
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("PoC Admin остановлен")
}
