// Пакет server — HTTP-сервер PoC Admin с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/poc-admin/internal/api/handlers"
	"github.com/bigkaa/poc-admin/internal/api/middleware"
	"github.com/bigkaa/poc-admin/internal/config"
	uihandlers "github.com/bigkaa/poc-admin/internal/ui/handlers"
	"github.com/bigkaa/poc-admin/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/poc-admin/internal/ui/middleware"
	"github.com/bigkaa/poc-admin/internal/ui/static"
)

// Components — обработчики, из которых собирается роутер.
type Components struct {
	Health *handlers.HealthHandler
	// PocAPI — JSON API /api/v1 (под BearerAuth)
	PocAPI *handlers.PocHandler

	// Admin UI
	AuthHandler    *uihandlers.AuthHandler
	AuthMiddleware *uimiddleware.UIAuth
	PocsHandler    *uihandlers.PocsHandler
	ImportsHandler *uihandlers.ImportsHandler
	EventsHandler  *uihandlers.EventsHandler
}

// Server — HTTP-сервер PoC Admin.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, c Components) *Server {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     NewRouter(c, logger),
		ReadTimeout: 30 * time.Second,
		// WriteTimeout не задан: SSE-поток держит ответ открытым
		IdleTimeout: 120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает роутер: health и metrics, JSON API, Admin UI и статика.
func NewRouter(c Components, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую, без авторизации.
	router.Get("/health/live", c.Health.HealthLive)
	router.Get("/health/ready", c.Health.HealthReady)
	router.Get("/metrics", c.Health.GetMetrics)

	if c.PocAPI != nil {
		router.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.BearerAuth(nil))
			c.PocAPI.Routes(r)
		})
	}

	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	router.Group(func(r chi.Router) {
		r.Use(i18n.Middleware())

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/admin/pocs", http.StatusFound)
		})

		// Публичные страницы UI
		r.Get("/admin/login", c.AuthHandler.HandleLoginPage)
		r.Post("/admin/login", c.AuthHandler.HandleLogin)
		r.Post("/admin/set-language", uihandlers.HandleSetLanguage)

		// Страницы под UI-сессией
		r.Route("/admin", func(r chi.Router) {
			r.Use(c.AuthMiddleware.Middleware())
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				http.Redirect(w, req, "/admin/pocs", http.StatusFound)
			})
			r.Post("/logout", c.AuthHandler.HandleLogout)
			c.PocsHandler.Routes(r)
			r.Get("/imports", c.ImportsHandler.HandleList)
			r.Get("/events/pocs", c.EventsHandler.HandlePocEvents)
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
