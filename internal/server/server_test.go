package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/poc-admin/internal/api/handlers"
	tokenauth "github.com/bigkaa/poc-admin/internal/auth"
	"github.com/bigkaa/poc-admin/internal/page"
	"github.com/bigkaa/poc-admin/internal/service"
	"github.com/bigkaa/poc-admin/internal/ui/auth"
	uihandlers "github.com/bigkaa/poc-admin/internal/ui/handlers"
	"github.com/bigkaa/poc-admin/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/poc-admin/internal/ui/middleware"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type failingLogin struct{}

func (failingLogin) Login(context.Context, string, string) (string, error) {
	return "", errors.New("unavailable")
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := testLogger()

	if err := i18n.LoadFromEmbedFS(i18n.Init(logger), logger); err != nil {
		t.Fatal(err)
	}
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	factory := service.PageFactory(func(*tokenauth.MemoryStore, string) *page.ListPage {
		t.Fatal("страница не должна создаваться без авторизации")
		return nil
	})
	sessions := service.NewSessionService(10, time.Hour, factory)
	uiAuth := uimiddleware.NewUIAuth(sm, sessions, logger)

	ping := handlers.NewPingChecker("PoC API", func(context.Context) error { return nil })
	return NewRouter(Components{
		Health:         handlers.NewHealthHandler(ping, nil),
		PocAPI:         handlers.NewPocHandler(factory, nil, 0, logger),
		AuthHandler:    uihandlers.NewAuthHandler(failingLogin{}, sm, uiAuth, logger),
		AuthMiddleware: uiAuth,
		PocsHandler:    uihandlers.NewPocsHandler(uiAuth, 0, false, logger),
		ImportsHandler: uihandlers.NewImportsHandler(nil, logger),
		EventsHandler:  uihandlers.NewEventsHandler(nil, time.Second, logger),
	}, logger)
}

func TestRouter(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method   string
		path     string
		status   int
		location string
	}{
		{http.MethodGet, "/health/live", http.StatusOK, ""},
		{http.MethodGet, "/health/ready", http.StatusOK, ""},
		{http.MethodGet, "/metrics", http.StatusOK, ""},
		{http.MethodGet, "/static/css/app.css", http.StatusOK, ""},
		{http.MethodGet, "/static/js/app.js", http.StatusOK, ""},
		{http.MethodGet, "/static/missing.css", http.StatusNotFound, ""},
		{http.MethodGet, "/", http.StatusFound, "/admin/pocs"},
		{http.MethodGet, "/admin/login", http.StatusOK, ""},
		{http.MethodGet, "/admin/pocs", http.StatusFound, "/admin/login"},
		{http.MethodGet, "/admin/events/pocs", http.StatusFound, "/admin/login"},
		{http.MethodPost, "/admin/logout", http.StatusFound, "/admin/login"},
		{http.MethodGet, "/api/v1/pocs", http.StatusUnauthorized, ""},
		{http.MethodGet, "/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("статус = %d, ожидается %d", rec.Code, tt.status)
			}
			if tt.location != "" && rec.Header().Get("Location") != tt.location {
				t.Errorf("Location = %q, ожидается %q", rec.Header().Get("Location"), tt.location)
			}
		})
	}
}
