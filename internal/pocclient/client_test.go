package pocclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/domain/severity"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockAPI создаёт mock HTTP-сервер PoC API.
func setupMockAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// newTestClient создаёт клиент с фиксированным токеном.
func newTestClient(t *testing.T, url string, enc severity.Encoding) *Client {
	t.Helper()
	codec, err := severity.NewCodec(enc)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(Options{BaseURL: url + "/", Codec: codec}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return c.WithTokenProvider(func(ctx context.Context) (string, error) {
		return "test-token", nil
	})
}

// writeEnvelope пишет ответ в формате конверта PoC API.
func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"data":    data,
	})
}

func TestNew_Validation(t *testing.T) {
	codec, _ := severity.NewCodec(severity.EncodingString)
	if _, err := New(Options{Codec: codec}, testLogger()); err == nil {
		t.Error("ожидалась ошибка без BaseURL")
	}
	if _, err := New(Options{BaseURL: "http://x"}, testLogger()); err == nil {
		t.Error("ожидалась ошибка без Codec")
	}
}

// TestClient_List проверяет List (POST /api/poc/data).
func TestClient_List(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/poc/data" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}

		var req struct {
			Search    string `json:"search"`
			PageIndex int    `json:"pageIndex"`
			PageSize  int    `json:"pageSize"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Search != "apache" || req.PageIndex != 2 || req.PageSize != 10 {
			t.Errorf("неожиданный запрос: %+v", req)
		}

		writeEnvelope(w, 200, "success", map[string]any{
			"list": []map[string]any{
				{"id": "a1", "name": "CVE-2021-41773", "level": 6, "time": "2024-05-01 10:20:30"},
				{"id": "a2", "name": "weird", "level": 42, "time": "not-a-time"},
			},
			"total": 25,
		})
	})

	c := newTestClient(t, server.URL, severity.EncodingInt)
	res, err := c.List(context.Background(), "apache", 2, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 25 || len(res.Records) != 2 {
		t.Fatalf("получено total=%d, rows=%d", res.Total, len(res.Records))
	}

	first := res.Records[0]
	if first.Level != severity.Critical {
		t.Errorf("level = %s, ожидается critical", first.Level)
	}
	if first.Time.IsZero() || first.Time.Year() != 2024 {
		t.Errorf("time = %v", first.Time)
	}
	if first.ContentLoaded() {
		t.Error("Content не должен быть загружен в списке")
	}

	second := res.Records[1]
	if second.Level != severity.Unknown {
		t.Errorf("неизвестный уровень → %s, ожидается unknown", second.Level)
	}
	if !second.Time.IsZero() {
		t.Errorf("нераспознанное время → %v, ожидается нулевое", second.Time)
	}
}

// TestClient_AuthExpired проверяет код истёкшей авторизации.
func TestClient_AuthExpired(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 505, "token expired", nil)
	})

	c := newTestClient(t, server.URL, severity.EncodingString)
	_, err := c.List(context.Background(), "", 1, 10)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидалась ErrUnauthorized, получено %v", err)
	}
}

// TestClient_HTTP401WithoutEnvelope — 401 без тела тоже означает истёкшую авторизацию.
func TestClient_HTTP401WithoutEnvelope(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, server.URL, severity.EncodingString)
	if _, err := c.Detail(context.Background(), "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидалась ErrUnauthorized, получено %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 500, "db down", nil)
	})

	c := newTestClient(t, server.URL, severity.EncodingString)
	err := c.Delete(context.Background(), []string{"a"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидалась APIError, получено %v", err)
	}
	if apiErr.Code != 500 || apiErr.Op != "delete" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

// TestClient_Detail проверяет Detail (POST /api/poc/content).
func TestClient_Detail(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["id"] != "a1" {
			t.Errorf("id = %q", req["id"])
		}
		writeEnvelope(w, 200, "", map[string]string{"content": "id: poc-1"})
	})

	c := newTestClient(t, server.URL, severity.EncodingString)
	content, err := c.Detail(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if content != "id: poc-1" {
		t.Errorf("content = %q", content)
	}
}

// TestClient_DeleteEmptyList — пустой список передаётся как [] а не null.
func TestClient_DeleteEmptyList(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"ids":[]`) {
			t.Errorf("тело = %s", body)
		}
		writeEnvelope(w, 200, "", nil)
	})

	c := newTestClient(t, server.URL, severity.EncodingString)
	if err := c.Delete(context.Background(), nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

// TestClient_Save проверяет выбор endpoint и кодирование уровня.
func TestClient_Save(t *testing.T) {
	var paths []string
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["level"] != float64(5) {
			t.Errorf("level = %v, ожидается 5", body["level"])
		}
		writeEnvelope(w, 200, "", nil)
	})

	c := newTestClient(t, server.URL, severity.EncodingInt)
	rec := model.Record{Name: "n", Level: severity.High}
	if err := c.Save(context.Background(), rec.WithContent("x")); err != nil {
		t.Fatal(err)
	}
	rec.ID = "a1"
	if err := c.Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if len(paths) != 2 || paths[0] != "/api/poc/add" || paths[1] != "/api/poc/update" {
		t.Errorf("paths = %v", paths)
	}
}

// TestClient_Import проверяет multipart-загрузку и возврат кода без ошибки.
func TestClient_Import(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/poc/data/import" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "pocs.zip" || string(data) != "payload" {
			t.Errorf("файл %q: %q", header.Filename, data)
		}
		writeEnvelope(w, 400, "bad archive", nil)
	})

	c := newTestClient(t, server.URL, severity.EncodingString)
	resp, err := c.Import(context.Background(), "pocs.zip", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if resp.Code != 400 || resp.Message != "bad archive" {
		t.Errorf("resp = %+v", resp)
	}
}

// TestClient_ImportAuthExpiredCodes — по умолчанию истёкшая авторизация
// приходит кодом 505 в конверте; HTTP 401 без конверта сводится к тому же коду.
func TestClient_ImportAuthExpiredCodes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"конверт 505", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 505, "token expired", nil)
		}},
		{"HTTP 401", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupMockAPI(t, tt.handler)
			c := newTestClient(t, server.URL, severity.EncodingString)

			resp, err := c.Import(context.Background(), "pocs.zip", strings.NewReader("payload"))
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if resp.Code != DefaultAuthExpiredCode || c.AuthExpiredCode() != 505 {
				t.Errorf("resp.Code = %d, AuthExpiredCode = %d, ожидается 505", resp.Code, c.AuthExpiredCode())
			}
		})
	}
}

func TestClient_TokenProviderError(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("запрос не должен отправляться без токена")
	})

	c := newTestClient(t, server.URL, severity.EncodingString).
		WithTokenProvider(func(ctx context.Context) (string, error) {
			return "", fmt.Errorf("нет токена")
		})
	if _, err := c.List(context.Background(), "", 1, 10); err == nil {
		t.Fatal("ожидалась ошибка")
	}
}

// TestClient_Login — login не передаёт Authorization.
func TestClient_Login(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("Login не должен передавать Authorization")
		}
		writeEnvelope(w, 200, "", map[string]string{"access_token": "jwt"})
	})

	c := newTestClient(t, server.URL, severity.EncodingString)
	token, err := c.Login(context.Background(), "admin", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "jwt" {
		t.Errorf("token = %q", token)
	}
}

func TestClient_Ping(t *testing.T) {
	server := setupMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, server.URL, severity.EncodingString)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
