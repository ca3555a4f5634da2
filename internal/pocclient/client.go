// Пакет pocclient — HTTP-клиент PoC API (JSON поверх HTTP, импорт — multipart).
// Поддерживает TLS с кастомным CA (PA_POC_API_CA_CERT_PATH).
// Операции: List, Detail, Delete, Import, Save, Login.
// Все ответы PoC API приходят в конверте {"code": N, "message": "...", "data": ...}.
package pocclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/domain/severity"
)

// Коды ответа PoC API по умолчанию.
const (
	DefaultSuccessCode     = 200
	DefaultAuthExpiredCode = 505
)

// Ошибки клиента.
var (
	// ErrUnauthorized — PoC API сообщил, что авторизация истекла.
	ErrUnauthorized = errors.New("авторизация PoC API истекла")
)

// APIError — PoC API вернул код, отличный от успешного.
type APIError struct {
	Op      string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("PoC API %s: код %d: %s", e.Op, e.Code, e.Message)
}

// remoteRequestsTotal — вызовы PoC API по операциям и результатам.
var remoteRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pa_remote_requests_total",
		Help: "Количество вызовов PoC API",
	},
	[]string{"op", "result"},
)

// TokenProvider — функция, возвращающая bearer-токен для запроса.
// Вызывается при каждом запросе, токен не кэшируется.
type TokenProvider func(ctx context.Context) (string, error)

// Options — параметры клиента.
type Options struct {
	// BaseURL — базовый URL PoC API
	BaseURL string
	// CACertPath — путь к CA-сертификату (пусто — системный пул)
	CACertPath string
	// Timeout — таймаут HTTP-запроса
	Timeout time.Duration
	// SuccessCode — код успешного ответа в конверте
	SuccessCode int
	// AuthExpiredCode — код "авторизация истекла"
	AuthExpiredCode int
	// Codec — кодирование уровня критичности
	Codec *severity.Codec
}

// Client — HTTP-клиент PoC API.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	successCode     int
	authExpiredCode int
	codec           *severity.Codec
	tokenProvider   TokenProvider
	logger          *slog.Logger
}

// New создаёт клиент PoC API без провайдера токена.
// Провайдер задаётся через WithTokenProvider (отдельно для каждой сессии).
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("не задан базовый URL PoC API")
	}
	if opts.Codec == nil {
		return nil, errors.New("не задан кодек уровня критичности")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.SuccessCode == 0 {
		opts.SuccessCode = DefaultSuccessCode
	}
	if opts.AuthExpiredCode == 0 {
		opts.AuthExpiredCode = DefaultAuthExpiredCode
	}

	httpClient := &http.Client{Timeout: opts.Timeout}

	if opts.CACertPath != "" {
		tlsConfig, err := buildTLSConfig(opts.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата PoC API: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат PoC API добавлен в пул доверия",
			slog.String("ca_cert", opts.CACertPath),
		)
	}

	return &Client{
		httpClient:      httpClient,
		baseURL:         normalizeURL(opts.BaseURL),
		successCode:     opts.SuccessCode,
		authExpiredCode: opts.AuthExpiredCode,
		codec:           opts.Codec,
		logger:          logger.With(slog.String("component", "poc_client")),
	}, nil
}

// WithTokenProvider возвращает копию клиента с указанным провайдером токена.
// HTTP-транспорт общий для всех копий.
func (c *Client) WithTokenProvider(tp TokenProvider) *Client {
	cp := *c
	cp.tokenProvider = tp
	return &cp
}

// BaseURL возвращает базовый URL PoC API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SuccessCode возвращает код успешного ответа.
func (c *Client) SuccessCode() int {
	return c.successCode
}

// AuthExpiredCode возвращает код истёкшей авторизации.
func (c *Client) AuthExpiredCode() int {
	return c.authExpiredCode
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// --- Wire-типы ---

// envelope — стандартный конверт ответа PoC API.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// wireRecord — PoC-запись в формате PoC API.
type wireRecord struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Level   json.RawMessage `json:"level"`
	Time    string          `json:"time,omitempty"`
	Content *string         `json:"content,omitempty"`
}

// ListResult — страница списка PoC.
type ListResult struct {
	Records []model.Record
	Total   int
}

// ImportResponse — ответ PoC API на импорт. Code сравнивается вызывающим
// с кодами успеха/истёкшей авторизации.
type ImportResponse struct {
	Code    int
	Message string
}

// --- Операции ---

// List запрашивает страницу PoC-записей.
// POST /api/poc/data {search, pageIndex, pageSize} → {list, total}.
func (c *Client) List(ctx context.Context, filter string, page, pageSize int) (*ListResult, error) {
	body := map[string]any{
		"search":    filter,
		"pageIndex": page,
		"pageSize":  pageSize,
	}

	var data struct {
		List  []wireRecord `json:"list"`
		Total int          `json:"total"`
	}
	if err := c.call(ctx, "list", "/api/poc/data", body, &data); err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(data.List))
	for _, w := range data.List {
		records = append(records, c.fromWire(w))
	}

	return &ListResult{Records: records, Total: data.Total}, nil
}

// Detail запрашивает тело PoC по ID.
// POST /api/poc/content {id} → {content}.
func (c *Client) Detail(ctx context.Context, id string) (string, error) {
	var data struct {
		Content string `json:"content"`
	}
	if err := c.call(ctx, "detail", "/api/poc/content", map[string]string{"id": id}, &data); err != nil {
		return "", err
	}
	return data.Content, nil
}

// Delete удаляет PoC-записи по списку ID.
// POST /api/poc/delete {ids}. Пустой список передаётся как есть.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return c.call(ctx, "delete", "/api/poc/delete", map[string][]string{"ids": ids}, nil)
}

// Save создаёт (ID пуст) или обновляет PoC-запись.
// POST /api/poc/add | /api/poc/update.
func (c *Client) Save(ctx context.Context, rec model.Record) error {
	level, err := c.codec.EncodeJSON(rec.Level)
	if err != nil {
		return fmt.Errorf("кодирование уровня: %w", err)
	}

	w := wireRecord{
		ID:      rec.ID,
		Name:    rec.Name,
		Level:   level,
		Content: rec.Content,
	}

	op, path := "update", "/api/poc/update"
	if rec.IsNew() {
		op, path = "add", "/api/poc/add"
	}
	return c.call(ctx, op, path, w, nil)
}

// Login получает bearer-токен по логину и паролю.
// POST /api/user/login {username, password} → {access_token}.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}

	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(ctx, "login", "/api/user/login", body, &data, false); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", errors.New("PoC API не вернул access_token")
	}
	return data.AccessToken, nil
}

// Import загружает файл одним multipart-запросом (поле "file").
// POST /api/poc/data/import. Неуспешный код возвращается в ImportResponse,
// ошибка — только если ответ не получен или не разобран.
func (c *Client) Import(ctx context.Context, filename string, r io.Reader) (*ImportResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("создание multipart-части: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("запись файла в multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("закрытие multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/poc/data/import", &buf)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Import: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := c.authorize(ctx, req); err != nil {
		remoteRequestsTotal.WithLabelValues("import", "no_token").Inc()
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		remoteRequestsTotal.WithLabelValues("import", "transport_error").Inc()
		return nil, fmt.Errorf("запрос Import к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	env, err := c.readEnvelope(resp)
	if err != nil {
		remoteRequestsTotal.WithLabelValues("import", "bad_response").Inc()
		return nil, fmt.Errorf("Import: %w", err)
	}

	remoteRequestsTotal.WithLabelValues("import", c.resultLabel(env.Code)).Inc()
	return &ImportResponse{Code: env.Code, Message: env.Message}, nil
}

// Ping проверяет доступность PoC API (любой ответ < 500).
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса Ping: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос Ping к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("PoC API %s вернул статус %d", c.baseURL, resp.StatusCode)
	}
	return nil
}

// --- Вспомогательные функции ---

// call выполняет авторизованный JSON-запрос.
func (c *Client) call(ctx context.Context, op, path string, body, out any) error {
	return c.doJSON(ctx, op, path, body, out, true)
}

// doJSON отправляет POST с JSON-телом, проверяет код конверта и декодирует data в out.
func (c *Client) doJSON(ctx context.Context, op, path string, body, out any, withAuth bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("сериализация запроса %s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("создание запроса %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if withAuth {
		if err := c.authorize(ctx, req); err != nil {
			remoteRequestsTotal.WithLabelValues(op, "no_token").Inc()
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		remoteRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		return fmt.Errorf("запрос %s к %s: %w", op, c.baseURL, err)
	}
	defer resp.Body.Close()

	env, err := c.readEnvelope(resp)
	if err != nil {
		remoteRequestsTotal.WithLabelValues(op, "bad_response").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	remoteRequestsTotal.WithLabelValues(op, c.resultLabel(env.Code)).Inc()

	switch env.Code {
	case c.successCode:
	case c.authExpiredCode:
		return fmt.Errorf("%s: %w: %s", op, ErrUnauthorized, env.Message)
	default:
		return &APIError{Op: op, Code: env.Code, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("декодирование ответа %s: %w", op, err)
	}
	return nil
}

// authorize добавляет заголовок Authorization, читая токен в момент запроса.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokenProvider == nil {
		return nil
	}
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return fmt.Errorf("получение токена для PoC API: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// readEnvelope читает конверт. HTTP 401 без тела трактуется как код истёкшей авторизации.
func (c *Client) readEnvelope(resp *http.Response) (*envelope, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа: %w", err)
	}

	var env envelope
	if jsonErr := json.Unmarshal(body, &env); jsonErr != nil || env.Code == 0 {
		if resp.StatusCode == http.StatusUnauthorized {
			return &envelope{Code: c.authExpiredCode, Message: strings.TrimSpace(string(body))}, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("PoC API вернул статус %d: %s", resp.StatusCode, string(body))
		}
		if jsonErr != nil {
			return nil, fmt.Errorf("декодирование конверта: %w", jsonErr)
		}
		return nil, errors.New("в ответе отсутствует code")
	}

	return &env, nil
}

// fromWire преобразует wire-запись в модель. Неизвестный уровень → Unknown.
func (c *Client) fromWire(w wireRecord) model.Record {
	level, err := c.codec.DecodeJSON(w.Level)
	if err != nil {
		c.logger.Debug("Неизвестный уровень критичности, используется unknown",
			slog.String("id", w.ID),
			slog.String("level", string(w.Level)),
		)
		level = severity.Unknown
	}

	return model.Record{
		ID:      w.ID,
		Name:    w.Name,
		Level:   level,
		Time:    parseTime(w.Time),
		Content: w.Content,
	}
}

// resultLabel — значение лейбла result для метрик.
func (c *Client) resultLabel(code int) string {
	switch code {
	case c.successCode:
		return "ok"
	case c.authExpiredCode:
		return "auth_expired"
	default:
		return "rejected"
	}
}

// timeLayouts — форматы времени, встречающиеся в PoC API.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTime разбирает время создания. Нераспознанное значение → нулевое время.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
