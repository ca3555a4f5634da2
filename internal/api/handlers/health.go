// health.go — обработчики health endpoints PoC Admin.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (PoC API доступен, PostgreSQL — если включён журнал импортов)
// /metrics — Prometheus метрики
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/poc-admin/internal/config"
)

// serviceName — имя сервиса в ответах health.
const serviceName = "poc-admin"

// pingTimeout — таймаут проверки PoC API.
const pingTimeout = 3 * time.Second

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady(ctx context.Context) (status string, message string)
}

// PingFunc — проверка доступности удалённого сервиса.
type PingFunc func(ctx context.Context) error

// PingChecker адаптирует PingFunc к ReadinessChecker.
type PingChecker struct {
	name string
	ping PingFunc
}

// NewPingChecker создаёт проверку по PingFunc.
func NewPingChecker(name string, ping PingFunc) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// CheckReady выполняет ping с таймаутом.
func (c *PingChecker) CheckReady(ctx context.Context) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return "fail", fmt.Sprintf("%s недоступен: %v", c.name, err)
	}
	return "ok", "доступен"
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	pocChecker  ReadinessChecker
	pgChecker   ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// pocChecker — проверка PoC API (nil → "fail").
// pgChecker — проверка PostgreSQL; nil означает, что журнал импортов отключён.
func NewHealthHandler(pocChecker, pgChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		pocChecker:  pocChecker,
		pgChecker:   pgChecker,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		PocAPI     healthCheckResult `json:"poc_api"`
		PostgreSQL healthCheckResult `json:"postgresql"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	resp := healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady — readiness probe. Проверяет PoC API и PostgreSQL.
// Недоступный PostgreSQL даёт degraded: консоль работает без журнала импортов.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	if h.pocChecker != nil {
		status, msg := h.pocChecker.CheckReady(r.Context())
		resp.Checks.PocAPI = healthCheckResult{Status: status, Message: msg}
	} else {
		resp.Checks.PocAPI = healthCheckResult{Status: "fail", Message: "не инициализирован"}
	}

	pgStatus := "ok"
	if h.pgChecker != nil {
		status, msg := h.pgChecker.CheckReady(r.Context())
		resp.Checks.PostgreSQL = healthCheckResult{Status: status, Message: msg}
		if status == "fail" {
			pgStatus = "degraded"
		}
	} else {
		resp.Checks.PostgreSQL = healthCheckResult{Status: "disabled", Message: "журнал импортов отключён"}
	}

	resp.Status = overallStatus(resp.Checks.PocAPI.Status, pgStatus)

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == "fail" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
