// metrics.go — Prometheus HTTP метрики для PoC Admin.
// Регистрирует метрики: pa_http_requests_total, pa_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pa_http_requests_total",
			Help: "Общее количество HTTP-запросов к PoC Admin",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pa_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к PoC Admin в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем ID PoC на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// staticPaths — пути без параметров, попадающие в лейбл как есть.
var staticPaths = map[string]bool{
	"/health/live":             true,
	"/health/ready":            true,
	"/metrics":                 true,
	"/admin":                   true,
	"/admin/login":             true,
	"/admin/logout":            true,
	"/admin/set-language":      true,
	"/admin/pocs":              true,
	"/admin/pocs/new":          true,
	"/admin/pocs/save":         true,
	"/admin/pocs/bulk-delete":  true,
	"/admin/pocs/import":       true,
	"/admin/pocs/state":        true,
	"/admin/pocs/editor/close": true,
	"/admin/events/pocs":       true,
	"/admin/imports":           true,
	"/api/v1/pocs":             true,
	"/api/v1/pocs/bulk-delete": true,
	"/api/v1/pocs/import":      true,
	"/api/v1/imports":          true,
}

// idPrefixes — пути, у которых следующий сегмент — ID PoC.
var idPrefixes = []string{"/admin/pocs/", "/api/v1/pocs/"}

// normalizePath заменяет ID PoC в пути на {id} для предотвращения
// взрывного роста кардинальности метрик. Неизвестные пути сводятся к "other".
// /admin/pocs/65f1c0a2.../edit → /admin/pocs/{id}/edit
func normalizePath(path string) string {
	if staticPaths[path] {
		return path
	}
	if strings.HasPrefix(path, "/static/") {
		return "/static/*"
	}

	for _, prefix := range idPrefixes {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" {
			continue
		}
		_, suffix, hasSuffix := strings.Cut(rest, "/")
		switch {
		case !hasSuffix:
			return prefix + "{id}"
		case suffix == "edit" || suffix == "delete":
			return prefix + "{id}/" + suffix
		}
	}

	return "other"
}
