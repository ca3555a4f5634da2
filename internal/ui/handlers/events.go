// events.go — SSE (Server-Sent Events) для обновления списка PoC в реальном времени.
// Каждый SSE-клиент обслуживается отдельной горутиной и подписан на контроллер
// таблицы своей сессии.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/table"
	uimiddleware "github.com/bigkaa/poc-admin/internal/ui/middleware"
)

// HealthSource — текущее состояние зависимостей (service.DephealthService).
type HealthSource interface {
	Health() map[string]bool
}

// EventsHandler — обработчик SSE endpoints.
type EventsHandler struct {
	health      HealthSource // может быть nil
	sseInterval time.Duration
	logger      *slog.Logger
}

// NewEventsHandler создаёт новый EventsHandler.
// sseInterval — интервал отправки статусов зависимостей (PA_SSE_INTERVAL).
func NewEventsHandler(health HealthSource, sseInterval time.Duration, logger *slog.Logger) *EventsHandler {
	if sseInterval <= 0 {
		sseInterval = 15 * time.Second
	}
	return &EventsHandler{
		health:      health,
		sseInterval: sseInterval,
		logger:      logger.With(slog.String("component", "ui.events")),
	}
}

// tableEvent — SSE-событие изменения таблицы. Клиент перезагружает страницу,
// если версия больше отображённой.
type tableEvent struct {
	Version uint64 `json:"version"`
	Loading bool   `json:"loading"`
	Total   int    `json:"total"`
	Error   string `json:"error,omitempty"`
}

// depStatusEvent — SSE-событие статусов зависимостей.
type depStatusEvent struct {
	Dependencies []depStatusItem `json:"dependencies"`
}

// depStatusItem — статус одной зависимости.
type depStatusItem struct {
	Name   string `json:"name"`
	Status string `json:"status"` // online, offline
}

// monitoredDeps — зависимости в событии dep-status.
var monitoredDeps = []string{"poc-api", "postgresql"}

// HandlePocEvents обрабатывает GET /admin/events/pocs — SSE endpoint.
// Сразу отправляет текущую версию таблицы, затем каждое изменение.
// Формат: event: table\ndata: {json}\n\n. Истёкшая авторизация PoC API
// завершает поток событием session-expired.
func (h *EventsHandler) HandlePocEvents(w http.ResponseWriter, r *http.Request) {
	st := uimiddleware.StateFromContext(r.Context())
	if st == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Настраиваем заголовки SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// ResponseController находит оригинальный http.Flusher через Unwrap()
	// обёрнутого ResponseWriter (logging middleware и др.).
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "SSE не поддерживается", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE клиент подключён",
		slog.String("username", st.Username),
		slog.String("remote_addr", r.RemoteAddr),
	)

	// Буфер на один снимок: подписчик не блокирует загрузку,
	// клиенту важна только последняя версия.
	updates := make(chan table.State[model.Record], 1)
	unsubscribe := st.Page.Subscribe(func(s table.State[model.Record]) {
		for {
			select {
			case updates <- s:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	h.send(w, rc, "table", newTableEvent(st.Page.Table().Snapshot()))
	h.sendDepStatus(w, rc)

	ticker := time.NewTicker(h.sseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE клиент отключён", slog.String("username", st.Username))
			return
		case s := <-updates:
			h.send(w, rc, "table", newTableEvent(s))
		case <-ticker.C:
			if st.Tokens.Cleared() {
				h.send(w, rc, "session-expired", struct{}{})
				return
			}
			h.sendDepStatus(w, rc)
		}
	}
}

func newTableEvent(s table.State[model.Record]) tableEvent {
	ev := tableEvent{Version: s.Version, Loading: s.Loading, Total: s.Total}
	if s.Err != nil {
		ev.Error = s.Err.Error()
	}
	return ev
}

// sendDepStatus отправляет SSE-событие со статусами зависимостей.
func (h *EventsHandler) sendDepStatus(w http.ResponseWriter, rc *http.ResponseController) {
	if h.health == nil {
		return
	}
	health := h.health.Health()

	event := depStatusEvent{Dependencies: make([]depStatusItem, 0, len(monitoredDeps))}
	for _, name := range monitoredDeps {
		ok, found := findHealthByPrefix(health, name)
		if !found {
			continue
		}
		status := "offline"
		if ok {
			status = "online"
		}
		event.Dependencies = append(event.Dependencies, depStatusItem{Name: name, Status: status})
	}
	h.send(w, rc, "dep-status", event)
}

// send сериализует событие и отправляет его клиенту.
func (h *EventsHandler) send(w http.ResponseWriter, rc *http.ResponseController, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Ошибка сериализации SSE-события",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	_ = rc.Flush()
}

// findHealthByPrefix ищет статус зависимости по префиксу имени.
// Health() из topologymetrics SDK возвращает ключи формата "dependency:host:port",
// поэтому ищем ключ, начинающийся с имени зависимости + ":".
// Если найдено несколько — ok только если все healthy.
func findHealthByPrefix(health map[string]bool, prefix string) (ok, found bool) {
	ok = true
	for key, healthy := range health {
		if strings.HasPrefix(key, prefix+":") || key == prefix {
			found = true
			ok = ok && healthy
		}
	}
	return ok && found, found
}
