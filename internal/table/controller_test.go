package table

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeBackend — детерминированный источник строк с журналом запросов.
type fakeBackend struct {
	mu      sync.Mutex
	rows    []string
	calls   []Query
	failErr error
}

func newFakeBackend(n int) *fakeBackend {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf("row-%02d", i)
	}
	return &fakeBackend{rows: rows}
}

func (b *fakeBackend) fetch(ctx context.Context, q Query) (Page[string], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, q)
	if b.failErr != nil {
		return Page[string]{}, b.failErr
	}

	start := (q.Page - 1) * q.PageSize
	if start > len(b.rows) {
		start = len(b.rows)
	}
	end := min(start+q.PageSize, len(b.rows))
	return Page[string]{Rows: append([]string(nil), b.rows[start:end]...), Total: len(b.rows)}, nil
}

func (b *fakeBackend) lastCall() Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func newTestController(b *fakeBackend) *Controller[string] {
	c := New[string](Options{}, testLogger())
	c.Register(b.fetch)
	return c
}

func TestController_NotRegistered(t *testing.T) {
	c := New[string](Options{}, testLogger())
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("ожидалась ErrNotRegistered, получено %v", err)
	}
}

func TestController_Defaults(t *testing.T) {
	c := New[string](Options{DefaultPageSize: 20}, testLogger())
	q := c.Query()
	if q.Page != 1 || q.PageSize != 20 || q.Filter != "" {
		t.Errorf("Query = %+v", q)
	}

	c = New[string](Options{DefaultPageSize: 7}, testLogger())
	if got := c.Query().PageSize; got != 10 {
		t.Errorf("недопустимый размер по умолчанию → %d, ожидается 10", got)
	}
}

// TestController_RowsMatchFetch — строки совпадают с результатом загрузки и не превышают total.
func TestController_RowsMatchFetch(t *testing.T) {
	tests := []struct {
		name   string
		action func(c *Controller[string]) error
	}{
		{"SetPage", func(c *Controller[string]) error { return c.SetPage(context.Background(), 3) }},
		{"SetPageSize", func(c *Controller[string]) error { return c.SetPageSize(context.Background(), 50) }},
		{"SetFilter", func(c *Controller[string]) error { return c.SetFilter(context.Background(), "row") }},
		{"PastLastPage", func(c *Controller[string]) error { return c.SetPage(context.Background(), 99) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(25)
			c := newTestController(b)

			if err := tt.action(c); err != nil {
				t.Fatalf("ошибка: %v", err)
			}

			want, _ := b.fetch(context.Background(), b.lastCall())
			rows := c.Rows()
			if len(rows) > c.Total() {
				t.Errorf("rows=%d > total=%d", len(rows), c.Total())
			}
			if fmt.Sprint(rows) != fmt.Sprint(want.Rows) {
				t.Errorf("rows = %v, ожидается %v", rows, want.Rows)
			}
			if c.Loading() {
				t.Error("loading должен быть сброшен")
			}
		})
	}
}

// TestController_SetFilterResetsPage — фильтр всегда сбрасывает страницу на 1.
func TestController_SetFilterResetsPage(t *testing.T) {
	b := newFakeBackend(100)
	c := newTestController(b)
	ctx := context.Background()

	if err := c.SetPage(ctx, 4); err != nil {
		t.Fatal(err)
	}
	if err := c.SetFilter(ctx, "apache"); err != nil {
		t.Fatal(err)
	}

	got := b.lastCall()
	if got.Page != 1 || got.Filter != "apache" {
		t.Errorf("запрос после SetFilter = %+v", got)
	}
	if c.Query().Page != 1 {
		t.Errorf("Query().Page = %d", c.Query().Page)
	}
}

func TestController_RefreshIdempotent(t *testing.T) {
	b := newFakeBackend(30)
	c := newTestController(b)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	first, firstTotal := c.Rows(), c.Total()

	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(c.Rows()) != fmt.Sprint(first) || c.Total() != firstTotal {
		t.Error("повторный Refresh изменил состояние")
	}
}

// TestController_FailureKeepsState — ошибка загрузки не трогает rows/total.
func TestController_FailureKeepsState(t *testing.T) {
	b := newFakeBackend(15)
	c := newTestController(b)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	rows, total := c.Rows(), c.Total()

	b.failErr = errors.New("backend down")
	err := c.SetPage(ctx, 2)
	if err == nil || !errors.Is(err, b.failErr) {
		t.Fatalf("ожидалась ошибка backend, получено %v", err)
	}

	if fmt.Sprint(c.Rows()) != fmt.Sprint(rows) || c.Total() != total {
		t.Error("состояние изменилось после ошибки")
	}
	if c.Loading() {
		t.Error("loading не сброшен после ошибки")
	}
	if c.Snapshot().Err == nil {
		t.Error("Snapshot().Err должен содержать ошибку")
	}
}

func TestController_InvalidArguments(t *testing.T) {
	b := newFakeBackend(5)
	c := newTestController(b)
	ctx := context.Background()

	if err := c.SetPage(ctx, 0); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("SetPage(0): %v", err)
	}
	if err := c.SetPageSize(ctx, 33); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("SetPageSize(33): %v", err)
	}
	if err := c.Apply(ctx, Query{Page: 1, PageSize: 3}); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("Apply: %v", err)
	}
	if len(b.calls) != 0 {
		t.Errorf("недопустимые аргументы вызвали загрузку: %v", b.calls)
	}
}

func TestController_ApplyAsIs(t *testing.T) {
	b := newFakeBackend(30)
	c := newTestController(b)

	q := Query{Filter: "rce", Page: 2, PageSize: 20}
	if err := c.Apply(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if got := b.lastCall(); got != q {
		t.Errorf("fetch(%+v), ожидается %+v", got, q)
	}
	if c.Query() != q {
		t.Errorf("Query = %+v", c.Query())
	}
}

// TestController_TotalNormalized — total меньше числа строк заменяется числом
// строк, расхождение с сервером логируется как WARN.
func TestController_TotalNormalized(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		want     int
		wantWarn bool
	}{
		{"отрицательный", -5, 2, true},
		{"меньше строк", 1, 2, true},
		{"совпадает", 2, 2, false},
		{"больше строк", 40, 40, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			c := New[string](Options{}, logger)
			c.Register(func(ctx context.Context, q Query) (Page[string], error) {
				return Page[string]{Rows: []string{"a", "b"}, Total: tt.total}, nil
			})
			if err := c.Refresh(context.Background()); err != nil {
				t.Fatal(err)
			}
			if c.Total() != tt.want {
				t.Errorf("Total = %d, ожидается %d", c.Total(), tt.want)
			}

			warned := strings.Contains(buf.String(), `"level":"WARN"`) &&
				strings.Contains(buf.String(), fmt.Sprintf(`"total":%d`, tt.total))
			if warned != tt.wantWarn {
				t.Errorf("WARN в логе = %v, ожидается %v: %s", warned, tt.wantWarn, buf.String())
			}
		})
	}
}

// TestController_LastRequestWins — результат устаревшего запроса отбрасывается.
func TestController_LastRequestWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	c := New[string](Options{}, testLogger())
	c.Register(func(ctx context.Context, q Query) (Page[string], error) {
		if q.Page == 1 {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return Page[string]{Rows: []string{"stale"}, Total: 1}, nil
		}
		return Page[string]{Rows: []string{"fresh"}, Total: 1}, nil
	})

	ctx := context.Background()
	errCh := make(chan error, 1)
	go func() { errCh <- c.SetPage(ctx, 1) }()

	<-started
	if err := c.SetPage(ctx, 2); err != nil {
		t.Fatalf("SetPage(2): %v", err)
	}
	close(release)

	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Errorf("первый запрос: ожидалась ErrSuperseded, получено %v", err)
	}
	if rows := c.Rows(); len(rows) != 1 || rows[0] != "fresh" {
		t.Errorf("rows = %v, ожидается [fresh]", rows)
	}
	if c.Query().Page != 2 {
		t.Errorf("Query().Page = %d", c.Query().Page)
	}
}

func TestController_FetchTimeout(t *testing.T) {
	c := New[string](Options{FetchTimeout: 20 * time.Millisecond}, testLogger())
	c.Register(func(ctx context.Context, q Query) (Page[string], error) {
		<-ctx.Done()
		return Page[string]{}, ctx.Err()
	})

	err := c.Refresh(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ожидался DeadlineExceeded, получено %v", err)
	}
	if c.Loading() {
		t.Error("loading не сброшен после таймаута")
	}
}

// TestController_Subscribe — подписчик видит переход loading → данные.
func TestController_Subscribe(t *testing.T) {
	b := newFakeBackend(3)
	c := newTestController(b)

	var states []State[string]
	unsubscribe := c.Subscribe(func(s State[string]) {
		states = append(states, s)
	})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(states) != 2 {
		t.Fatalf("получено %d уведомлений, ожидается 2", len(states))
	}
	if !states[0].Loading || states[1].Loading {
		t.Errorf("loading: %v → %v", states[0].Loading, states[1].Loading)
	}
	if states[1].Version <= states[0].Version {
		t.Error("версия не возрастает")
	}
	if len(states[1].Rows) != 3 {
		t.Errorf("rows = %v", states[1].Rows)
	}

	unsubscribe()
	unsubscribe()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Error("уведомление после отписки")
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{100, 20, 5},
		{5, 0, 1},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, ожидается %d", tt.total, tt.size, got, tt.want)
		}
	}
}
