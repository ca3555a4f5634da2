// Пакет table — асинхронный контроллер постраничной таблицы.
// Контроллер хранит запрос (фильтр, страница, размер), последние строки и total,
// вызывает привязанную функцию загрузки и уведомляет подписчиков о каждом переходе.
//
// Загрузка "последний запрос побеждает": новый запрос отменяет контекст
// предыдущего, а результат устаревшего запроса отбрасывается (ErrSuperseded).
package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Значения по умолчанию.
const (
	DefaultFetchTimeout = 15 * time.Second
)

// DefaultPageSizes — допустимые размеры страницы по умолчанию.
var DefaultPageSizes = []int{10, 20, 50, 100}

// Ошибки контроллера.
var (
	// ErrNotRegistered — функция загрузки не привязана.
	ErrNotRegistered = errors.New("функция загрузки не зарегистрирована")
	// ErrSuperseded — результат отброшен, так как после него был запущен новый запрос.
	ErrSuperseded = errors.New("запрос вытеснен более новым")
	// ErrInvalidPage — номер страницы меньше 1.
	ErrInvalidPage = errors.New("номер страницы должен быть >= 1")
	// ErrInvalidPageSize — размер страницы не входит в допустимый набор.
	ErrInvalidPageSize = errors.New("недопустимый размер страницы")
)

// Query — параметры запроса страницы.
type Query struct {
	Filter   string
	Page     int
	PageSize int
}

// Page — результат загрузки страницы.
type Page[T any] struct {
	Rows  []T
	Total int
}

// FetchFunc загружает страницу по запросу.
type FetchFunc[T any] func(ctx context.Context, q Query) (Page[T], error)

// State — снимок состояния контроллера.
// Version увеличивается при каждом переходе; подписчик может отбросить
// снимок с версией меньше уже обработанной.
type State[T any] struct {
	Query   Query
	Rows    []T
	Total   int
	Loading bool
	// Err — ошибка последней завершённой загрузки (nil после успешной)
	Err     error
	Version uint64
}

// Options — параметры контроллера.
type Options struct {
	PageSizes       []int
	DefaultPageSize int
	FetchTimeout    time.Duration
}

// Controller — контроллер таблицы. Безопасен для конкурентного использования.
type Controller[T any] struct {
	mu        sync.Mutex
	fetch     FetchFunc[T]
	pageSizes []int
	timeout   time.Duration

	query   Query
	rows    []T
	total   int
	loading bool
	lastErr error
	version uint64

	seq    uint64
	cancel context.CancelFunc

	subs    map[int]func(State[T])
	nextSub int

	logger *slog.Logger
}

// New создаёт контроллер. Страница — 1, фильтр пуст.
func New[T any](opts Options, logger *slog.Logger) *Controller[T] {
	sizes := opts.PageSizes
	if len(sizes) == 0 {
		sizes = DefaultPageSizes
	}
	sizes = slices.Clone(sizes)

	size := opts.DefaultPageSize
	if !slices.Contains(sizes, size) {
		size = sizes[0]
	}

	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &Controller[T]{
		pageSizes: sizes,
		timeout:   timeout,
		query:     Query{Page: 1, PageSize: size},
		subs:      make(map[int]func(State[T])),
		logger:    logger.With(slog.String("component", "table")),
	}
}

// Register привязывает функцию загрузки. Повторный вызов заменяет её.
func (c *Controller[T]) Register(fetch FetchFunc[T]) {
	c.mu.Lock()
	c.fetch = fetch
	c.mu.Unlock()
}

// SetFilter задаёт ключевое слово, сбрасывает страницу на 1 и загружает данные.
func (c *Controller[T]) SetFilter(ctx context.Context, keyword string) error {
	c.mu.Lock()
	q := c.query
	c.mu.Unlock()

	q.Filter = keyword
	q.Page = 1
	return c.load(ctx, q)
}

// SetPage переходит на страницу и загружает данные.
func (c *Controller[T]) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	c.mu.Lock()
	q := c.query
	c.mu.Unlock()

	q.Page = page
	return c.load(ctx, q)
}

// SetPageSize меняет размер страницы и загружает данные.
func (c *Controller[T]) SetPageSize(ctx context.Context, size int) error {
	if !slices.Contains(c.pageSizes, size) {
		return fmt.Errorf("%w: %d (допустимые: %v)", ErrInvalidPageSize, size, c.pageSizes)
	}
	c.mu.Lock()
	q := c.query
	c.mu.Unlock()

	q.PageSize = size
	return c.load(ctx, q)
}

// Refresh повторяет загрузку с текущими параметрами.
func (c *Controller[T]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	q := c.query
	c.mu.Unlock()

	return c.load(ctx, q)
}

// Apply задаёт запрос целиком (фильтр, страница, размер) и загружает данные.
// Используется адаптерами, получающими все параметры сразу (query string, флаги CLI);
// запрос применяется как есть, сброс страницы при смене фильтра — забота адаптера.
func (c *Controller[T]) Apply(ctx context.Context, q Query) error {
	if q.Page < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, q.Page)
	}
	if !slices.Contains(c.pageSizes, q.PageSize) {
		return fmt.Errorf("%w: %d (допустимые: %v)", ErrInvalidPageSize, q.PageSize, c.pageSizes)
	}
	return c.load(ctx, q)
}

// load выполняет протокол загрузки.
func (c *Controller[T]) load(ctx context.Context, q Query) error {
	c.mu.Lock()
	if c.fetch == nil {
		c.mu.Unlock()
		return ErrNotRegistered
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.cancel = cancel
	c.query = q
	c.loading = true
	fetch := c.fetch
	st := c.transitionLocked()
	c.mu.Unlock()

	defer cancel()
	c.notify(st)

	page, err := fetch(fetchCtx, q)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("Результат устаревшего запроса отброшен",
			slog.Int("page", q.Page),
			slog.String("filter", q.Filter),
		)
		return ErrSuperseded
	}

	c.cancel = nil
	c.loading = false
	if err == nil {
		c.rows = page.Rows
		c.total = max(page.Total, len(page.Rows), 0)
		c.lastErr = nil
	} else {
		c.lastErr = err
	}
	st = c.transitionLocked()
	c.mu.Unlock()

	if err == nil && page.Total < len(page.Rows) {
		c.logger.Warn("Сервер вернул total меньше числа строк, используется число строк",
			slog.Int("total", page.Total),
			slog.Int("rows", len(page.Rows)),
			slog.Int("page", q.Page),
			slog.String("filter", q.Filter),
		)
	}

	c.notify(st)

	if err != nil {
		c.logger.Warn("Ошибка загрузки страницы",
			slog.Int("page", q.Page),
			slog.Int("page_size", q.PageSize),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("загрузка страницы %d: %w", q.Page, err)
	}
	return nil
}

// transitionLocked увеличивает версию и возвращает снимок. Вызывается под c.mu.
func (c *Controller[T]) transitionLocked() State[T] {
	c.version++
	return c.snapshotLocked()
}

func (c *Controller[T]) snapshotLocked() State[T] {
	return State[T]{
		Query:   c.query,
		Rows:    slices.Clone(c.rows),
		Total:   c.total,
		Loading: c.loading,
		Err:     c.lastErr,
		Version: c.version,
	}
}

// notify вызывает подписчиков вне блокировки.
func (c *Controller[T]) notify(st State[T]) {
	c.mu.Lock()
	subs := make([]func(State[T]), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

// Subscribe регистрирует подписчика на изменения состояния.
// Подписчик вызывается синхронно из горутины, выполняющей загрузку,
// и не должен вызывать методы загрузки контроллера.
func (c *Controller[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Close отменяет загрузку в полёте.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// --- Аксессоры ---

// Rows возвращает копию текущих строк.
func (c *Controller[T]) Rows() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.rows)
}

// Total возвращает число строк по текущему фильтру на сервере.
func (c *Controller[T]) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Loading сообщает, выполняется ли загрузка.
func (c *Controller[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Query возвращает текущий запрос.
func (c *Controller[T]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// PageSizes возвращает допустимые размеры страницы.
func (c *Controller[T]) PageSizes() []int {
	return slices.Clone(c.pageSizes)
}

// Snapshot возвращает текущее состояние целиком.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// PageCount возвращает число страниц для total и размера страницы (минимум 1).
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
