// Пакет page — страница списка PoC: связывает контроллер таблицы, выбор строк,
// импорт и черновик редактора с PoC API.
//
// Страница не знает о способе отображения: веб-интерфейс и CLI вызывают одни и те же
// операции и подписываются на изменения состояния таблицы.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/poc-admin/internal/auth"
	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/domain/severity"
	"github.com/bigkaa/poc-admin/internal/importer"
	"github.com/bigkaa/poc-admin/internal/pocclient"
	"github.com/bigkaa/poc-admin/internal/selection"
	"github.com/bigkaa/poc-admin/internal/table"
)

// DefaultDetailTimeout — таймаут загрузки тела PoC для редактора.
const DefaultDetailTimeout = 15 * time.Second

// Ошибки страницы.
var (
	// ErrEditorClosed — операция требует открытого редактора.
	ErrEditorClosed = errors.New("редактор не открыт")
	// ErrEmptyName — черновик без имени.
	ErrEmptyName = errors.New("имя PoC не может быть пустым")
	// ErrNoRecordID — запись без ID нельзя открыть на редактирование.
	ErrNoRecordID = errors.New("не задан ID записи")
)

// RemoteAPI — операции PoC API, используемые страницей.
type RemoteAPI interface {
	List(ctx context.Context, filter string, page, pageSize int) (*pocclient.ListResult, error)
	Detail(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, ids []string) error
	Import(ctx context.Context, filename string, r io.Reader) (*pocclient.ImportResponse, error)
	Save(ctx context.Context, rec model.Record) error
}

// Confirmer запрашивает подтверждение массового удаления.
type Confirmer func(ctx context.Context) (bool, error)

// Confirmed — подтверждение без вопроса.
func Confirmed(context.Context) (bool, error) { return true, nil }

// Options — параметры страницы.
type Options struct {
	Table         table.Options
	Import        importer.Options
	DetailTimeout time.Duration
}

// ListPage — страница списка PoC одного пользователя.
type ListPage struct {
	api       RemoteAPI
	tokens    auth.TokenStore
	table     *table.Controller[model.Record]
	selection *selection.Tracker[model.Record]
	importer  *importer.Coordinator

	detailTimeout time.Duration

	mu          sync.Mutex
	editorOpen  bool
	draft       model.Record
	draftSeq    uint64
	contentDone chan struct{}
	contentErr  error

	logger *slog.Logger
}

// New создаёт страницу. api должен читать токен из tokens при каждом вызове.
func New(api RemoteAPI, tokens auth.TokenStore, opts Options, logger *slog.Logger) *ListPage {
	if opts.DetailTimeout <= 0 {
		opts.DetailTimeout = DefaultDetailTimeout
	}

	p := &ListPage{
		api:           api,
		tokens:        tokens,
		table:         table.New[model.Record](opts.Table, logger),
		selection:     selection.NewTracker(func(r model.Record) string { return r.ID }),
		detailTimeout: opts.DetailTimeout,
		logger:        logger.With(slog.String("component", "list_page")),
	}
	p.table.Register(p.fetch)
	p.importer = importer.New(p.upload, p, tokens, opts.Import, logger)

	return p
}

// fetch — функция загрузки для контроллера таблицы.
func (p *ListPage) fetch(ctx context.Context, q table.Query) (table.Page[model.Record], error) {
	res, err := p.api.List(ctx, q.Filter, q.Page, q.PageSize)
	if err != nil {
		p.handleAuthError(ctx, err)
		return table.Page[model.Record]{}, err
	}
	return table.Page[model.Record]{Rows: res.Records, Total: res.Total}, nil
}

// upload — функция загрузки файла для координатора импорта.
func (p *ListPage) upload(ctx context.Context, name string, r io.Reader) (importer.Response, error) {
	resp, err := p.api.Import(ctx, name, r)
	if err != nil {
		return importer.Response{}, err
	}
	return importer.Response{Code: resp.Code, Message: resp.Message}, nil
}

// handleAuthError сбрасывает токен, если PoC API сообщил об истёкшей авторизации.
func (p *ListPage) handleAuthError(ctx context.Context, err error) {
	if !errors.Is(err, pocclient.ErrUnauthorized) || p.tokens == nil {
		return
	}
	if clearErr := p.tokens.Clear(context.WithoutCancel(ctx)); clearErr != nil {
		p.logger.Warn("Не удалось сбросить токен", slog.String("error", clearErr.Error()))
		return
	}
	p.logger.Info("Авторизация истекла, токен сброшен")
}

// --- Таблица ---

// Table возвращает контроллер таблицы.
func (p *ListPage) Table() *table.Controller[model.Record] {
	return p.table
}

// Importer возвращает координатор импорта.
func (p *ListPage) Importer() *importer.Coordinator {
	return p.importer
}

// Subscribe подписывает на изменения состояния таблицы.
func (p *ListPage) Subscribe(fn func(table.State[model.Record])) (unsubscribe func()) {
	return p.table.Subscribe(fn)
}

// Load применяет запрос целиком и загружает страницу.
func (p *ListPage) Load(ctx context.Context, q table.Query) error {
	return ignoreSuperseded(p.table.Apply(ctx, q))
}

// Refresh перезагружает текущую страницу.
func (p *ListPage) Refresh(ctx context.Context) error {
	return ignoreSuperseded(p.table.Refresh(ctx))
}

// ignoreSuperseded — вытесненная загрузка не является ошибкой для вызывающего.
func ignoreSuperseded(err error) error {
	if errors.Is(err, table.ErrSuperseded) {
		return nil
	}
	return err
}

// --- Редактор ---

// Create открывает редактор с пустым черновиком (уровень info).
func (p *ListPage) Create() model.Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.draftSeq++
	p.draft = model.NewRecord()
	p.editorOpen = true
	p.contentDone = nil
	p.contentErr = nil
	return p.draft
}

// Edit открывает редактор с копией записи сразу, не дожидаясь тела PoC.
// Тело загружается асинхронно; результат отбрасывается, если за это время
// был открыт другой черновик или редактор закрыт.
func (p *ListPage) Edit(ctx context.Context, rec model.Record) (model.Record, error) {
	if rec.ID == "" {
		return model.Record{}, ErrNoRecordID
	}

	p.mu.Lock()
	p.draftSeq++
	seq := p.draftSeq
	p.draft = model.Record{ID: rec.ID, Name: rec.Name, Level: rec.Level, Time: rec.Time}
	p.editorOpen = true
	done := make(chan struct{})
	p.contentDone = done
	p.contentErr = nil
	draft := p.draft
	p.mu.Unlock()

	go p.loadContent(context.WithoutCancel(ctx), seq, rec.ID, done)

	return draft, nil
}

// loadContent загружает тело PoC в черновик.
func (p *ListPage) loadContent(ctx context.Context, seq uint64, id string, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(ctx, p.detailTimeout)
	defer cancel()

	content, err := p.api.Detail(ctx, id)
	if err != nil {
		p.handleAuthError(ctx, err)
		p.logger.Warn("Ошибка загрузки тела PoC",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.draftSeq || !p.editorOpen {
		return
	}
	if err != nil {
		p.contentErr = fmt.Errorf("загрузка тела PoC %s: %w", id, err)
		return
	}
	if !p.draft.ContentLoaded() {
		p.draft = p.draft.WithContent(content)
	}
}

// WaitContent ждёт завершения загрузки тела текущего черновика.
func (p *ListPage) WaitContent(ctx context.Context) error {
	p.mu.Lock()
	done := p.contentDone
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if done != p.contentDone {
		return nil
	}
	return p.contentErr
}

// Draft возвращает черновик и признак открытого редактора.
func (p *ListPage) Draft() (model.Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft, p.editorOpen
}

// UpdateDraft заменяет редактируемые поля черновика. ID и время не меняются.
// content == nil оставляет тело без изменений.
func (p *ListPage) UpdateDraft(name string, level severity.Level, content *string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.editorOpen {
		return ErrEditorClosed
	}
	p.draft.Name = name
	p.draft.Level = level
	if content != nil {
		p.draft = p.draft.WithContent(*content)
	}
	return nil
}

// CloseEditor закрывает редактор и отбрасывает черновик.
func (p *ListPage) CloseEditor() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draftSeq++
	p.draft = model.Record{}
	p.editorOpen = false
	p.contentDone = nil
	p.contentErr = nil
}

// SaveDraft сохраняет черновик в PoC API, закрывает редактор и обновляет список.
// При ошибке сохранения редактор остаётся открытым.
func (p *ListPage) SaveDraft(ctx context.Context) error {
	p.mu.Lock()
	if !p.editorOpen {
		p.mu.Unlock()
		return ErrEditorClosed
	}
	draft := p.draft
	p.mu.Unlock()

	if strings.TrimSpace(draft.Name) == "" {
		return ErrEmptyName
	}

	if err := p.api.Save(ctx, draft); err != nil {
		p.handleAuthError(ctx, err)
		return fmt.Errorf("сохранение PoC: %w", err)
	}

	p.logger.Info("PoC сохранён",
		slog.String("id", draft.ID),
		slog.String("name", draft.Name),
		slog.Bool("new", draft.IsNew()),
	)

	p.CloseEditor()
	return p.Refresh(ctx)
}

// --- Удаление ---

// Delete удаляет одну запись. Список обновляется независимо от исхода.
func (p *ListPage) Delete(ctx context.Context, id string) error {
	delErr := p.api.Delete(ctx, []string{id})
	if delErr != nil {
		p.handleAuthError(ctx, delErr)
		delErr = fmt.Errorf("удаление PoC %s: %w", id, delErr)
	} else {
		p.logger.Info("PoC удалён", slog.String("id", id))
	}

	return errors.Join(delErr, p.Refresh(ctx))
}

// BulkDelete удаляет выбранные записи после подтверждения.
// Отказ в подтверждении — ничего не делается. Пустой выбор передаётся
// в PoC API как пустой список. Список обновляется независимо от исхода.
// Возвращает ID, переданные на удаление.
func (p *ListPage) BulkDelete(ctx context.Context, src selection.Source[model.Record], confirm Confirmer) ([]string, error) {
	if confirm != nil {
		ok, err := confirm(ctx)
		if err != nil {
			return nil, fmt.Errorf("подтверждение удаления: %w", err)
		}
		if !ok {
			return nil, nil
		}
	}

	ids := p.selection.SelectedIDs(src).Slice()

	delErr := p.api.Delete(ctx, ids)
	if delErr != nil {
		p.handleAuthError(ctx, delErr)
		delErr = fmt.Errorf("массовое удаление PoC (%d): %w", len(ids), delErr)
	} else {
		p.logger.Info("PoC удалены", slog.Int("count", len(ids)))
	}

	return ids, errors.Join(delErr, p.Refresh(ctx))
}

// SelectionOf возвращает источник выбора из текущих строк с указанными ID.
// ID, отсутствующие на текущей странице, игнорируются.
func (p *ListPage) SelectionOf(ids []string) selection.Source[model.Record] {
	checked := selection.NewIDSet(ids...)
	return selection.SourceFunc[model.Record](func() []model.Record {
		var out []model.Record
		for _, r := range p.table.Rows() {
			if checked.Has(r.ID) {
				out = append(out, r)
			}
		}
		return out
	})
}

// FindRow ищет запись на текущей странице.
func (p *ListPage) FindRow(id string) (model.Record, bool) {
	for _, r := range p.table.Rows() {
		if r.ID == id {
			return r, true
		}
	}
	return model.Record{}, false
}

// --- Импорт ---

// Import выбирает файл и сразу загружает его. Пока идёт загрузка,
// повторный импорт получает importer.ErrUploadInProgress.
func (p *ListPage) Import(ctx context.Context, f importer.File) (*importer.Result, error) {
	return p.importer.Upload(ctx, f)
}

// Close отменяет загрузку таблицы в полёте.
func (p *ListPage) Close() {
	p.table.Close()
}
