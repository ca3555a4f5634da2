// Пакет importer — импорт PoC из одного файла.
//
// Конечный автомат: Idle → FileStaged → Uploading → Idle.
// Повторный выбор файла заменяет подготовленный; во время загрузки выбор запрещён.
// После любого исхода загрузки координатор возвращается в Idle без файла.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/poc-admin/internal/domain/model"
)

// Значения по умолчанию.
const (
	DefaultSuccessCode     = 200
	DefaultAuthExpiredCode = 505
	DefaultTimeout         = 5 * time.Minute
	DefaultMaxFileSize     = 32 << 20
)

// Ошибки координатора.
var (
	ErrUploadInProgress = errors.New("импорт уже выполняется")
	ErrNoFileStaged     = errors.New("файл для импорта не выбран")
	ErrFileTooLarge     = errors.New("файл превышает допустимый размер")
	ErrEmptyFileName    = errors.New("пустое имя файла")
	ErrNoUploader       = errors.New("функция загрузки не задана")
)

// importsTotal — исходы импорта.
var importsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pa_imports_total",
		Help: "Количество импортов PoC-файлов по исходу",
	},
	[]string{"outcome"},
)

// State — состояние координатора.
type State int

const (
	Idle State = iota
	FileStaged
	Uploading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FileStaged:
		return "file_staged"
	case Uploading:
		return "uploading"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// File — подготовленный к импорту файл.
type File struct {
	Name string
	Data []byte
}

// Response — ответ PoC API на загрузку.
type Response struct {
	Code    int
	Message string
}

// UploadFunc отправляет файл одним multipart-запросом.
// Ошибка — только если ответ не получен.
type UploadFunc func(ctx context.Context, name string, r io.Reader) (Response, error)

// Refresher перезагружает список после импорта.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// TokenClearer сбрасывает токен при истёкшей авторизации.
type TokenClearer interface {
	Clear(ctx context.Context) error
}

// Recorder сохраняет исход импорта (журнал импортов).
type Recorder interface {
	RecordImport(ctx context.Context, rec model.ImportRecord) error
}

// Options — параметры координатора.
type Options struct {
	SuccessCode     int
	AuthExpiredCode int
	Timeout         time.Duration
	MaxFileSize     int64
	// Username — пользователь для журнала импортов
	Username string
}

// Result — исход импорта.
type Result struct {
	Outcome  string
	Code     int
	Message  string
	FileName string
	FileSize int64
	// Refreshed — список был перезагружен
	Refreshed bool
	// RefreshErr — ошибка перезагрузки списка (не влияет на Outcome)
	RefreshErr error
}

// Success сообщает об успешном импорте.
func (r *Result) Success() bool {
	return r.Outcome == model.ImportOutcomeSuccess
}

// Coordinator управляет импортом. Безопасен для конкурентного использования.
type Coordinator struct {
	mu     sync.Mutex
	state  State
	staged *File

	upload    UploadFunc
	refresher Refresher
	tokens    TokenClearer
	recorder  Recorder
	opts      Options
	logger    *slog.Logger
}

// New создаёт координатор. tokens и refresher могут быть nil.
func New(upload UploadFunc, refresher Refresher, tokens TokenClearer, opts Options, logger *slog.Logger) *Coordinator {
	if opts.SuccessCode == 0 {
		opts.SuccessCode = DefaultSuccessCode
	}
	if opts.AuthExpiredCode == 0 {
		opts.AuthExpiredCode = DefaultAuthExpiredCode
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	return &Coordinator{
		upload:    upload,
		refresher: refresher,
		tokens:    tokens,
		opts:      opts,
		logger:    logger.With(slog.String("component", "importer")),
	}
}

// SetRecorder подключает журнал импортов.
func (c *Coordinator) SetRecorder(r Recorder) {
	c.mu.Lock()
	c.recorder = r
	c.mu.Unlock()
}

// State возвращает текущее состояние.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StagedFile возвращает имя подготовленного файла.
func (c *Coordinator) StagedFile() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged == nil {
		return "", false
	}
	return c.staged.Name, true
}

// MaxFileSize возвращает ограничение размера файла.
func (c *Coordinator) MaxFileSize() int64 {
	return c.opts.MaxFileSize
}

// StageFile подготавливает файл, заменяя ранее выбранный.
// Недопустимый файл сбрасывает координатор в Idle.
func (c *Coordinator) StageFile(f File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stageLocked(f)
}

func (c *Coordinator) stageLocked(f File) error {
	if c.state == Uploading {
		return ErrUploadInProgress
	}

	if f.Name == "" {
		c.resetLocked()
		return ErrEmptyFileName
	}
	if int64(len(f.Data)) > c.opts.MaxFileSize {
		c.resetLocked()
		return fmt.Errorf("%w: %d > %d байт", ErrFileTooLarge, len(f.Data), c.opts.MaxFileSize)
	}

	c.staged = &File{Name: f.Name, Data: f.Data}
	c.state = FileStaged
	return nil
}

// Reset отменяет выбор файла. Во время загрузки не действует.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Uploading {
		c.resetLocked()
	}
}

func (c *Coordinator) resetLocked() {
	c.staged = nil
	c.state = Idle
}

// Submit загружает подготовленный файл.
// Ошибка возвращается только при нарушении предусловий; отказ PoC API и
// транспортная ошибка отражаются в Result.Outcome.
func (c *Coordinator) Submit(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	file, recorder, err := c.beginLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.run(ctx, file, recorder), nil
}

// Upload выбирает файл и загружает его под одной блокировкой: между выбором
// и началом загрузки конкурентный вызов не может подменить файл.
func (c *Coordinator) Upload(ctx context.Context, f File) (*Result, error) {
	c.mu.Lock()
	if err := c.stageLocked(f); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	file, recorder, err := c.beginLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.run(ctx, file, recorder), nil
}

// beginLocked переводит координатор в Uploading.
func (c *Coordinator) beginLocked() (*File, Recorder, error) {
	if c.state == Uploading {
		return nil, nil, ErrUploadInProgress
	}
	if c.state != FileStaged || c.staged == nil {
		return nil, nil, ErrNoFileStaged
	}
	if c.upload == nil {
		return nil, nil, ErrNoUploader
	}
	c.state = Uploading
	return c.staged, c.recorder, nil
}

// run выполняет загрузку и по завершении возвращает координатор в Idle.
func (c *Coordinator) run(ctx context.Context, file *File, recorder Recorder) *Result {
	defer func() {
		c.mu.Lock()
		c.resetLocked()
		c.mu.Unlock()
	}()

	res := &Result{FileName: file.Name, FileSize: int64(len(file.Data))}

	uploadCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	resp, err := c.upload(uploadCtx, file.Name, bytes.NewReader(file.Data))
	cancel()

	switch {
	case err != nil:
		res.Outcome = model.ImportOutcomeError
		res.Message = err.Error()
	case resp.Code == c.opts.SuccessCode:
		res.Outcome = model.ImportOutcomeSuccess
		res.Code = resp.Code
		res.Message = resp.Message
		c.refresh(ctx, res)
	case resp.Code == c.opts.AuthExpiredCode:
		res.Outcome = model.ImportOutcomeAuthExpired
		res.Code = resp.Code
		res.Message = resp.Message
		if c.tokens != nil {
			if clearErr := c.tokens.Clear(ctx); clearErr != nil {
				c.logger.Warn("Не удалось сбросить токен", slog.String("error", clearErr.Error()))
			}
		}
		c.refresh(ctx, res)
	default:
		res.Outcome = model.ImportOutcomeRejected
		res.Code = resp.Code
		res.Message = resp.Message
	}

	importsTotal.WithLabelValues(res.Outcome).Inc()
	c.logger.Info("Импорт завершён",
		slog.String("file", res.FileName),
		slog.Int64("size", res.FileSize),
		slog.String("outcome", res.Outcome),
		slog.Int("code", res.Code),
		slog.Bool("refreshed", res.Refreshed),
	)

	if recorder != nil {
		c.record(ctx, recorder, res)
	}

	return res
}

// refresh перезагружает список один раз.
func (c *Coordinator) refresh(ctx context.Context, res *Result) {
	if c.refresher == nil {
		return
	}
	res.Refreshed = true
	if err := c.refresher.Refresh(ctx); err != nil {
		res.RefreshErr = err
		c.logger.Warn("Ошибка обновления списка после импорта",
			slog.String("error", err.Error()),
		)
	}
}

// record сохраняет исход в журнал. Ошибка журнала не влияет на результат.
func (c *Coordinator) record(ctx context.Context, recorder Recorder, res *Result) {
	rec := model.ImportRecord{
		ID:        uuid.New(),
		Username:  c.opts.Username,
		FileName:  res.FileName,
		FileSize:  res.FileSize,
		Outcome:   res.Outcome,
		Code:      res.Code,
		Message:   res.Message,
		Refreshed: res.Refreshed,
		CreatedAt: time.Now().UTC(),
	}
	if err := recorder.RecordImport(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("Ошибка записи журнала импорта",
			slog.String("file", res.FileName),
			slog.String("error", err.Error()),
		)
	}
}
