package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/repository"
)

// ErrHistoryDisabled — журнал импортов не настроен (PA_DB_HOST не задан).
var ErrHistoryDisabled = errors.New("журнал импортов отключён")

// ImportHistoryService — журнал импортов PoC-файлов.
// С nil-репозиторием работает как отключённый: запись — no-op, чтение — ErrHistoryDisabled.
type ImportHistoryService struct {
	repo   repository.ImportHistoryRepository
	logger *slog.Logger
}

// NewImportHistoryService создаёт сервис журнала импортов.
func NewImportHistoryService(repo repository.ImportHistoryRepository, logger *slog.Logger) *ImportHistoryService {
	return &ImportHistoryService{
		repo:   repo,
		logger: logger.With(slog.String("component", "import_history")),
	}
}

// Enabled сообщает, ведётся ли журнал.
func (s *ImportHistoryService) Enabled() bool {
	return s != nil && s.repo != nil
}

// RecordImport сохраняет исход импорта (реализует importer.Recorder).
func (s *ImportHistoryService) RecordImport(ctx context.Context, rec model.ImportRecord) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Create(ctx, &rec); err != nil {
		return err
	}
	s.logger.Debug("Импорт записан в журнал",
		slog.String("id", rec.ID.String()),
		slog.String("username", rec.Username),
		slog.String("outcome", rec.Outcome),
	)
	return nil
}

// List возвращает страницу журнала и общее количество.
func (s *ImportHistoryService) List(ctx context.Context, filter repository.ImportHistoryFilter) ([]*model.ImportRecord, int, error) {
	if !s.Enabled() {
		return nil, 0, ErrHistoryDisabled
	}
	return s.repo.List(ctx, filter)
}
