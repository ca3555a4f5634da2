package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/poc-admin/internal/domain/model"
)

// ImportHistoryFilter — параметры выборки журнала импортов.
type ImportHistoryFilter struct {
	// Username — только импорты пользователя (пусто — все)
	Username string
	// Outcome — только указанный исход (пусто — все)
	Outcome string
	Limit   int
	Offset  int
}

// ImportHistoryRepository — интерфейс для таблицы import_history.
type ImportHistoryRepository interface {
	// Create сохраняет запись журнала.
	Create(ctx context.Context, rec *model.ImportRecord) error
	// GetByID возвращает запись по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.ImportRecord, error)
	// List возвращает записи (новые первыми) и общее количество по фильтру.
	List(ctx context.Context, filter ImportHistoryFilter) ([]*model.ImportRecord, int, error)
}

// importHistoryRepo — реализация ImportHistoryRepository.
type importHistoryRepo struct {
	db DBTX
}

// NewImportHistoryRepository создаёт репозиторий журнала импортов.
func NewImportHistoryRepository(db DBTX) ImportHistoryRepository {
	return &importHistoryRepo{db: db}
}

// importHistoryColumns — порядок колонок для SELECT и scanImportRecord.
var importHistoryColumns = []string{
	"id", "username", "file_name", "file_size", "outcome",
	"code", "message", "refreshed", "created_at",
}

func (r *importHistoryRepo) Create(ctx context.Context, rec *model.ImportRecord) error {
	query, args, err := psql.Insert("import_history").
		Columns(importHistoryColumns...).
		Values(rec.ID, rec.Username, rec.FileName, rec.FileSize, rec.Outcome,
			rec.Code, rec.Message, rec.Refreshed, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("построение запроса import_history: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запись журнала %s", ErrConflict, rec.ID)
		}
		return fmt.Errorf("ошибка записи import_history: %w", err)
	}
	return nil
}

func (r *importHistoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ImportRecord, error) {
	query, args, err := psql.Select(importHistoryColumns...).
		From("import_history").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("построение запроса import_history: %w", err)
	}

	rec, err := scanImportRecord(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения import_history %s: %w", id, err)
	}
	return rec, nil
}

func (r *importHistoryRepo) List(ctx context.Context, filter ImportHistoryFilter) ([]*model.ImportRecord, int, error) {
	where := sq.And{}
	if filter.Username != "" {
		where = append(where, sq.Eq{"username": filter.Username})
	}
	if filter.Outcome != "" {
		where = append(where, sq.Eq{"outcome": filter.Outcome})
	}

	// Общее количество
	countQuery, countArgs, err := psql.Select("COUNT(*)").
		From("import_history").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("построение запроса подсчёта import_history: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта import_history: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	listQuery, listArgs, err := psql.Select(importHistoryColumns...).
		From("import_history").
		Where(where).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(max(filter.Offset, 0))).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("построение запроса import_history: %w", err)
	}

	rows, err := r.db.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки import_history: %w", err)
	}
	defer rows.Close()

	var result []*model.ImportRecord
	for rows.Next() {
		rec, err := scanImportRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения import_history: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации import_history: %w", err)
	}

	return result, total, nil
}

// scanImportRecord сканирует строку в порядке importHistoryColumns.
func scanImportRecord(row pgx.Row) (*model.ImportRecord, error) {
	rec := &model.ImportRecord{}
	err := row.Scan(
		&rec.ID, &rec.Username, &rec.FileName, &rec.FileSize, &rec.Outcome,
		&rec.Code, &rec.Message, &rec.Refreshed, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
