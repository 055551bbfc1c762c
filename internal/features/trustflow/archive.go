// Package trustflow — archive.go: аудит-архив вкладов.
// Одна запись на пуш, insert-once: повторная вставка — no-op,
// замороженная история не пересчитывается и не перезаписывается.
package trustflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Archive хранит замороженные вклады пушей.
type Archive interface {
	// RecordIfAbsent сохраняет вклад, если записи для пуша ещё нет (идемпотентно).
	RecordIfAbsent(ctx context.Context, rec *ContributionRecord) error
	// GetByPushIDs возвращает записи для набора пушей.
	GetByPushIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ContributionRecord, error)
}

// ArchiveRepo — реализация архива поверх таблицы contribution_archive.
type ArchiveRepo struct {
	db *pgxpool.Pool
}

// NewArchiveRepo создаёт репозиторий архива вкладов.
func NewArchiveRepo(db *pgxpool.Pool) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

// RecordIfAbsent — атомарный insert-if-missing. Два параллельных пересчёта
// одного пуша не создадут дубликат и не конфликтуют.
func (r *ArchiveRepo) RecordIfAbsent(ctx context.Context, rec *ContributionRecord) error {
	query := `
		INSERT INTO contribution_archive (push_id, base_weight, repeat_count, effective_weight, contribution)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (push_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		rec.PushID, rec.BaseWeight, rec.RepeatCount, rec.EffectiveWeight, rec.Contribution,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи вклада (push_id=%s): %w", rec.PushID, err)
	}
	return nil
}

// GetByPushIDs возвращает замороженные вклады для набора пушей.
// Отсутствующие пуши просто не попадают в результат.
func (r *ArchiveRepo) GetByPushIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ContributionRecord, error) {
	result := make(map[uuid.UUID]*ContributionRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	// Передаём uuid как строки — pgx сам приведёт к uuid[]
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	query := `
		SELECT push_id, base_weight, repeat_count, effective_weight, contribution, created_at
		FROM contribution_archive
		WHERE push_id = ANY($1::uuid[])
	`
	rows, err := r.db.Query(ctx, query, strIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения архива вкладов: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec ContributionRecord
		err := rows.Scan(
			&rec.PushID, &rec.BaseWeight, &rec.RepeatCount,
			&rec.EffectiveWeight, &rec.Contribution, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения вклада: %w", err)
		}
		result[rec.PushID] = &rec
	}
	return result, rows.Err()
}
