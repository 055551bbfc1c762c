// Package trustflow — cache.go: материализованная репутация.
// Перезапись разрешена только со строго более свежим computed_at:
// медленный-но-ранний пересчёт не затрёт быстрый-но-поздний.
package trustflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cache — быстрый путь чтения репутации. Get без вычислений,
// Put с монотонной защитой по computed_at.
type Cache interface {
	// Get возвращает кешированную репутацию или (nil, nil), если её ещё нет.
	Get(ctx context.Context, userID int64) (*UserReputation, error)
	// Put сохраняет репутацию, если она свежее уже сохранённой.
	Put(ctx context.Context, rep *UserReputation) error
}

// CacheRepo — реализация кеша поверх таблицы reputation_cache.
type CacheRepo struct {
	db *pgxpool.Pool
}

// NewCacheRepo создаёт репозиторий кеша репутации.
func NewCacheRepo(db *pgxpool.Pool) *CacheRepo {
	return &CacheRepo{db: db}
}

// Get возвращает последнее известное значение. Отсутствие строки — не ошибка.
func (r *CacheRepo) Get(ctx context.Context, userID int64) (*UserReputation, error) {
	query := `
		SELECT user_id, value, color_band, computed_at
		FROM reputation_cache
		WHERE user_id = $1
	`
	var rep UserReputation
	var band string
	err := r.db.QueryRow(ctx, query, userID).Scan(&rep.UserID, &rep.Value, &band, &rep.ComputedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения кеша репутации (user_id=%d): %w", userID, err)
	}
	rep.ColorBand = ColorBand(band)
	return &rep, nil
}

// Put записывает значение с монотонной защитой: условие в DO UPDATE
// отбрасывает запись с computed_at не новее сохранённого.
func (r *CacheRepo) Put(ctx context.Context, rep *UserReputation) error {
	query := `
		INSERT INTO reputation_cache (user_id, value, color_band, computed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET value = EXCLUDED.value,
		    color_band = EXCLUDED.color_band,
		    computed_at = EXCLUDED.computed_at
		WHERE reputation_cache.computed_at < EXCLUDED.computed_at
	`
	_, err := r.db.Exec(ctx, query, rep.UserID, rep.Value, string(rep.ColorBand), rep.ComputedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи кеша репутации (user_id=%d): %w", rep.UserID, err)
	}
	return nil
}
