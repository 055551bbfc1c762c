// Package auth — repository.go работает с таблицей login_attempts.
// Попытки входа нужны для защиты от brute-force.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей login_attempts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий попыток входа.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetRecentAttempts возвращает число неудачных попыток входа за окно window.
func (r *Repository) GetRecentAttempts(ctx context.Context, userID int64, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	err := r.db.QueryRow(ctx, query, userID, time.Now().UTC().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return count, nil
}

// LogAttempt записывает попытку входа (удачную или нет).
func (r *Repository) LogAttempt(ctx context.Context, userID int64, success bool) error {
	query := `INSERT INTO login_attempts (user_id, success) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, userID, success); err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}
