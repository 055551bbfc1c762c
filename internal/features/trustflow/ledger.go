// Package trustflow — ledger.go: append-only журнал пушей.
// Допуск (лимиты) проверяется в той же транзакции, что и INSERT:
// advisory-lock по отправителю сериализует его параллельные сабмиты,
// поэтому предварительный Guard.Check остаётся только подсказкой для UI.
package trustflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/habit-backend/internal/common"
)

// Ledger — журнал пушей. Порядок выдачи всегда стабильный и тотальный:
// по created_at, при равенстве — по id.
type Ledger interface {
	// Append добавляет пуш, атомарно проверив правила допуска.
	Append(ctx context.Context, fromUserID, toUserID int64, kind PushKind, reason string) (*Push, error)
	// ListReceivedBy возвращает все пуши, полученные пользователем, по возрастанию времени.
	ListReceivedBy(ctx context.Context, targetUserID int64) ([]*Push, error)
	// ListBetween возвращает пуши конкретной пары отправитель→получатель.
	ListBetween(ctx context.Context, fromUserID, targetUserID int64) ([]*Push, error)
	// CountFromSince считает пуши отправителя всем получателям начиная с since.
	CountFromSince(ctx context.Context, fromUserID int64, since time.Time) (int, error)
	// CountPairSince считает пуши пары начиная с since.
	CountPairSince(ctx context.Context, fromUserID, toUserID int64, since time.Time) (int, error)
	// ListTargets возвращает всех пользователей, получавших хоть один пуш.
	ListTargets(ctx context.Context) ([]int64, error)
}

// LedgerRepo — реализация журнала поверх таблицы pushes.
type LedgerRepo struct {
	db     *pgxpool.Pool
	policy Policy
}

// NewLedgerRepo создаёт репозиторий журнала пушей.
func NewLedgerRepo(db *pgxpool.Pool, policy Policy) *LedgerRepo {
	return &LedgerRepo{db: db, policy: policy}
}

const pushColumns = `id, from_user_id, to_user_id, kind, reason, created_at`

// Append добавляет пуш. Содержимое валидируется до транзакции,
// лимиты — внутри неё, под advisory-lock по отправителю.
func (r *LedgerRepo) Append(ctx context.Context, fromUserID, toUserID int64, kind PushKind, reason string) (*Push, error) {
	if err := r.policy.ValidateContent(fromUserID, toUserID, reason); err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Сериализуем параллельные сабмиты одного отправителя.
	// Лок транзакционный — отпустится сам на commit/rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, fromUserID); err != nil {
		return nil, fmt.Errorf("ошибка advisory-lock: %w", err)
	}

	since := r.policy.WindowStart(time.Now().UTC())

	var total, pair int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM pushes WHERE from_user_id = $1 AND created_at >= $2`,
		fromUserID, since,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта пушей отправителя: %w", err)
	}
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM pushes WHERE from_user_id = $1 AND to_user_id = $2 AND created_at >= $3`,
		fromUserID, toUserID, since,
	).Scan(&pair)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта пушей пары: %w", err)
	}

	if err := r.policy.CheckCounts(total, pair); err != nil {
		return nil, err
	}

	p := &Push{
		ID:         uuid.New(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Kind:       kind,
		Reason:     reason,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO pushes (id, from_user_id, to_user_id, kind, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, p.ID, p.FromUserID, p.ToUserID, string(p.Kind), p.Reason).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи пуша: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации пуша: %w", err)
	}
	return p, nil
}

// ListReceivedBy возвращает пуши получателя по возрастанию времени.
func (r *LedgerRepo) ListReceivedBy(ctx context.Context, targetUserID int64) ([]*Push, error) {
	query := `
		SELECT ` + pushColumns + `
		FROM pushes
		WHERE to_user_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пушей получателя: %w", err)
	}
	defer rows.Close()
	return scanPushes(rows)
}

// ListBetween возвращает пуши пары по возрастанию времени.
func (r *LedgerRepo) ListBetween(ctx context.Context, fromUserID, targetUserID int64) ([]*Push, error) {
	query := `
		SELECT ` + pushColumns + `
		FROM pushes
		WHERE from_user_id = $1 AND to_user_id = $2
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, fromUserID, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пушей пары: %w", err)
	}
	defer rows.Close()
	return scanPushes(rows)
}

// CountFromSince считает пуши отправителя начиная с since.
func (r *LedgerRepo) CountFromSince(ctx context.Context, fromUserID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM pushes WHERE from_user_id = $1 AND created_at >= $2`,
		fromUserID, since,
	).Scan(&count)
	return count, err
}

// CountPairSince считает пуши пары начиная с since.
func (r *LedgerRepo) CountPairSince(ctx context.Context, fromUserID, toUserID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM pushes WHERE from_user_id = $1 AND to_user_id = $2 AND created_at >= $3`,
		fromUserID, toUserID, since,
	).Scan(&count)
	return count, err
}

// ListTargets возвращает всех получателей пушей (для ночного пересчёта).
func (r *LedgerRepo) ListTargets(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT to_user_id FROM pushes`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения получателей: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка чтения получателя: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPushes(rows pgx.Rows) ([]*Push, error) {
	var pushes []*Push
	for rows.Next() {
		var p Push
		var kind string
		if err := rows.Scan(&p.ID, &p.FromUserID, &p.ToUserID, &kind, &p.Reason, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения пуша: %w", err)
		}
		k, err := ParsePushKind(kind)
		if err != nil {
			// В базе CHECK на kind, сюда попасть нельзя
			return nil, fmt.Errorf("%w: %s", common.ErrUnknownPushKind, kind)
		}
		p.Kind = k
		pushes = append(pushes, &p)
	}
	return pushes, rows.Err()
}
