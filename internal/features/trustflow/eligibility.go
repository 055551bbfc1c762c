// Package trustflow — eligibility.go: правила допуска пуша.
// Guard — консультативная проверка для UI; те же правила обязаны
// выполняться транзакционно внутри Ledger.Append (см. ledger.go),
// иначе два параллельных сабмита обойдут лимит (check-then-act).
package trustflow

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"serotonyl.ru/habit-backend/internal/common"
	"serotonyl.ru/habit-backend/internal/config"
)

// Policy — настраиваемые параметры допуска. Не литералы в коде:
// лимиты приходят из конфигурации (PUSH_LIMIT_*).
type Policy struct {
	ReasonMinLen   int           // минимальная длина обоснования
	LimitTotal     int           // пушей всего в окне
	LimitPerTarget int           // пушей одному получателю в окне
	Window         time.Duration // размер скользящего окна
}

// PolicyFromConfig собирает политику допуска из конфига приложения.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		ReasonMinLen:   cfg.PushReasonMinLen,
		LimitTotal:     cfg.PushLimitTotal,
		LimitPerTarget: cfg.PushLimitPerTarget,
		Window:         cfg.PushLimitWindow,
	}
}

// ValidateContent проверяет содержимое пуша: самопуш и длину обоснования.
// Эти ошибки — ValidationError: отклоняются сразу и не повторяются.
func (p Policy) ValidateContent(fromUserID, toUserID int64, reason string) error {
	if fromUserID == toUserID {
		return common.ErrSelfPush
	}
	if utf8.RuneCountInString(reason) < p.ReasonMinLen {
		return common.ErrReasonTooShort
	}
	return nil
}

// CheckCounts сравнивает счётчики из журнала с лимитами политики.
// totalInWindow — пуши отправителя всем получателям в окне,
// pairInWindow — пуши этой конкретной паре.
func (p Policy) CheckCounts(totalInWindow, pairInWindow int) error {
	if totalInWindow >= p.LimitTotal {
		return common.ErrPushLimitTotal
	}
	if pairInWindow >= p.LimitPerTarget {
		return common.ErrPushLimitPerTarget
	}
	return nil
}

// WindowStart возвращает начало скользящего окна относительно now.
func (p Policy) WindowStart(now time.Time) time.Time {
	return now.Add(-p.Window)
}

// Decision — результат консультативной проверки допуска.
type Decision struct {
	CanPush bool
	Reason  string // человекочитаемая причина отказа, пустая при допуске
}

// Guard выполняет проверку допуска перед сабмитом пуша.
type Guard struct {
	ledger Ledger
	policy Policy
}

// NewGuard создаёт проверку допуска поверх журнала пушей.
func NewGuard(ledger Ledger, policy Policy) *Guard {
	return &Guard{ledger: ledger, policy: policy}
}

// Check проверяет, может ли fromUserID дать пуш toUserID.
// Порядок правил: самопуш → общий лимит → лимит на пару.
// Результат консультативный: между Check и Append журнал может измениться.
func (g *Guard) Check(ctx context.Context, fromUserID, toUserID int64) (*Decision, error) {
	if fromUserID == toUserID {
		return &Decision{CanPush: false, Reason: common.ErrSelfPush.Error()}, nil
	}

	since := g.policy.WindowStart(time.Now().UTC())

	total, err := g.ledger.CountFromSince(ctx, fromUserID, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта пушей отправителя: %w", err)
	}
	pair, err := g.ledger.CountPairSince(ctx, fromUserID, toUserID, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта пушей пары: %w", err)
	}

	if err := g.policy.CheckCounts(total, pair); err != nil {
		if errors.Is(err, common.ErrPushLimitTotal) || errors.Is(err, common.ErrPushLimitPerTarget) {
			return &Decision{CanPush: false, Reason: err.Error()}, nil
		}
		return nil, err
	}

	return &Decision{CanPush: true}, nil
}
