// Package trustflow — compiler.go: пересчёт репутации.
// Чистая функция над снимком журнала: ничего не пишет, результат
// и новые (ещё не замороженные) вклады отдаёт вызывающему.
package trustflow

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Compiler пересчитывает репутацию одного пользователя.
type Compiler struct {
	ledger   Ledger
	cache    Cache
	archive  Archive
	minValue float64 // пол значения (TRUST_MIN_VALUE)
}

// NewCompiler создаёт пересчётчик репутации.
func NewCompiler(ledger Ledger, cache Cache, archive Archive, minValue float64) *Compiler {
	return &Compiler{ledger: ledger, cache: cache, archive: archive, minValue: minValue}
}

// Contribution — вклад одного пуша в итоговое значение.
// Fresh=true значит записи в архиве ещё не было: вклад посчитан сейчас
// и подлежит заморозке (RecordIfAbsent) вызывающей стороной.
type Contribution struct {
	Push   *Push
	Record *ContributionRecord
	Fresh  bool
}

// Result — итог пересчёта.
type Result struct {
	UserID        int64
	Value         float64
	ColorBand     ColorBand
	Contributions []*Contribution
	ComputedAt    time.Time
}

// Includes сообщает, участвовал ли пуш в этом пересчёте.
// Нужно оркестратору сабмита: реплика могла ещё не отдать свежий пуш.
func (r *Result) Includes(pushID uuid.UUID) bool {
	for _, c := range r.Contributions {
		if c.Push.ID == pushID {
			return true
		}
	}
	return false
}

// Reputation — представление результата для кеша.
func (r *Result) Reputation() *UserReputation {
	return &UserReputation{
		UserID:     r.UserID,
		Value:      r.Value,
		ColorBand:  r.ColorBand,
		ComputedAt: r.ComputedAt,
	}
}

// Recompute пересчитывает репутацию targetUserID по всему журналу.
//
// Политика заморозки: вклад, уже попавший в архив, воспроизводится как есть.
// Только пуши без записи получают свежий вес — по ТЕКУЩЕЙ кешированной
// репутации пушера (нет — BaseValue). Поэтому пересчёт идемпотентен:
// без новых пушей результат не меняется, как бы ни дрейфовали тиры пушеров.
func (c *Compiler) Recompute(ctx context.Context, targetUserID int64) (*Result, error) {
	pushes, err := c.ledger.ListReceivedBy(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("пересчёт (user_id=%d): %w", targetUserID, err)
	}

	ids := make([]uuid.UUID, len(pushes))
	for i, p := range pushes {
		ids[i] = p.ID
	}
	frozen, err := c.archive.GetByPushIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("пересчёт (user_id=%d): %w", targetUserID, err)
	}

	// Базовый вес пушера резолвится один раз за пересчёт
	baseWeights := make(map[int64]float64)

	now := time.Now().UTC()
	sum := 0.0
	contributions := make([]*Contribution, 0, len(pushes))

	for i, p := range pushes {
		// Замороженный вклад — воспроизводим без пересчёта
		if rec, ok := frozen[p.ID]; ok {
			sum += rec.Contribution
			contributions = append(contributions, &Contribution{Push: p, Record: rec})
			continue
		}

		base, ok := baseWeights[p.FromUserID]
		if !ok {
			base = c.resolveBaseWeight(ctx, p.FromUserID)
			baseWeights[p.FromUserID] = base
		}

		repeat := repeatCount(pushes, i)
		effective := base * math.Pow(RepeatDecay, float64(repeat))
		contribution := effective
		if p.Kind == PushNegative {
			contribution = -effective
		}

		sum += contribution
		contributions = append(contributions, &Contribution{
			Push: p,
			Record: &ContributionRecord{
				PushID:          p.ID,
				BaseWeight:      base,
				RepeatCount:     repeat,
				EffectiveWeight: effective,
				Contribution:    contribution,
				CreatedAt:       now,
			},
			Fresh: true,
		})
	}

	value := BaseValue + sum
	if value < c.minValue {
		value = c.minValue
	}

	return &Result{
		UserID:        targetUserID,
		Value:         value,
		ColorBand:     BandFor(value),
		Contributions: contributions,
		ComputedAt:    now,
	}, nil
}

// resolveBaseWeight возвращает вес голоса пушера по его текущей репутации.
// Отсутствие кеша или ошибка чтения — не фатально: берём BaseValue.
func (c *Compiler) resolveBaseWeight(ctx context.Context, pusherID int64) float64 {
	rep, err := c.cache.Get(ctx, pusherID)
	if err != nil {
		log.WithError(err).WithField("pusher_id", pusherID).
			Warn("Не удалось получить репутацию пушера, берём базовую")
		return BaseWeightFor(BaseValue)
	}
	if rep == nil {
		return BaseWeightFor(BaseValue)
	}
	return BaseWeightFor(rep.Value)
}

// repeatCount считает, сколько пушей той же пары уже было в скользящем
// окне RepeatWindow перед пушем pushes[i] (сам пуш не считается).
// pushes отсортированы по возрастанию времени, все адресованы одной цели.
func repeatCount(pushes []*Push, i int) int {
	p := pushes[i]
	count := 0
	for j := i - 1; j >= 0; j-- {
		q := pushes[j]
		if q.FromUserID != p.FromUserID {
			continue
		}
		if p.CreatedAt.Sub(q.CreatedAt) <= RepeatWindow {
			count++
		}
	}
	return count
}
