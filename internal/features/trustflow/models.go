// Package trustflow реализует движок репутации Trust Flow.
// models.go описывает события пушей, кешированную репутацию и архив вкладов.
package trustflow

import (
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/habit-backend/internal/common"
)

// Константы алгоритма. Это не настройки — от них зависят уже
// замороженные записи в архиве вкладов, менять их нельзя.
const (
	// BaseValue — стартовое значение репутации нового пользователя
	BaseValue = 5.0
	// RepeatDecay — множитель затухания за каждый повтор в окне
	RepeatDecay = 0.67
	// RepeatWindow — окно, в котором повторные пуши одной пары затухают
	RepeatWindow = 30 * 24 * time.Hour
)

// Пороги тиров веса пушера и бейндов цвета. Совпадают намеренно:
// вес голоса и цвет профиля растут на одних и тех же границах.
const (
	tierMidMin  = 10.0
	tierHighMin = 40.0
	bandBlueMin = 100.0
)

// Веса тиров: чем выше репутация пушера, тем тяжелее его голос.
const (
	weightLow  = 1.5
	weightMid  = 2.0
	weightHigh = 2.5
)

// PushKind — тип пуша: одобрение или порицание. Закрытый enum.
type PushKind string

const (
	// PushPositive — одобрение, вклад со знаком плюс
	PushPositive PushKind = "positive"
	// PushNegative — порицание, вклад со знаком минус
	PushNegative PushKind = "negative"
)

// ParsePushKind превращает строку из запроса в PushKind.
func ParsePushKind(s string) (PushKind, error) {
	switch PushKind(s) {
	case PushPositive:
		return PushPositive, nil
	case PushNegative:
		return PushNegative, nil
	default:
		return "", common.ErrUnknownPushKind
	}
}

// ColorBand — дискретный бейнд репутации для отображения.
type ColorBand string

const (
	BandRed    ColorBand = "red"    // value < 0
	BandGray   ColorBand = "gray"   // 0 <= value < 10
	BandYellow ColorBand = "yellow" // 10 <= value < 40
	BandGreen  ColorBand = "green"  // 40 <= value < 100
	BandBlue   ColorBand = "blue"   // value >= 100
)

// Push — неизменяемое событие обратной связи от одного пользователя другому.
// После создания никогда не меняется и не удаляется.
type Push struct {
	ID         uuid.UUID `db:"id"`
	FromUserID int64     `db:"from_user_id"`
	ToUserID   int64     `db:"to_user_id"`
	Kind       PushKind  `db:"kind"`
	Reason     string    `db:"reason"` // обоснование, минимум 100 символов
	CreatedAt  time.Time `db:"created_at"`
}

// UserReputation — кешированное, производное состояние репутации.
// Пишется только пересчётом; перезапись защищена монотонным ComputedAt.
type UserReputation struct {
	UserID     int64     `db:"user_id"`
	Value      float64   `db:"value"`
	ColorBand  ColorBand `db:"color_band"`
	ComputedAt time.Time `db:"computed_at"`
}

// ContributionRecord — замороженный вклад одного пуша в репутацию получателя.
// Создаётся ровно один раз, при первом пересчёте с участием пуша,
// и после этого никогда не пересчитывается (аудит-история).
type ContributionRecord struct {
	PushID          uuid.UUID `db:"push_id"`
	BaseWeight      float64   `db:"base_weight"`
	RepeatCount     int       `db:"repeat_count"`
	EffectiveWeight float64   `db:"effective_weight"`
	Contribution    float64   `db:"contribution"` // со знаком
	CreatedAt       time.Time `db:"created_at"`
}

// BaseWeightFor возвращает базовый вес голоса пушера по его текущей репутации.
func BaseWeightFor(value float64) float64 {
	switch {
	case value >= tierHighMin:
		return weightHigh
	case value >= tierMidMin:
		return weightMid
	default:
		return weightLow
	}
}

// BandFor возвращает цветовой бейнд для значения репутации.
func BandFor(value float64) ColorBand {
	switch {
	case value < 0:
		return BandRed
	case value < tierMidMin:
		return BandGray
	case value < tierHighMin:
		return BandYellow
	case value < bandBlueMin:
		return BandGreen
	default:
		return BandBlue
	}
}

// DefaultReputation — безопасное значение, которое показываем,
// когда пересчёт недоступен и кеша нет.
func DefaultReputation(userID int64) *UserReputation {
	return &UserReputation{
		UserID:     userID,
		Value:      BaseValue,
		ColorBand:  BandFor(BaseValue),
		ComputedAt: time.Time{},
	}
}
