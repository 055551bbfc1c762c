// eligibility_test.go — тесты правил допуска: самопуш, длина
// обоснования, лимиты в окне и их транзакционный аналог в Append.
package trustflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/habit-backend/internal/common"
)

func TestPolicy_ValidateContent(t *testing.T) {
	p := testPolicy()

	t.Run("самопуш отклоняется всегда", func(t *testing.T) {
		err := p.ValidateContent(7, 7, longReason())
		assert.ErrorIs(t, err, common.ErrSelfPush)
	})

	t.Run("короткое обоснование отклоняется", func(t *testing.T) {
		err := p.ValidateContent(1, 2, strings.Repeat("ы", 99))
		assert.ErrorIs(t, err, common.ErrReasonTooShort)
	})

	t.Run("длина считается в рунах, не в байтах", func(t *testing.T) {
		// 100 кириллических символов = 200 байт
		err := p.ValidateContent(1, 2, strings.Repeat("ы", 100))
		assert.NoError(t, err)
	})

	t.Run("валидный пуш проходит", func(t *testing.T) {
		assert.NoError(t, p.ValidateContent(1, 2, longReason()))
	})
}

func TestGuard_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("самопуш", func(t *testing.T) {
		h := newHarness(testConfig())
		d, err := h.service.CheckEligibility(ctx, 5, 5)
		require.NoError(t, err)
		assert.False(t, d.CanPush)
		assert.Equal(t, common.ErrSelfPush.Error(), d.Reason)
	})

	t.Run("свежая пара — можно", func(t *testing.T) {
		h := newHarness(testConfig())
		d, err := h.service.CheckEligibility(ctx, 1, 2)
		require.NoError(t, err)
		assert.True(t, d.CanPush)
		assert.Empty(t, d.Reason)
	})

	t.Run("лимит на пару в окне", func(t *testing.T) {
		h := newHarness(testConfig())
		now := time.Now().UTC()
		h.ledger.seed(1, 2, PushPositive, now.Add(-2*time.Hour))
		h.ledger.seed(1, 2, PushPositive, now.Add(-time.Hour))

		d, err := h.service.CheckEligibility(ctx, 1, 2)
		require.NoError(t, err)
		assert.False(t, d.CanPush)
		assert.Equal(t, common.ErrPushLimitPerTarget.Error(), d.Reason)

		// Другому получателю — можно
		d, err = h.service.CheckEligibility(ctx, 1, 3)
		require.NoError(t, err)
		assert.True(t, d.CanPush)
	})

	t.Run("общий лимит в окне", func(t *testing.T) {
		h := newHarness(testConfig())
		now := time.Now().UTC()
		for i := 0; i < 10; i++ {
			h.ledger.seed(1, int64(100+i), PushPositive, now.Add(-time.Duration(i+1)*time.Minute))
		}

		d, err := h.service.CheckEligibility(ctx, 1, 2)
		require.NoError(t, err)
		assert.False(t, d.CanPush)
		assert.Equal(t, common.ErrPushLimitTotal.Error(), d.Reason)
	})

	t.Run("пуши за пределами окна не считаются", func(t *testing.T) {
		h := newHarness(testConfig())
		old := time.Now().UTC().Add(-25 * time.Hour)
		h.ledger.seed(1, 2, PushPositive, old)
		h.ledger.seed(1, 2, PushPositive, old.Add(time.Minute))

		d, err := h.service.CheckEligibility(ctx, 1, 2)
		require.NoError(t, err)
		assert.True(t, d.CanPush)
	})
}

// Append обязан применять те же правила сам: предварительный Check —
// только подсказка, допуск решается атомарно при записи.
func TestLedgerAppend_EnforcesAdmission(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testConfig())

	t.Run("самопуш", func(t *testing.T) {
		_, err := h.ledger.Append(ctx, 4, 4, PushPositive, longReason())
		assert.ErrorIs(t, err, common.ErrSelfPush)
	})

	t.Run("короткое обоснование", func(t *testing.T) {
		_, err := h.ledger.Append(ctx, 1, 2, PushPositive, "мало")
		assert.ErrorIs(t, err, common.ErrReasonTooShort)
	})

	t.Run("лимит на пару", func(t *testing.T) {
		_, err := h.ledger.Append(ctx, 1, 2, PushPositive, longReason())
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
		_, err = h.ledger.Append(ctx, 1, 2, PushNegative, longReason())
		require.NoError(t, err)
		h.clock.Advance(time.Minute)

		_, err = h.ledger.Append(ctx, 1, 2, PushPositive, longReason())
		assert.ErrorIs(t, err, common.ErrPushLimitPerTarget)

		// Окно уехало — снова можно
		h.clock.Advance(25 * time.Hour)
		_, err = h.ledger.Append(ctx, 1, 2, PushPositive, longReason())
		assert.NoError(t, err)
	})
}
