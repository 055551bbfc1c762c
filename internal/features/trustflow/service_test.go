// service_test.go — тесты бизнес-логики: сабмит с пересчётом,
// устойчивость к лагу чтения, монотонный кеш, история и ночной обход.
package trustflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/habit-backend/internal/common"
)

func TestSubmitPush_HappyPath(t *testing.T) {
	h := newHarness(testConfig(), 1, 2)
	ctx := context.Background()

	push, rep, err := h.service.SubmitPush(ctx, 1, 2, "positive", longReason())
	require.NoError(t, err)
	require.NotNil(t, push)
	require.NotNil(t, rep)

	assert.Equal(t, int64(1), push.FromUserID)
	assert.Equal(t, int64(2), push.ToUserID)
	assert.InDelta(t, 6.5, rep.Value, 1e-9)
	assert.Equal(t, BandGray, rep.ColorBand)

	// Вклад заморожен, кеш обновлён
	assert.Equal(t, 1, h.archive.size())
	cached, err := h.cache.Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.InDelta(t, 6.5, cached.Value, 1e-9)
}

func TestSubmitPush_SecondPushDecays(t *testing.T) {
	h := newHarness(testConfig(), 1, 2)
	ctx := context.Background()

	_, _, err := h.service.SubmitPush(ctx, 1, 2, "positive", longReason())
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	_, rep, err := h.service.SubmitPush(ctx, 1, 2, "positive", longReason())
	require.NoError(t, err)
	assert.InDelta(t, 7.505, rep.Value, 1e-9)
}

func TestSubmitPush_UnknownKind(t *testing.T) {
	h := newHarness(testConfig(), 1, 2)

	_, _, err := h.service.SubmitPush(context.Background(), 1, 2, "neutral", longReason())
	assert.ErrorIs(t, err, common.ErrUnknownPushKind)
}

func TestSubmitPush_UnknownTarget(t *testing.T) {
	h := newHarness(testConfig(), 1)

	_, _, err := h.service.SubmitPush(context.Background(), 1, 999, "positive", longReason())
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

// Первое чтение после записи не видит свежий пуш (лаг реплики) —
// цикл повторов дожимает пересчёт со второй попытки.
func TestSubmitPush_RetriesThroughReadLag(t *testing.T) {
	h := newHarness(testConfig(), 1, 2)
	h.ledger.lagReads = 1

	_, rep, err := h.service.SubmitPush(context.Background(), 1, 2, "positive", longReason())
	require.NoError(t, err)
	assert.InDelta(t, 6.5, rep.Value, 1e-9)
	assert.Equal(t, 1, h.archive.size())
}

// Лаг переживает все попытки: пуш принят, наружу уходит запасное
// значение, кеш не затирается протухшим пересчётом.
func TestSubmitPush_FallbackWhenRecomputeStaysStale(t *testing.T) {
	h := newHarness(testConfig(), 1, 2)
	ctx := context.Background()

	prev := time.Now().UTC().Add(-time.Hour)
	h.cache.set(2, 12.0, prev)
	h.ledger.lagReads = 100

	push, rep, err := h.service.SubmitPush(ctx, 1, 2, "positive", longReason())
	require.NoError(t, err)
	require.NotNil(t, push)

	// Последнее известное из кеша, не дефолт
	assert.Equal(t, 12.0, rep.Value)
	assert.Equal(t, BandYellow, rep.ColorBand)

	// Пересчёт не дошёл до заморозки
	assert.Equal(t, 0, h.archive.size())
}

func TestSubmitPush_FallbackDefaultWithoutCache(t *testing.T) {
	h := newHarness(testConfig(), 1, 2)
	h.ledger.lagReads = 100

	_, rep, err := h.service.SubmitPush(context.Background(), 1, 2, "positive", longReason())
	require.NoError(t, err)
	assert.Equal(t, BaseValue, rep.Value)
	assert.Equal(t, BandGray, rep.ColorBand)
}

// Повторный пересчёт не вставляет вклад второй раз.
func TestPersist_ArchiveInsertOnce(t *testing.T) {
	h := newHarness(testConfig(), 1, 2)
	ctx := context.Background()

	h.ledger.seed(1, 2, PushPositive, time.Now().UTC().Add(-time.Hour))

	_, err := h.service.Recompute(ctx, 2)
	require.NoError(t, err)
	_, err = h.service.Recompute(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, h.archive.inserts)
}

// Кеш перезаписывается только строго более свежим значением.
func TestCache_MonotonicPut(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	fresh := &UserReputation{UserID: 2, Value: 8.0, ColorBand: BandGray, ComputedAt: now}
	require.NoError(t, h.cache.Put(ctx, fresh))

	stale := &UserReputation{UserID: 2, Value: 3.0, ColorBand: BandGray, ComputedAt: now.Add(-time.Minute)}
	require.NoError(t, h.cache.Put(ctx, stale))

	got, err := h.cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.Value)

	// Одинаковый ComputedAt тоже не перезаписывает
	tie := &UserReputation{UserID: 2, Value: 1.0, ColorBand: BandGray, ComputedAt: now}
	require.NoError(t, h.cache.Put(ctx, tie))
	got, err = h.cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.Value)
}

func TestGetReputation_LazyComputeAndCacheHit(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()

	h.ledger.seed(1, 2, PushPositive, time.Now().UTC().Add(-time.Hour))

	// Кеш пуст — ленивый пересчёт
	rep, err := h.service.GetReputation(ctx, 2, false)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, rep.Value, 1e-9)

	// Дальше журнал может лежать — читаем из кеша
	h.ledger.listErr = assert.AnError
	rep, err = h.service.GetReputation(ctx, 2, false)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, rep.Value, 1e-9)
}

func TestGetReputation_ForceBypassesCache(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()

	// В кеше лежит устаревшее значение с ComputedAt в прошлом
	h.cache.set(2, 50.0, time.Now().UTC().Add(-time.Hour))
	h.ledger.seed(1, 2, PushPositive, time.Now().UTC().Add(-time.Minute))

	rep, err := h.service.GetReputation(ctx, 2, true)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, rep.Value, 1e-9)

	cached, err := h.cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, cached.Value, 1e-9)
}

// Принудительный пересчёт при лежачем журнале деградирует в кеш, не в ошибку.
func TestGetReputation_ForceFallsBackToCache(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()

	h.cache.set(2, 42.0, time.Now().UTC())
	h.ledger.listErr = assert.AnError

	rep, err := h.service.GetReputation(ctx, 2, true)
	require.NoError(t, err)
	assert.Equal(t, 42.0, rep.Value)
}

func TestGetReputation_NoDataReturnsDefault(t *testing.T) {
	h := newHarness(testConfig())

	rep, err := h.service.GetReputation(context.Background(), 77, false)
	require.NoError(t, err)
	assert.Equal(t, BaseValue, rep.Value)
	assert.Equal(t, BandGray, rep.ColorBand)
}

func TestHistory(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	base := time.Now().UTC().Add(-2 * time.Hour)

	h.ledger.seed(1, 2, PushPositive, base)
	h.ledger.seed(3, 2, PushNegative, base.Add(time.Hour))
	h.ledger.seed(1, 4, PushPositive, base) // чужой получатель

	// До пересчёта архив пуст — записи недоступны даже с includeRecords
	entries, err := h.service.History(ctx, 2, true)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].Record)

	_, err = h.service.Recompute(ctx, 2)
	require.NoError(t, err)

	t.Run("без записей", func(t *testing.T) {
		entries, err := h.service.History(ctx, 2, false)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		// Порядок по возрастанию времени
		assert.Equal(t, int64(1), entries[0].Push.FromUserID)
		assert.Equal(t, int64(3), entries[1].Push.FromUserID)
		assert.Nil(t, entries[0].Record)
		assert.Nil(t, entries[1].Record)
	})

	t.Run("с замороженными вкладами", func(t *testing.T) {
		entries, err := h.service.History(ctx, 2, true)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		require.NotNil(t, entries[0].Record)
		assert.Equal(t, entries[0].Push.ID, entries[0].Record.PushID)
		assert.InDelta(t, 1.5, entries[0].Record.Contribution, 1e-9)

		require.NotNil(t, entries[1].Record)
		assert.InDelta(t, -1.5, entries[1].Record.Contribution, 1e-9)
	})
}

func TestSweepAll(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	h.ledger.seed(1, 2, PushPositive, base)
	h.ledger.seed(1, 3, PushNegative, base)

	require.NoError(t, h.service.SweepAll(ctx))

	rep2, err := h.cache.Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, rep2)
	assert.InDelta(t, 6.5, rep2.Value, 1e-9)

	rep3, err := h.cache.Get(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, rep3)
	assert.InDelta(t, 3.5, rep3.Value, 1e-9)
}

func TestSweepAll_ReportsFailures(t *testing.T) {
	h := newHarness(testConfig())
	ctx := context.Background()

	h.ledger.seed(1, 2, PushPositive, time.Now().UTC().Add(-time.Hour))
	h.ledger.listErr = assert.AnError

	err := h.service.SweepAll(ctx)
	assert.ErrorIs(t, err, common.ErrSweepIncomplete)
}

func TestSweepAll_StopsOnCancelledContext(t *testing.T) {
	h := newHarness(testConfig())

	h.ledger.seed(1, 2, PushPositive, time.Now().UTC().Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.service.SweepAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
