// Package trustflow — service.go: бизнес-логика Trust Flow.
// Сабмит пуша, оркестрация пересчёта с повторами, чтение из кеша
// с ленивым вычислением и история пушей для аудита.
package trustflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/habit-backend/internal/common"
	"serotonyl.ru/habit-backend/internal/config"
	"serotonyl.ru/habit-backend/internal/retry"
)

// MemberDirectory — всё, что движку нужно знать об участниках.
// Остальное приложение — внешний коллаборатор, зависим только от интерфейса.
type MemberDirectory interface {
	EnsureExists(ctx context.Context, userID int64) error
}

// errRecomputeStale — журнал ещё не отдал свежий пуш (лаг реплики).
// Внутренний сигнал для цикла повторов, наружу не выходит.
var errRecomputeStale = errors.New("пересчёт не увидел свежий пуш")

// Service управляет движком Trust Flow.
type Service struct {
	ledger   Ledger
	cache    Cache
	archive  Archive
	compiler *Compiler
	guard    *Guard
	members  MemberDirectory
	cfg      *config.Config
}

// NewService создаёт сервис Trust Flow.
func NewService(
	ledger Ledger,
	cache Cache,
	archive Archive,
	compiler *Compiler,
	guard *Guard,
	memberService MemberDirectory,
	cfg *config.Config,
) *Service {
	return &Service{
		ledger:   ledger,
		cache:    cache,
		archive:  archive,
		compiler: compiler,
		guard:    guard,
		members:  memberService,
		cfg:      cfg,
	}
}

// SubmitPush принимает пуш и запускает пересчёт получателя.
// Допуск проверяется атомарно внутри Ledger.Append. Пересчёт после
// сабмита повторяется до RECOMPUTE_ATTEMPTS раз с паузой RECOMPUTE_DELAY,
// пока не увидит свежий пуш (read-after-write-лаг хранилища).
// Если все попытки неудачны — возвращаем последнее кешированное значение
// или базовое: пуш уже принят, показать пользователю нечего хуже дефолта.
func (s *Service) SubmitPush(ctx context.Context, fromUserID, toUserID int64, kindRaw, reason string) (*Push, *UserReputation, error) {
	kind, err := ParsePushKind(kindRaw)
	if err != nil {
		return nil, nil, err
	}
	if err := s.members.EnsureExists(ctx, toUserID); err != nil {
		return nil, nil, err
	}

	push, err := s.ledger.Append(ctx, fromUserID, toUserID, kind, reason)
	if err != nil {
		return nil, nil, err
	}

	rep, err := retry.Do(ctx, s.cfg.RecomputeAttempts, s.cfg.RecomputeDelay,
		func(ctx context.Context) (*UserReputation, error) {
			res, err := s.compiler.Recompute(ctx, toUserID)
			if err != nil {
				return nil, err
			}
			if !res.Includes(push.ID) {
				return nil, errRecomputeStale
			}
			return s.persist(ctx, res)
		})
	if err != nil {
		log.WithError(err).WithField("to_user_id", toUserID).
			Warn("Пересчёт после сабмита не удался, отдаём запасное значение")
		rep = s.lastKnownOrDefault(ctx, toUserID)
	}

	return push, rep, nil
}

// CheckEligibility — консультативная проверка для UI.
// Сервер всё равно проверит допуск при сабмите.
func (s *Service) CheckEligibility(ctx context.Context, fromUserID, toUserID int64) (*Decision, error) {
	return s.guard.Check(ctx, fromUserID, toUserID)
}

// GetReputation возвращает репутацию пользователя.
// Без force — быстрый путь через кеш (с ленивым вычислением, если кеша нет).
// С force — принудительный пересчёт и обновление кеша.
func (s *Service) GetReputation(ctx context.Context, userID int64, force bool) (*UserReputation, error) {
	if !force {
		rep, err := s.cache.Get(ctx, userID)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("Кеш недоступен, пробуем пересчёт")
		} else if rep != nil {
			return rep, nil
		}
	}

	rep, err := s.Recompute(ctx, userID)
	if err != nil {
		// Никогда не фатально: протухшее значение лучше, чем никакого
		log.WithError(err).WithField("user_id", userID).Warn("Пересчёт не удался")
		return s.lastKnownOrDefault(ctx, userID), nil
	}
	return rep, nil
}

// Recompute пересчитывает и сохраняет репутацию пользователя.
func (s *Service) Recompute(ctx context.Context, userID int64) (*UserReputation, error) {
	res, err := s.compiler.Recompute(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, res)
}

// persist замораживает новые вклады и обновляет кеш.
// Порядок важен: сначала архив (insert-once), потом кеш (монотонный put).
func (s *Service) persist(ctx context.Context, res *Result) (*UserReputation, error) {
	for _, c := range res.Contributions {
		if !c.Fresh {
			continue
		}
		if err := s.archive.RecordIfAbsent(ctx, c.Record); err != nil {
			return nil, err
		}
	}

	rep := res.Reputation()
	if err := s.cache.Put(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// lastKnownOrDefault — запасной путь: кеш, а если и его нет — базовое значение.
func (s *Service) lastKnownOrDefault(ctx context.Context, userID int64) *UserReputation {
	rep, err := s.cache.Get(ctx, userID)
	if err == nil && rep != nil {
		return rep
	}
	return DefaultReputation(userID)
}

// HistoryEntry — один пуш в истории получателя.
// Record заполняется только для админов (аудит).
type HistoryEntry struct {
	Push   *Push
	Record *ContributionRecord
}

// History возвращает пуши, полученные пользователем, по возрастанию времени.
// includeRecords добавляет к каждому пушу замороженный вклад из архива.
func (s *Service) History(ctx context.Context, targetUserID int64, includeRecords bool) ([]*HistoryEntry, error) {
	pushes, err := s.ledger.ListReceivedBy(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	entries := make([]*HistoryEntry, len(pushes))
	for i, p := range pushes {
		entries[i] = &HistoryEntry{Push: p}
	}

	if includeRecords && len(pushes) > 0 {
		ids := make([]uuid.UUID, len(pushes))
		for i, p := range pushes {
			ids[i] = p.ID
		}
		records, err := s.archive.GetByPushIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			e.Record = records[e.Push.ID]
		}
	}

	return entries, nil
}

// SweepAll пересчитывает репутацию всех получателей пушей.
// Запускается ночным cron-джобом как страховка целостности кеша.
func (s *Service) SweepAll(ctx context.Context) error {
	targets, err := s.ledger.ListTargets(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	failed := 0
	for _, userID := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Recompute(ctx, userID); err != nil {
			failed++
			log.WithError(err).WithField("user_id", userID).Error("Ошибка пересчёта в ночном обходе")
		}
	}

	log.WithFields(log.Fields{
		"targets":  len(targets),
		"failed":   failed,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("Ночной пересчёт завершён")

	if failed > 0 {
		return common.ErrSweepIncomplete
	}
	return nil
}
