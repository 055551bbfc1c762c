// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночной полный пересчёт кеша репутации.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/habit-backend/internal/common"
	"serotonyl.ru/habit-backend/internal/config"
	"serotonyl.ru/habit-backend/internal/features/trustflow"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron             *cron.Cron
	trustflowService *trustflow.Service
	cfg              *config.Config
}

// NewScheduler создаёт планировщик задач в часовом поясе приложения.
func NewScheduler(trustflowService *trustflow.Service, cfg *config.Config) *Scheduler {
	loc := common.AppLocation(cfg.AppTimezone)
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:             c,
		trustflowService: trustflowService,
		cfg:              cfg,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.FeatureSweepEnabled {
		log.Info("Ночной пересчёт выключен (FEATURE_SWEEP_ENABLED=false)")
		return
	}

	// Полный пересчёт кеша в 03:00 — страховка целостности:
	// кеш производный, журнал первичен
	s.cron.AddFunc("0 3 * * *", func() {
		log.Info("[CRON] Ночной пересчёт репутации")
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		if err := s.trustflowService.SweepAll(sweepCtx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка ночного пересчёта")
		}
	})

	s.cron.Start()
	log.Infof("Планировщик задач запущен (%s)", s.cfg.AppTimezone)
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
