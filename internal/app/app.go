// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики
// и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/habit-backend/internal/config"
	"serotonyl.ru/habit-backend/internal/db/postgres"
	"serotonyl.ru/habit-backend/internal/features/auth"
	"serotonyl.ru/habit-backend/internal/features/members"
	"serotonyl.ru/habit-backend/internal/features/trustflow"
	"serotonyl.ru/habit-backend/internal/jobs"
	"serotonyl.ru/habit-backend/internal/server"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *server.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Репозитории ===
	memberRepo := members.NewRepository(pool)
	authRepo := auth.NewRepository(pool)

	policy := trustflow.PolicyFromConfig(cfg)
	ledger := trustflow.NewLedgerRepo(pool, policy)
	cache := trustflow.NewCacheRepo(pool)
	archive := trustflow.NewArchiveRepo(pool)

	// === 3. Сервисы ===
	memberService := members.NewService(memberRepo)
	authService := auth.NewService(authRepo, memberService, cfg)

	compiler := trustflow.NewCompiler(ledger, cache, archive, cfg.TrustMinValue)
	guard := trustflow.NewGuard(ledger, policy)
	trustflowService := trustflow.NewService(ledger, cache, archive, compiler, guard, memberService, cfg)

	// === 4. Обработчики ===
	authHandler := auth.NewHandler(authService)
	trustflowHandler := trustflow.NewHandler(trustflowService)

	// === 5. HTTP-сервер ===
	srv := server.New(cfg, pool, authService, authHandler, trustflowHandler)

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(trustflowService, cfg)

	return &App{
		Server:    srv,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Инициализируем систему миграций
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Members},
		{2, migration002LoginAttempts},
		{3, migration003Pushes},
		{4, migration004ReputationCache},
		{5, migration005ContributionArchive},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255),
    password_hash VARCHAR(255) NOT NULL,
    is_admin BOOLEAN DEFAULT FALSE,
    is_banned BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_user_id ON members(user_id);
`

var migration002LoginAttempts = `
CREATE TABLE IF NOT EXISTS login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMPTZ DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_login_attempts_user_id ON login_attempts(user_id, attempt_time DESC);
`

var migration003Pushes = `
CREATE TABLE IF NOT EXISTS pushes (
    id UUID PRIMARY KEY,
    from_user_id BIGINT NOT NULL REFERENCES members(user_id),
    to_user_id BIGINT NOT NULL REFERENCES members(user_id),
    kind VARCHAR(16) NOT NULL CHECK (kind IN ('positive', 'negative')),
    reason TEXT NOT NULL CHECK (char_length(reason) >= 100),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (from_user_id <> to_user_id)
);
CREATE INDEX IF NOT EXISTS idx_pushes_to_user ON pushes(to_user_id, created_at, id);
CREATE INDEX IF NOT EXISTS idx_pushes_from_user ON pushes(from_user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_pushes_pair ON pushes(from_user_id, to_user_id, created_at);
`

var migration004ReputationCache = `
CREATE TABLE IF NOT EXISTS reputation_cache (
    user_id BIGINT PRIMARY KEY REFERENCES members(user_id),
    value DOUBLE PRECISION NOT NULL,
    color_band VARCHAR(16) NOT NULL,
    computed_at TIMESTAMPTZ NOT NULL
);
`

var migration005ContributionArchive = `
CREATE TABLE IF NOT EXISTS contribution_archive (
    push_id UUID PRIMARY KEY REFERENCES pushes(id),
    base_weight DOUBLE PRECISION NOT NULL,
    repeat_count INTEGER NOT NULL,
    effective_weight DOUBLE PRECISION NOT NULL,
    contribution DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
