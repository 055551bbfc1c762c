// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// --- Auth ---
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"habituser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"habit_backend"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Trust Flow ---
	// Нижняя граница значения репутации. Не даём уйти в бесконечный минус.
	TrustMinValue float64 `envconfig:"TRUST_MIN_VALUE" default:"-100"`

	// --- Допуск пушей ---
	// Сколько пушей всего можно отправить в окне (любым получателям)
	PushLimitTotal int `envconfig:"PUSH_LIMIT_TOTAL" default:"10"`
	// Сколько пушей одному и тому же получателю в окне
	PushLimitPerTarget int `envconfig:"PUSH_LIMIT_PER_TARGET" default:"2"`
	// Окно, в котором считаются лимиты
	PushLimitWindow time.Duration `envconfig:"PUSH_LIMIT_WINDOW" default:"24h"`
	// Минимальная длина обоснования пуша (в символах)
	PushReasonMinLen int `envconfig:"PUSH_REASON_MIN_LEN" default:"100"`

	// --- Пересчёт после сабмита ---
	// Реплика может отставать от мастера, поэтому пересчитываем с повторами
	RecomputeAttempts int           `envconfig:"RECOMPUTE_ATTEMPTS" default:"3"`
	RecomputeDelay    time.Duration `envconfig:"RECOMPUTE_DELAY" default:"500ms"`

	// --- Rate Limiting (HTTP) ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureSweepEnabled bool `envconfig:"FEATURE_SWEEP_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("некорректный HTTP_PORT")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET слишком короткий (минимум 32 символа)")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.PushLimitTotal <= 0 || c.PushLimitPerTarget <= 0 {
		return fmt.Errorf("лимиты пушей должны быть > 0")
	}
	if c.PushLimitPerTarget > c.PushLimitTotal {
		return fmt.Errorf("PUSH_LIMIT_PER_TARGET не может превышать PUSH_LIMIT_TOTAL")
	}
	if c.PushLimitWindow <= 0 {
		return fmt.Errorf("PUSH_LIMIT_WINDOW должно быть > 0")
	}
	if c.PushReasonMinLen <= 0 {
		return fmt.Errorf("PUSH_REASON_MIN_LEN должно быть > 0")
	}
	if c.RecomputeAttempts <= 0 {
		return fmt.Errorf("RECOMPUTE_ATTEMPTS должно быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
