// helpers_test.go — общие помощники тестов trustflow.
package trustflow

import (
	"strings"
	"time"

	"serotonyl.ru/habit-backend/internal/common"
	"serotonyl.ru/habit-backend/internal/config"
)

var errNotFoundForTest = common.ErrUserNotFound

// longReason — валидное обоснование (ровно 120 символов).
func longReason() string {
	return strings.Repeat("причина ", 15)
}

// testPolicy — политика допуска по умолчанию для тестов.
func testPolicy() Policy {
	return Policy{
		ReasonMinLen:   100,
		LimitTotal:     10,
		LimitPerTarget: 2,
		Window:         24 * time.Hour,
	}
}

// testConfig — конфиг с быстрыми повторами, чтобы тесты не спали.
func testConfig() *config.Config {
	return &config.Config{
		TrustMinValue:      -100,
		PushLimitTotal:     10,
		PushLimitPerTarget: 2,
		PushLimitWindow:    24 * time.Hour,
		PushReasonMinLen:   100,
		RecomputeAttempts:  3,
		RecomputeDelay:     time.Millisecond,
	}
}

// harness — собранный на фейках движок.
type harness struct {
	clock   *memClock
	ledger  *memLedger
	cache   *memCache
	archive *memArchive
	service *Service
}

func newHarness(cfg *config.Config, memberIDs ...int64) *harness {
	clock := newMemClock()
	policy := Policy{
		ReasonMinLen:   cfg.PushReasonMinLen,
		LimitTotal:     cfg.PushLimitTotal,
		LimitPerTarget: cfg.PushLimitPerTarget,
		Window:         cfg.PushLimitWindow,
	}
	ledger := newMemLedger(policy, clock)
	cache := newMemCache()
	archive := newMemArchive()
	compiler := NewCompiler(ledger, cache, archive, cfg.TrustMinValue)
	guard := NewGuard(ledger, policy)
	service := NewService(ledger, cache, archive, compiler, guard, newMemMembers(memberIDs...), cfg)
	return &harness{
		clock:   clock,
		ledger:  ledger,
		cache:   cache,
		archive: archive,
		service: service,
	}
}
