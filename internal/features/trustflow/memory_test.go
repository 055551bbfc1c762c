// memory_test.go — in-memory реализации Ledger/Cache/Archive для тестов.
// Фейки повторяют семантику SQL-репозиториев: стабильный порядок
// (created_at, id), монотонный put кеша, insert-once архива и
// проверку лимитов при Append. Плюс эмуляция лага реплики на чтении.
package trustflow

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memClock — подменяемые часы: тесты двигают время руками.
type memClock struct {
	mu  sync.Mutex
	now time.Time
}

// Часы стартуют с настоящего времени: Guard сверяет окно с time.Now,
// и расхождение с часами фейка сломало бы подсчёт лимитов.
func newMemClock() *memClock {
	return &memClock{now: time.Now().UTC()}
}

func (c *memClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *memClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memLedger — журнал пушей в памяти.
type memLedger struct {
	mu     sync.Mutex
	policy Policy
	clock  *memClock
	pushes []*Push

	// lagReads > 0: столько следующих чтений не увидят последний пуш
	// (эмуляция read-after-write-лага реплики)
	lagReads int
	// listErr подменяет ошибку чтения журнала
	listErr error
}

func newMemLedger(policy Policy, clock *memClock) *memLedger {
	return &memLedger{policy: policy, clock: clock}
}

// seed добавляет пуш в обход допуска (для подготовки сценариев).
func (l *memLedger) seed(from, to int64, kind PushKind, at time.Time) *Push {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := &Push{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
		Kind:       kind,
		Reason:     longReason(),
		CreatedAt:  at,
	}
	l.pushes = append(l.pushes, p)
	return p
}

func (l *memLedger) Append(ctx context.Context, fromUserID, toUserID int64, kind PushKind, reason string) (*Push, error) {
	if err := l.policy.ValidateContent(fromUserID, toUserID, reason); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	since := l.policy.WindowStart(now)
	total, pair := 0, 0
	for _, p := range l.pushes {
		if p.FromUserID != fromUserID || p.CreatedAt.Before(since) {
			continue
		}
		total++
		if p.ToUserID == toUserID {
			pair++
		}
	}
	if err := l.policy.CheckCounts(total, pair); err != nil {
		return nil, err
	}

	p := &Push{
		ID:         uuid.New(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Kind:       kind,
		Reason:     reason,
		CreatedAt:  now,
	}
	l.pushes = append(l.pushes, p)
	return p, nil
}

func (l *memLedger) visible() []*Push {
	// под l.mu
	pushes := l.pushes
	if l.lagReads > 0 && len(pushes) > 0 {
		l.lagReads--
		pushes = pushes[:len(pushes)-1]
	}
	out := make([]*Push, len(pushes))
	copy(out, pushes)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

func (l *memLedger) ListReceivedBy(ctx context.Context, targetUserID int64) ([]*Push, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, l.listErr
	}
	var out []*Push
	for _, p := range l.visible() {
		if p.ToUserID == targetUserID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *memLedger) ListBetween(ctx context.Context, fromUserID, targetUserID int64) ([]*Push, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, l.listErr
	}
	var out []*Push
	for _, p := range l.visible() {
		if p.FromUserID == fromUserID && p.ToUserID == targetUserID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *memLedger) CountFromSince(ctx context.Context, fromUserID int64, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, p := range l.pushes {
		if p.FromUserID == fromUserID && !p.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (l *memLedger) CountPairSince(ctx context.Context, fromUserID, toUserID int64, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, p := range l.pushes {
		if p.FromUserID == fromUserID && p.ToUserID == toUserID && !p.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (l *memLedger) ListTargets(ctx context.Context) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for _, p := range l.pushes {
		if !seen[p.ToUserID] {
			seen[p.ToUserID] = true
			out = append(out, p.ToUserID)
		}
	}
	return out, nil
}

// memCache — кеш репутации в памяти с монотонным Put.
type memCache struct {
	mu     sync.Mutex
	values map[int64]*UserReputation
	getErr error
}

func newMemCache() *memCache {
	return &memCache{values: make(map[int64]*UserReputation)}
}

func (c *memCache) Get(ctx context.Context, userID int64) (*UserReputation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	rep, ok := c.values[userID]
	if !ok {
		return nil, nil
	}
	cp := *rep
	return &cp, nil
}

func (c *memCache) Put(ctx context.Context, rep *UserReputation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Та же семантика, что у SQL: перезапись только строго более свежим
	if cur, ok := c.values[rep.UserID]; ok && !rep.ComputedAt.After(cur.ComputedAt) {
		return nil
	}
	cp := *rep
	c.values[rep.UserID] = &cp
	return nil
}

// set кладёт значение в обход монотонной защиты (подготовка сценариев).
func (c *memCache) set(userID int64, value float64, computedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[userID] = &UserReputation{
		UserID:     userID,
		Value:      value,
		ColorBand:  BandFor(value),
		ComputedAt: computedAt,
	}
}

// memArchive — insert-once архив вкладов в памяти.
type memArchive struct {
	mu      sync.Mutex
	records map[uuid.UUID]*ContributionRecord
	inserts int // сколько раз RecordIfAbsent реально вставил
}

func newMemArchive() *memArchive {
	return &memArchive{records: make(map[uuid.UUID]*ContributionRecord)}
}

func (a *memArchive) RecordIfAbsent(ctx context.Context, rec *ContributionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.records[rec.PushID]; ok {
		return nil
	}
	cp := *rec
	a.records[rec.PushID] = &cp
	a.inserts++
	return nil
}

func (a *memArchive) GetByPushIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ContributionRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[uuid.UUID]*ContributionRecord, len(ids))
	for _, id := range ids {
		if rec, ok := a.records[id]; ok {
			cp := *rec
			out[id] = &cp
		}
	}
	return out, nil
}

func (a *memArchive) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// memMembers — справочник участников: все перечисленные существуют.
type memMembers struct {
	existing map[int64]bool
}

func newMemMembers(ids ...int64) *memMembers {
	m := &memMembers{existing: make(map[int64]bool)}
	for _, id := range ids {
		m.existing[id] = true
	}
	return m
}

func (m *memMembers) EnsureExists(ctx context.Context, userID int64) error {
	if !m.existing[userID] {
		return errNotFoundForTest
	}
	return nil
}
