package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"usage-quota/quota/domain"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MemoryLedger é uma implementação em memória de domain.UsageLedger.
// Útil para testes e desenvolvimento; não persiste nada entre restarts.
type MemoryLedger struct {
	mu    sync.Mutex
	rows  map[string]domain.UsageRecord
	clock clockwork.Clock
}

type MemoryLedgerOption func(*MemoryLedger)

func WithLedgerClock(clock clockwork.Clock) MemoryLedgerOption {
	return func(l *MemoryLedger) { l.clock = clock }
}

func NewMemoryLedger(opts ...MemoryLedgerOption) *MemoryLedger {
	l := &MemoryLedger{
		rows:  make(map[string]domain.UsageRecord),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func rowKey(user domain.UserID, windowKey string) string {
	return string(user) + "|" + windowKey
}

func (l *MemoryLedger) Find(_ context.Context, user domain.UserID, windowKey string) (domain.UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.rows[rowKey(user, windowKey)]
	if !ok {
		return domain.UsageRecord{}, domain.ErrRecordAbsent
	}
	return rec, nil
}

func (l *MemoryLedger) Save(_ context.Context, rec domain.UsageRecord) (domain.UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := rowKey(rec.UserID, rec.WindowKey)
	if prev, ok := l.rows[k]; ok {
		rec.ID = prev.ID
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UpdatedAt = l.clock.Now()
	l.rows[k] = rec
	return rec, nil
}

func (l *MemoryLedger) CompareAndSetCount(_ context.Context, user domain.UserID, windowKey string, expected, next, limit int64) (domain.UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := rowKey(user, windowKey)
	rec, ok := l.rows[k]
	if !ok {
		if expected != 0 {
			return domain.UsageRecord{}, domain.ErrLedgerConflict
		}
		rec = domain.UsageRecord{
			ID:        uuid.NewString(),
			UserID:    user,
			WindowKey: windowKey,
		}
	} else if rec.Count != expected {
		return domain.UsageRecord{}, domain.ErrLedgerConflict
	}

	rec.Count = next
	rec.Limit = limit
	rec.UpdatedAt = l.clock.Now()
	l.rows[k] = rec
	return rec, nil
}

func (l *MemoryLedger) Range(_ context.Context, user domain.UserID, from, to time.Time) ([]domain.UsageRecord, error) {
	fromKey := domain.DateKey(from)
	toKey := domain.DateKey(to)

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.UsageRecord
	for _, rec := range l.rows {
		if rec.UserID != user || rec.WindowKey == domain.LifetimeKey {
			continue
		}
		// Window-keys diárias (YYYY-MM-DD) ordenam lexicograficamente.
		if rec.WindowKey < fromKey || rec.WindowKey > toKey {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowKey < out[j].WindowKey })
	return out, nil
}

func (l *MemoryLedger) DeleteZeroUsageBefore(_ context.Context, cutoff time.Time) (int64, error) {
	cutoffKey := domain.DateKey(cutoff)

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	for k, rec := range l.rows {
		if rec.WindowKey == domain.LifetimeKey || rec.Count != 0 {
			continue
		}
		if rec.WindowKey < cutoffKey {
			delete(l.rows, k)
			n++
		}
	}
	return n, nil
}
