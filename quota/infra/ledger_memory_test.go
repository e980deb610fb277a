package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"usage-quota/quota/domain"

	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_FindAbsent(t *testing.T) {
	l := NewMemoryLedger()

	_, err := l.Find(context.Background(), "u1", "2026-08-31")
	require.ErrorIs(t, err, domain.ErrRecordAbsent)
}

func TestMemoryLedger_SaveAssignsIDAndKeepsItOnReplace(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	rec, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2026-08-31", Count: 1, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	again, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2026-08-31", Count: 2, Limit: 5})
	require.NoError(t, err)
	require.Equal(t, rec.ID, again.ID)
	require.EqualValues(t, 2, again.Count)
}

func TestMemoryLedger_CASCreatesRowWhenAbsent(t *testing.T) {
	l := NewMemoryLedger()

	rec, err := l.CompareAndSetCount(context.Background(), "u1", domain.LifetimeKey, 0, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.Count)
}

func TestMemoryLedger_CASConflictOnStaleExpected(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	_, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2026-08-31", Count: 2, Limit: 5})
	require.NoError(t, err)

	_, err = l.CompareAndSetCount(ctx, "u1", "2026-08-31", 1, 2, 5)
	require.ErrorIs(t, err, domain.ErrLedgerConflict)

	_, err = l.CompareAndSetCount(ctx, "u1", "nope", 3, 4, 5)
	require.ErrorIs(t, err, domain.ErrLedgerConflict, "absent row with non-zero expected is a conflict")
}

func TestMemoryLedger_ConcurrentCASLosesNoUpdates(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	// Read-CAS-retry igual ao fallback do serviço: com retentativas
	// suficientes, 20 escritores concorrentes terminam em exatamente 20.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				var expected int64
				if rec, err := l.Find(ctx, "u1", domain.LifetimeKey); err == nil {
					expected = rec.Count
				}
				if _, err := l.CompareAndSetCount(ctx, "u1", domain.LifetimeKey, expected, expected+1, 100); err == nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	rec, err := l.Find(ctx, "u1", domain.LifetimeKey)
	require.NoError(t, err)
	require.EqualValues(t, 20, rec.Count)
}

func TestMemoryLedger_RangeOrdersAndFiltersLifetime(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	for _, wk := range []string{"2026-08-03", "2026-08-01", "2026-08-02"} {
		_, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: wk, Count: 1, Limit: 5})
		require.NoError(t, err)
	}
	_, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: domain.LifetimeKey, Count: 1, Limit: 1})
	require.NoError(t, err)
	_, err = l.Save(ctx, domain.UsageRecord{UserID: "other", WindowKey: "2026-08-02", Count: 4, Limit: 5})
	require.NoError(t, err)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	recs, err := l.Range(ctx, "u1", from, to)
	require.NoError(t, err)

	require.Len(t, recs, 3)
	require.Equal(t, "2026-08-01", recs[0].WindowKey)
	require.Equal(t, "2026-08-02", recs[1].WindowKey)
	require.Equal(t, "2026-08-03", recs[2].WindowKey)
}

func TestMemoryLedger_DeleteZeroUsageKeepsLifetimeAndNonZero(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	_, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2026-01-01", Count: 0, Limit: 5})
	require.NoError(t, err)
	_, err = l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2026-01-02", Count: 3, Limit: 5})
	require.NoError(t, err)
	_, err = l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: domain.LifetimeKey, Count: 0, Limit: 1})
	require.NoError(t, err)

	n, err := l.DeleteZeroUsageBefore(ctx, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = l.Find(ctx, "u1", "2026-01-01")
	require.ErrorIs(t, err, domain.ErrRecordAbsent)
	_, err = l.Find(ctx, "u1", "2026-01-02")
	require.NoError(t, err)
	_, err = l.Find(ctx, "u1", domain.LifetimeKey)
	require.NoError(t, err)
}
