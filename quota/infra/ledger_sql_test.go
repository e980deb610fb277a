package infra

import (
	"context"
	"testing"
	"time"

	"usage-quota/quota/domain"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newSQLiteLedger(t *testing.T) *SQLLedger {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// :memory: é por conexão; uma conexão só mantém todo mundo no mesmo banco.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	l := NewSQLLedger(db)
	require.NoError(t, l.EnsureSchema(context.Background()))
	return l
}

func TestSQLLedger_FindAbsent(t *testing.T) {
	l := newSQLiteLedger(t)

	_, err := l.Find(context.Background(), "u1", "2026-08-31")
	require.ErrorIs(t, err, domain.ErrRecordAbsent)
}

func TestSQLLedger_SaveUpserts(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	rec, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2026-08-31", Count: 1, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.EqualValues(t, 1, rec.Count)

	rec2, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2026-08-31", Count: 4, Limit: 5})
	require.NoError(t, err)
	require.EqualValues(t, 4, rec2.Count)

	found, err := l.Find(ctx, "u1", "2026-08-31")
	require.NoError(t, err)
	require.EqualValues(t, 4, found.Count)
	require.EqualValues(t, 5, found.Limit)
}

func TestSQLLedger_CASCreatesAndIncrements(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	rec, err := l.CompareAndSetCount(ctx, "u7", domain.LifetimeKey, 0, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.Count)

	rec, err = l.CompareAndSetCount(ctx, "u7", domain.LifetimeKey, 1, 2, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, rec.Count)
}

func TestSQLLedger_CASConflicts(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	_, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2026-08-31", Count: 2, Limit: 5})
	require.NoError(t, err)

	// Expected desatualizado.
	_, err = l.CompareAndSetCount(ctx, "u1", "2026-08-31", 1, 2, 5)
	require.ErrorIs(t, err, domain.ErrLedgerConflict)

	// Expected zero com linha já existente (corrida de criação).
	_, err = l.CompareAndSetCount(ctx, "u1", "2026-08-31", 0, 1, 5)
	require.ErrorIs(t, err, domain.ErrLedgerConflict)
}

func TestSQLLedger_RangeOrdered(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	for _, wk := range []string{"2026-08-10", "2026-08-08", "2026-08-09"} {
		_, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: wk, Count: 2, Limit: 5})
		require.NoError(t, err)
	}
	_, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: domain.LifetimeKey, Count: 1, Limit: 1})
	require.NoError(t, err)

	from := time.Date(2026, 8, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	recs, err := l.Range(ctx, "u1", from, to)
	require.NoError(t, err)

	require.Len(t, recs, 2)
	require.Equal(t, "2026-08-09", recs[0].WindowKey)
	require.Equal(t, "2026-08-10", recs[1].WindowKey)
}

func TestSQLLedger_DeleteZeroUsageBefore(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLedger(t)

	_, err := l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2025-12-01", Count: 0, Limit: 5})
	require.NoError(t, err)
	_, err = l.Save(ctx, domain.UsageRecord{UserID: "u1", WindowKey: "2025-12-02", Count: 1, Limit: 5})
	require.NoError(t, err)
	_, err = l.Save(ctx, domain.UsageRecord{UserID: "u2", WindowKey: domain.LifetimeKey, Count: 0, Limit: 1})
	require.NoError(t, err)

	n, err := l.DeleteZeroUsageBefore(ctx, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = l.Find(ctx, "u1", "2025-12-01")
	require.ErrorIs(t, err, domain.ErrRecordAbsent)
	_, err = l.Find(ctx, "u1", "2025-12-02")
	require.NoError(t, err)
	_, err = l.Find(ctx, "u2", domain.LifetimeKey)
	require.NoError(t, err)
}
