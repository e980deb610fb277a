package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"usage-quota/quota/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SQLLedger implementa domain.UsageLedger sobre sqlx.
//
// Funciona com postgres (lib/pq) e sqlite (mattn/go-sqlite3): o upsert usa
// ON CONFLICT, que os dois dialetos suportam, e os placeholders passam por
// Rebind. Uma linha por (user_id, window_key); id é uuid.
type SQLLedger struct {
	db *sqlx.DB
}

const sqlLedgerSchema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id          VARCHAR(36) PRIMARY KEY,
	user_id     VARCHAR(128) NOT NULL,
	window_key  VARCHAR(10)  NOT NULL,
	usage_count BIGINT       NOT NULL DEFAULT 0,
	usage_limit BIGINT       NOT NULL,
	updated_at  TIMESTAMP    NOT NULL,
	UNIQUE (user_id, window_key)
);
`

func NewSQLLedger(db *sqlx.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

// EnsureSchema cria a tabela se necessário. Chamar uma vez no bootstrap.
func (l *SQLLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, sqlLedgerSchema); err != nil {
		return fmt.Errorf("ledger schema: %w", err)
	}
	return nil
}

func (l *SQLLedger) Find(ctx context.Context, user domain.UserID, windowKey string) (domain.UsageRecord, error) {
	var rec domain.UsageRecord
	q := l.db.Rebind(`SELECT id, user_id, window_key, usage_count, usage_limit, updated_at
		FROM usage_records WHERE user_id = ? AND window_key = ?`)
	err := l.db.GetContext(ctx, &rec, q, string(user), windowKey)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UsageRecord{}, domain.ErrRecordAbsent
	}
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("ledger find: %w", err)
	}
	return rec, nil
}

func (l *SQLLedger) Save(ctx context.Context, rec domain.UsageRecord) (domain.UsageRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	q := l.db.Rebind(`INSERT INTO usage_records (id, user_id, window_key, usage_count, usage_limit, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, window_key) DO UPDATE SET
			usage_count = excluded.usage_count,
			usage_limit = excluded.usage_limit,
			updated_at  = excluded.updated_at`)
	if _, err := l.db.ExecContext(ctx, q,
		rec.ID, string(rec.UserID), rec.WindowKey, rec.Count, rec.Limit, rec.UpdatedAt); err != nil {
		return domain.UsageRecord{}, fmt.Errorf("ledger save: %w", err)
	}
	return l.Find(ctx, rec.UserID, rec.WindowKey)
}

func (l *SQLLedger) CompareAndSetCount(ctx context.Context, user domain.UserID, windowKey string, expected, next, limit int64) (domain.UsageRecord, error) {
	now := time.Now()

	if expected == 0 {
		// Linha pode não existir ainda: INSERT condicional primeiro.
		// DO NOTHING + RowsAffected==0 detecta a corrida com outro criador.
		q := l.db.Rebind(`INSERT INTO usage_records (id, user_id, window_key, usage_count, usage_limit, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, window_key) DO NOTHING`)
		res, err := l.db.ExecContext(ctx, q, uuid.NewString(), string(user), windowKey, next, limit, now)
		if err != nil {
			return domain.UsageRecord{}, fmt.Errorf("ledger cas insert: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return l.Find(ctx, user, windowKey)
		}
		// A linha existe; cai no UPDATE condicional abaixo.
	}

	q := l.db.Rebind(`UPDATE usage_records
		SET usage_count = ?, usage_limit = ?, updated_at = ?
		WHERE user_id = ? AND window_key = ? AND usage_count = ?`)
	res, err := l.db.ExecContext(ctx, q, next, limit, now, string(user), windowKey, expected)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("ledger cas update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.UsageRecord{}, domain.ErrLedgerConflict
	}
	return l.Find(ctx, user, windowKey)
}

func (l *SQLLedger) Range(ctx context.Context, user domain.UserID, from, to time.Time) ([]domain.UsageRecord, error) {
	// Window-keys diárias (YYYY-MM-DD) ordenam lexicograficamente.
	q := l.db.Rebind(`SELECT id, user_id, window_key, usage_count, usage_limit, updated_at
		FROM usage_records
		WHERE user_id = ? AND window_key <> ? AND window_key >= ? AND window_key <= ?
		ORDER BY window_key ASC`)

	out := []domain.UsageRecord{}
	err := l.db.SelectContext(ctx, &out, q,
		string(user), domain.LifetimeKey, domain.DateKey(from), domain.DateKey(to))
	if err != nil {
		return nil, fmt.Errorf("ledger range: %w", err)
	}
	return out, nil
}

func (l *SQLLedger) DeleteZeroUsageBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := l.db.Rebind(`DELETE FROM usage_records
		WHERE window_key <> ? AND usage_count = 0 AND window_key < ?`)
	res, err := l.db.ExecContext(ctx, q, domain.LifetimeKey, domain.DateKey(cutoff))
	if err != nil {
		return 0, fmt.Errorf("ledger cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger cleanup: %w", err)
	}
	return n, nil
}
