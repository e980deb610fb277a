package domain

import (
	"context"
	"time"
)

// UsageLedger é o registro durável por (usuário, window-key): fonte de verdade
// quando o contador está frio, ausente ou fora do ar, e base das consultas
// históricas.
//
// Implementações podem armazenar em Postgres, SQLite, memória, etc.
// CounterStore e UsageLedger não se conhecem; só o serviço os reconcilia.
type UsageLedger interface {
	// Find retorna a linha do par, ou ErrRecordAbsent.
	Find(ctx context.Context, user UserID, windowKey string) (UsageRecord, error)

	// Save cria-ou-substitui a linha com uma contagem autoritativa
	// (write-behind do contador, reset administrativo). Não é o caminho de
	// incremento concorrente: para isso existe CompareAndSetCount.
	Save(ctx context.Context, rec UsageRecord) (UsageRecord, error)

	// CompareAndSetCount grava next somente se a contagem atual ainda for
	// expected; retorna ErrLedgerConflict se outro escritor passou na frente.
	// Com expected == 0 e linha ausente, cria a linha.
	// É o primitivo do fallback de incremento quando o contador está fora.
	CompareAndSetCount(ctx context.Context, user UserID, windowKey string, expected, next, limit int64) (UsageRecord, error)

	// Range retorna as linhas DAILY do usuário no intervalo [from, to],
	// ordenadas por window-key crescente.
	Range(ctx context.Context, user UserID, from, to time.Time) ([]UsageRecord, error)

	// DeleteZeroUsageBefore remove linhas DAILY com contagem zero anteriores
	// a cutoff (manutenção de retenção). Linhas LIFETIME nunca são tocadas.
	// Retorna quantas linhas foram removidas.
	DeleteZeroUsageBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
