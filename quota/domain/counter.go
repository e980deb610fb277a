package domain

import (
	"context"
	"time"
)

// CounterStore é o contador rápido e atômico usado no caminho quente da cota.
//
// Todas as operações são um único round-trip; nenhuma transação multi-chave
// é assumida. A implementação pode ser Redis, memória, etc.
//
// Contrato de erro: chave ausente é ErrCounterMiss; indisponibilidade do store
// (timeout incluso) embrulha ErrCounterUnavailable. Quem chama NUNCA deve
// tratar indisponibilidade como "uso zero" — é esse sinal que permite ao
// serviço degradar para o ledger em vez de liberar um usuário no limite.
type CounterStore interface {
	// Get retorna o valor atual da chave, ou ErrCounterMiss.
	Get(ctx context.Context, key Key) (int64, error)

	// Increment incrementa atomicamente e retorna o valor pós-incremento.
	// Não pode perder updates sob chamadas concorrentes na mesma chave.
	Increment(ctx context.Context, key Key) (int64, error)

	// Seed grava value apenas se a chave estiver ausente (semântica SETNX),
	// com TTL opcional (ttl <= 0 não expira). Usado para aquecer o cache a
	// partir do ledger sem clobberar um Increment concorrente.
	Seed(ctx context.Context, key Key, value int64, ttl time.Duration) error

	// ExpireAfter define/renova o TTL da chave. Idempotente.
	ExpireAfter(ctx context.Context, key Key, ttl time.Duration) error

	// Delete remove a chave. Chave ausente não é erro.
	Delete(ctx context.Context, key Key) error
}
