package domain

import "errors"

// Taxonomia de erros do subsistema. Sentinelas para errors.Is; causas
// concretas (driver, rede) vêm embrulhadas por cima.
var (
	// ErrCounterMiss: chave ausente no contador. NÃO é falha — dispara a
	// leitura do ledger e o aquecimento best-effort do cache.
	ErrCounterMiss = errors.New("counter: key not found")

	// ErrCounterUnavailable: o contador está inacessível (conexão, timeout).
	// Nunca deve ser interpretado como uso zero.
	ErrCounterUnavailable = errors.New("counter: store unavailable")

	// ErrRecordAbsent: nenhuma linha no ledger para o par pedido.
	ErrRecordAbsent = errors.New("ledger: record not found")

	// ErrLedgerConflict: compare-and-set perdeu a corrida; o chamador decide
	// se retenta (o serviço retenta um número pequeno e limitado de vezes).
	ErrLedgerConflict = errors.New("ledger: concurrent update conflict")

	// ErrUserNotFound: a camada de identidade não conhece o usuário.
	ErrUserNotFound = errors.New("quota: user not found")

	// ErrInvalidWindowKey: window-key malformada em operação administrativa.
	ErrInvalidWindowKey = errors.New("quota: invalid window key")
)
