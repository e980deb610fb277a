// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisCounterStore: contador atômico com TTL usando go-redis
//   - MemoryCounterStore: contador em memória com expiração preguiçosa
//   - SQLLedger: ledger durável sobre sqlx (postgres ou sqlite)
//   - MemoryLedger: ledger em memória para testes e desenvolvimento
//   - ChanPool: semáforo simples para limitar escritas em voo
package infra
