// Package quota fornece o wiring do subsistema de cota de uso / entitlement.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de Redis/SQL)
//   - application: casos de uso (decisão de cota, incremento, reset, histórico)
//   - infra: implementações concretas (contador Redis/memória, ledger SQL/memória)
//   - quota (este pacote): montagem do Service a partir de Options + facade Gate
//
// Fluxo por requisição de uso do serviço:
//
//  1. A camada de requests (fora deste módulo) resolve o usuário autenticado
//  2. Chama Service.CanUse antes da ação cobrável
//  3. Executada a ação, chama Service.Increment
//  4. O contador rápido decide; o ledger durável registra assíncrono
//
// O contador (Redis) é autoritativo para a decisão imediata; com ele fora do
// ar o serviço degrada para o ledger sem propagar erro nas leituras. O reset
// diário é TTL até a meia-noite local, sem scheduler.
//
// Variáveis de ambiente do binário administrativo (cmd/quotactl) controlam o
// comportamento, como QUOTA_REDIS_ADDR, LEDGER_DRIVER e LEDGER_DSN.
package quota
