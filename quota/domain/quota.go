package domain

// Camada de domínio do controle de cota.
//
// Regras e contratos (interfaces/tipos) sem dependência de infraestrutura.

import (
	"context"
	"math"
)

// UserID identifica o usuário dono da cota (vem da camada de identidade,
// que está fora deste subsistema).
type UserID string

// Tier é a classe de assinatura do usuário, fornecida pela camada de billing.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierStaff   Tier = "staff"
)

// Window é o escopo temporal da contagem de uso.
type Window string

const (
	// WindowDaily reinicia à meia-noite local (via TTL da chave, sem scheduler).
	WindowDaily Window = "daily"
	// WindowLifetime nunca reinicia.
	WindowLifetime Window = "lifetime"
)

// Unlimited é o sentinela para papéis administrativos sem limite numérico.
// Cabe em int32 para não estourar colunas/consumidores JSON.
const Unlimited int64 = math.MaxInt32

// TierPolicy é a política efetiva de limitação de um tier: qual janela conta
// e quantos usos ela permite.
//
// Invariante: Limit >= 1 (Unlimited também satisfaz).
type TierPolicy struct {
	Window Window
	Limit  int64
}

// TierSource fornece o tier vigente de um usuário no momento da chamada.
// Mudanças de plano são lidas sob demanda; este subsistema não consome eventos.
//
// Implementações devem retornar ErrUserNotFound para usuário inexistente.
type TierSource interface {
	TierOf(ctx context.Context, user UserID) (Tier, error)
}

// Key é a chave do contador rápido para um par (usuário, janela).
// O prefixo de namespace é responsabilidade da infra.
type Key string

// CounterKey monta a chave canônica do contador.
func CounterKey(user UserID, windowKey string) Key {
	return Key(string(user) + ":" + windowKey)
}
