package application

import "usage-quota/quota/domain"

// Resolver converte o tier de assinatura na política efetiva de limitação
// (janela + limite numérico). Puro: sem efeitos colaterais, sem I/O.
//
// A ramificação free/premium que antes ficava espalhada pelos métodos vira um
// único valor de TierPolicy consumido uniformemente pelo Service.
type Resolver struct {
	policies map[domain.Tier]domain.TierPolicy
}

// failClosedPolicy é a política aplicada a tiers desconhecidos: a mais
// restritiva do sistema. Tier não reconhecido nunca libera uso extra.
var failClosedPolicy = domain.TierPolicy{Window: domain.WindowLifetime, Limit: 1}

type ResolverOption func(*Resolver)

// WithDailyLimit ajusta o limite diário de um tier (ex: planos premium com
// limites distintos por plano).
func WithDailyLimit(tier domain.Tier, limit int64) ResolverOption {
	return func(r *Resolver) {
		r.policies[tier] = domain.TierPolicy{Window: domain.WindowDaily, Limit: limit}
	}
}

// WithPolicy substitui a política inteira de um tier.
func WithPolicy(tier domain.Tier, p domain.TierPolicy) ResolverOption {
	return func(r *Resolver) { r.policies[tier] = p }
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		policies: map[domain.Tier]domain.TierPolicy{
			// Free consome o serviço exatamente uma vez, para sempre —
			// não é "uma por dia".
			domain.TierFree:    {Window: domain.WindowLifetime, Limit: 1},
			domain.TierPremium: {Window: domain.WindowDaily, Limit: 5},
			domain.TierStaff:   {Window: domain.WindowDaily, Limit: domain.Unlimited},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve retorna a política do tier. Tier desconhecido cai na política
// fail-closed, nunca em liberar geral.
func (r *Resolver) Resolve(tier domain.Tier) domain.TierPolicy {
	if p, ok := r.policies[tier]; ok {
		return p
	}
	return failClosedPolicy
}
