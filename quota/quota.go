package quota

import (
	"context"
	"time"

	"usage-quota/quota/application"
	"usage-quota/quota/domain"
	"usage-quota/quota/infra"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Options struct {
	// Counter é o contador rápido (injetado, nunca singleton de processo:
	// construa um por processo e passe aqui — testes usam o de memória).
	Counter domain.CounterStore
	// Ledger é o registro durável.
	Ledger domain.UsageLedger
	// Tiers fornece o tier vigente de cada usuário (camada de billing).
	Tiers domain.TierSource

	Resolver *application.Resolver
	Clock    clockwork.Clock
	Location *time.Location
	Logger   *zap.Logger

	// MaxInFlightWrites limita escritas write-behind simultâneas no ledger.
	// 0 usa o padrão (32); negativo desliga o limite.
	MaxInFlightWrites int

	// CASRetries limita as retentativas do incremento via ledger com o
	// contador fora do ar. 0 usa o padrão do Service.
	CASRetries int
}

// New monta um Service pronto para uso a partir das Options.
func New(opts Options) *application.Service {
	if opts.MaxInFlightWrites == 0 {
		opts.MaxInFlightWrites = 32
	}

	svcOpts := []application.ServiceOption{}
	if opts.Resolver != nil {
		svcOpts = append(svcOpts, application.WithResolver(opts.Resolver))
	}
	if opts.Clock != nil {
		svcOpts = append(svcOpts, application.WithClock(opts.Clock))
	}
	if opts.Location != nil {
		svcOpts = append(svcOpts, application.WithLocation(opts.Location))
	}
	if opts.Logger != nil {
		svcOpts = append(svcOpts, application.WithLogger(opts.Logger))
	}
	if opts.MaxInFlightWrites > 0 {
		svcOpts = append(svcOpts, application.WithWritePool(infra.NewChanPool(opts.MaxInFlightWrites)))
	}
	if opts.CASRetries > 0 {
		svcOpts = append(svcOpts, application.WithCASRetries(opts.CASRetries))
	}

	return application.NewService(opts.Counter, opts.Ledger, opts.Tiers, svcOpts...)
}

// Gate compõe CanUse + Increment para quem quer uma chamada só.
//
// A composição NÃO é atômica: entre a checagem e o incremento, outra
// requisição do mesmo usuário pode passar — overshoot limitado é possível por
// contrato (Increment não recusa ultrapassar o limite). Para a grande maioria
// dos chamadores isso é aceitável; quem precisar de exatidão estrita deve
// serializar os consumos do usuário.
type Gate struct {
	svc *application.Service
}

func NewGate(svc *application.Service) *Gate {
	return &Gate{svc: svc}
}

// Consume tenta consumir uma unidade. Retorna o snapshot de uso pós-decisão e
// se o consumo foi permitido. Limite atingido não é erro.
func (g *Gate) Consume(ctx context.Context, user domain.UserID) (domain.UsageInfo, bool, error) {
	ok, err := g.svc.CanUse(ctx, user)
	if err != nil {
		return domain.UsageInfo{}, false, err
	}
	if !ok {
		info, err := g.svc.UsageInfo(ctx, user)
		return info, false, err
	}

	if _, err := g.svc.Increment(ctx, user); err != nil {
		return domain.UsageInfo{}, false, err
	}
	info, err := g.svc.UsageInfo(ctx, user)
	return info, true, err
}
