package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"usage-quota/quota/domain"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Service orquestra contador rápido, ledger durável e política de tier para
// responder "este usuário ainda pode consumir uma unidade do serviço?".
//
// Ele não sabe nada sobre transporte (HTTP/gRPC), apenas decide e registra.
//
// Reconciliação entre os dois stores acontece só aqui: o contador é
// autoritativo para a decisão por requisição; o ledger é a fonte de verdade
// quando o contador está frio ou fora do ar, e guarda o histórico.
type Service struct {
	counter  domain.CounterStore
	ledger   domain.UsageLedger
	tiers    domain.TierSource
	resolver *Resolver

	clock clockwork.Clock
	loc   *time.Location
	log   *zap.Logger

	writer     *ledgerWriter
	casRetries int
}

type ServiceOption func(*Service)

// WithResolver troca o resolver de políticas (limites por plano).
func WithResolver(r *Resolver) ServiceOption {
	return func(s *Service) { s.resolver = r }
}

// WithClock injeta o relógio (testes de virada de dia usam fake clock).
func WithClock(c clockwork.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithLocation define o fuso da "meia-noite local" das janelas DAILY.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *Service) { s.loc = loc }
}

func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithWritePool limita escritas write-behind em voo para o ledger.
func WithWritePool(pool domain.SlotPool) ServiceOption {
	return func(s *Service) { s.writer.pool = pool }
}

// WithCASRetries ajusta as retentativas do incremento via ledger quando o
// contador está fora do ar.
func WithCASRetries(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.casRetries = n
		}
	}
}

func NewService(counter domain.CounterStore, ledger domain.UsageLedger, tiers domain.TierSource, opts ...ServiceOption) *Service {
	s := &Service{
		counter:    counter,
		ledger:     ledger,
		tiers:      tiers,
		resolver:   NewResolver(),
		clock:      clockwork.NewRealClock(),
		loc:        time.Local,
		log:        zap.NewNop(),
		casRetries: 3,
	}
	s.writer = newLedgerWriter(ledger, nil, zap.NewNop())
	for _, opt := range opts {
		opt(s)
	}
	s.writer.log = s.log
	return s
}

func (s *Service) now() time.Time { return s.clock.Now().In(s.loc) }

// policyFor lê o tier vigente no momento da chamada e o converte em política.
func (s *Service) policyFor(ctx context.Context, user domain.UserID) (domain.TierPolicy, error) {
	tier, err := s.tiers.TierOf(ctx, user)
	if err != nil {
		return domain.TierPolicy{}, err
	}
	return s.resolver.Resolve(tier), nil
}

// CanUse responde se o usuário ainda está abaixo do limite da janela vigente.
//
// Indisponibilidade do contador degrada para leitura do ledger — mais lenta,
// porém correta; nunca vira erro para o chamador. Limite atingido também não
// é erro: é um resultado normal (false).
func (s *Service) CanUse(ctx context.Context, user domain.UserID) (bool, error) {
	policy, err := s.policyFor(ctx, user)
	if err != nil {
		return false, err
	}
	usage, err := s.currentUsage(ctx, user, policy)
	if err != nil {
		return false, err
	}
	return usage < policy.Limit, nil
}

// CurrentUsage retorna a contagem vigente do usuário na janela da sua política.
func (s *Service) CurrentUsage(ctx context.Context, user domain.UserID) (int64, error) {
	policy, err := s.policyFor(ctx, user)
	if err != nil {
		return 0, err
	}
	return s.currentUsage(ctx, user, policy)
}

func (s *Service) currentUsage(ctx context.Context, user domain.UserID, policy domain.TierPolicy) (int64, error) {
	now := s.now()
	windowKey := domain.WindowKeyAt(policy.Window, now)
	key := domain.CounterKey(user, windowKey)

	n, err := s.counter.Get(ctx, key)
	if err == nil {
		return n, nil
	}

	miss := errors.Is(err, domain.ErrCounterMiss)
	if !miss {
		// Fora do ar ou timeout: NUNCA tratar como uso zero. Cai no ledger.
		s.log.Warn("counter store unavailable, falling back to ledger",
			zap.String("user", string(user)), zap.Error(err))
	}

	rec, lerr := s.ledger.Find(ctx, user, windowKey)
	if errors.Is(lerr, domain.ErrRecordAbsent) {
		return 0, nil
	}
	if lerr != nil {
		return 0, fmt.Errorf("usage lookup for %s: %w", user, lerr)
	}

	if miss && rec.Count > 0 {
		// Aquecimento best-effort: SETNX não clobbera um INCR concorrente, e
		// falha aqui não bloqueia a leitura.
		if serr := s.counter.Seed(ctx, key, rec.Count, s.ttlFor(policy.Window, now)); serr != nil {
			s.log.Debug("cache warm failed", zap.String("user", string(user)), zap.Error(serr))
		}
	}
	return rec.Count, nil
}

func (s *Service) ttlFor(w domain.Window, now time.Time) time.Duration {
	if w == domain.WindowDaily {
		return domain.UntilMidnight(now)
	}
	return 0
}

// Increment consome uma unidade: incrementa atomicamente o contador da janela
// vigente e retorna a nova contagem.
//
// ATENÇÃO (contrato intencional): Increment NÃO recusa ultrapassar o limite.
// O chamador deve consultar CanUse antes; quem pular a checagem consegue levar
// a contagem acima do limite. Ver Gate.Consume para a composição recomendada.
//
// A primeira escrita da janela define o TTL (até a meia-noite local para
// DAILY, recalculado a cada primeira escrita; sem TTL para LIFETIME). A
// persistência no ledger é assíncrona e logada; falha nela não derruba a
// requisição que consumiu a unidade.
func (s *Service) Increment(ctx context.Context, user domain.UserID) (int64, error) {
	policy, err := s.policyFor(ctx, user)
	if err != nil {
		return 0, err
	}

	now := s.now()
	windowKey := domain.WindowKeyAt(policy.Window, now)
	key := domain.CounterKey(user, windowKey)

	n, err := s.counter.Increment(ctx, key)
	if err != nil {
		s.log.Warn("counter store unavailable, incrementing via ledger compare-and-set",
			zap.String("user", string(user)), zap.Error(err))
		return s.incrementViaLedger(ctx, user, windowKey, policy.Limit)
	}

	if n == 1 && policy.Window == domain.WindowDaily {
		if terr := s.counter.ExpireAfter(ctx, key, domain.UntilMidnight(now)); terr != nil {
			// Sem TTL a chave não expira sozinha; o ledger segue correto e o
			// reset administrativo cobre o pior caso. Logar é obrigatório.
			s.log.Error("failed to set daily TTL on counter key",
				zap.String("user", string(user)), zap.String("window_key", windowKey), zap.Error(terr))
		}
	}

	s.writer.record(domain.UsageRecord{
		UserID:    user,
		WindowKey: windowKey,
		Count:     n,
		Limit:     policy.Limit,
		UpdatedAt: now,
	})
	return n, nil
}

// incrementViaLedger preserva a linearização do incremento quando o contador
// está fora: read-modify-write só com compare-and-set, nunca um overwrite
// cego. Conflito persistente após as retentativas sobe como ErrLedgerConflict
// (raro: exige contador já fora do ar e contenção alta no mesmo usuário).
func (s *Service) incrementViaLedger(ctx context.Context, user domain.UserID, windowKey string, limit int64) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < s.casRetries; attempt++ {
		var expected int64
		rec, err := s.ledger.Find(ctx, user, windowKey)
		switch {
		case errors.Is(err, domain.ErrRecordAbsent):
			expected = 0
		case err != nil:
			return 0, fmt.Errorf("ledger fallback increment for %s: %w", user, err)
		default:
			expected = rec.Count
		}

		next, err := s.ledger.CompareAndSetCount(ctx, user, windowKey, expected, expected+1, limit)
		if err == nil {
			return next.Count, nil
		}
		if !errors.Is(err, domain.ErrLedgerConflict) {
			return 0, fmt.Errorf("ledger fallback increment for %s: %w", user, err)
		}
		lastErr = err
	}
	return 0, fmt.Errorf("ledger fallback increment for %s exhausted %d attempts: %w", user, s.casRetries, lastErr)
}

// UsageInfo monta o snapshot composto de uso para a data corrente.
func (s *Service) UsageInfo(ctx context.Context, user domain.UserID) (domain.UsageInfo, error) {
	policy, err := s.policyFor(ctx, user)
	if err != nil {
		return domain.UsageInfo{}, err
	}
	usage, err := s.currentUsage(ctx, user, policy)
	if err != nil {
		return domain.UsageInfo{}, err
	}

	remaining := policy.Limit - usage
	if remaining < 0 {
		remaining = 0
	}
	return domain.UsageInfo{
		Date:         domain.DateKey(s.now()),
		CurrentUsage: usage,
		Limit:        policy.Limit,
		Remaining:    remaining,
		CanUse:       usage < policy.Limit,
	}, nil
}

// Reset zera administrativamente a janela indicada: apaga a chave do contador
// e grava contagem 0 no ledger. Idempotente — funciona mesmo sem linha prévia.
func (s *Service) Reset(ctx context.Context, user domain.UserID, windowKey string) error {
	if err := domain.ParseWindowKey(windowKey); err != nil {
		return err
	}

	key := domain.CounterKey(user, windowKey)
	if err := s.counter.Delete(ctx, key); err != nil {
		// Deixar a chave viva com contagem antiga tornaria o reset mentira;
		// o operador retenta quando o contador voltar.
		return fmt.Errorf("reset %s/%s: %w", user, windowKey, err)
	}

	limit := failClosedPolicy.Limit
	if rec, err := s.ledger.Find(ctx, user, windowKey); err == nil {
		limit = rec.Limit
	} else if policy, perr := s.policyFor(ctx, user); perr == nil {
		limit = policy.Limit
	}

	_, err := s.ledger.Save(ctx, domain.UsageRecord{
		UserID:    user,
		WindowKey: windowKey,
		Count:     0,
		Limit:     limit,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("reset %s/%s: %w", user, windowKey, err)
	}
	s.log.Info("usage reset", zap.String("user", string(user)), zap.String("window_key", windowKey))
	return nil
}

// History delega a consulta histórica ao ledger (relatórios/analytics).
func (s *Service) History(ctx context.Context, user domain.UserID, from, to time.Time) ([]domain.UsageRecord, error) {
	return s.ledger.Range(ctx, user, from, to)
}

// PurgeZeroUsage remove do ledger linhas diárias zeradas anteriores a cutoff
// (manutenção de retenção). Linhas LIFETIME nunca são tocadas.
func (s *Service) PurgeZeroUsage(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.ledger.DeleteZeroUsageBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("retention cleanup removed zero-usage rows", zap.Int64("rows", n))
	}
	return n, nil
}

// Flush espera as escritas write-behind em voo terminarem. Para shutdown
// gracioso e testes determinísticos.
func (s *Service) Flush() { s.writer.wait() }
