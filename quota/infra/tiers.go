package infra

import (
	"context"
	"sync"

	"usage-quota/quota/domain"
)

// StaticTierSource é um domain.TierSource de tabela fixa: útil em testes, no
// binário administrativo e em deploys onde o billing ainda não está plugado.
//
// Usuário fora da tabela recebe o tier default; com default vazio, retorna
// ErrUserNotFound.
type StaticTierSource struct {
	mu    sync.RWMutex
	tiers map[domain.UserID]domain.Tier
	def   domain.Tier
}

func NewStaticTierSource(def domain.Tier) *StaticTierSource {
	return &StaticTierSource{
		tiers: make(map[domain.UserID]domain.Tier),
		def:   def,
	}
}

// Set registra/atualiza o tier de um usuário.
func (s *StaticTierSource) Set(user domain.UserID, tier domain.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[user] = tier
}

func (s *StaticTierSource) TierOf(_ context.Context, user domain.UserID) (domain.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tier, ok := s.tiers[user]; ok {
		return tier, nil
	}
	if s.def == "" {
		return "", domain.ErrUserNotFound
	}
	return s.def, nil
}
