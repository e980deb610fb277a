package infra

import (
	"context"
	"sync"
	"time"

	"usage-quota/quota/domain"

	"github.com/jonboulle/clockwork"
)

// MemoryCounterStore é uma implementação em memória de domain.CounterStore.
// Útil para testes, desenvolvimento e deploys de instância única.
//
// A expiração é preguiçosa, como no Redis visto daqui: a entrada morre no
// próximo acesso depois do deadline, avaliado contra o relógio injetado —
// é isso que deixa a virada de meia-noite testável com fake clock.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[domain.Key]*memCounterEntry
	clock   clockwork.Clock
}

type memCounterEntry struct {
	value int64
	// expiresAt zero = sem TTL (janela LIFETIME).
	expiresAt time.Time
}

type MemoryCounterOption func(*MemoryCounterStore)

func WithCounterClock(clock clockwork.Clock) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.clock = clock }
}

func NewMemoryCounterStore(opts ...MemoryCounterOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		entries: make(map[domain.Key]*memCounterEntry),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// live retorna a entrada viva da chave, descartando a expirada. Chamar com mu.
func (s *MemoryCounterStore) live(key domain.Key) *memCounterEntry {
	ent, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !ent.expiresAt.IsZero() && !s.clock.Now().Before(ent.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return ent
}

func (s *MemoryCounterStore) Get(_ context.Context, key domain.Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.live(key)
	if ent == nil {
		return 0, domain.ErrCounterMiss
	}
	return ent.value, nil
}

func (s *MemoryCounterStore) Increment(_ context.Context, key domain.Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.live(key)
	if ent == nil {
		ent = &memCounterEntry{}
		s.entries[key] = ent
	}
	ent.value++
	return ent.value, nil
}

func (s *MemoryCounterStore) Seed(_ context.Context, key domain.Key, value int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(key) != nil {
		// Semântica SETNX: não clobberar um incremento que chegou antes.
		return nil
	}
	ent := &memCounterEntry{value: value}
	if ttl > 0 {
		ent.expiresAt = s.clock.Now().Add(ttl)
	}
	s.entries[key] = ent
	return nil
}

func (s *MemoryCounterStore) ExpireAfter(_ context.Context, key domain.Key, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent := s.live(key); ent != nil && ttl > 0 {
		ent.expiresAt = s.clock.Now().Add(ttl)
	}
	return nil
}

func (s *MemoryCounterStore) Delete(_ context.Context, key domain.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
