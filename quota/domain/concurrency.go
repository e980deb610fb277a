package domain

import "context"

// SlotPool representa um recurso com capacidade finita (ex: escritas
// write-behind em voo para o ledger).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente
// uma vez. TryAcquire nunca bloqueia — é o que o caminho fire-and-forget usa
// para não segurar a requisição que disparou o incremento.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	TryAcquire() (release func(), ok bool)
}
