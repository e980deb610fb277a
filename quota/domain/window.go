package domain

import (
	"fmt"
	"time"
)

// LifetimeKey é a window-key fixa de políticas LIFETIME.
const LifetimeKey = "ALL"

// dateLayout é o formato de window-key de políticas DAILY (data local).
const dateLayout = "2006-01-02"

// WindowKeyAt calcula a window-key vigente para a janela w no instante at.
//
// DAILY usa a data do calendário no fuso de at; LIFETIME usa a constante "ALL".
func WindowKeyAt(w Window, at time.Time) string {
	if w == WindowLifetime {
		return LifetimeKey
	}
	return at.Format(dateLayout)
}

// ParseWindowKey valida uma window-key vinda de fora (ex: reset administrativo).
// Aceita "ALL" ou uma data no formato YYYY-MM-DD.
func ParseWindowKey(key string) error {
	if key == LifetimeKey {
		return nil
	}
	if _, err := time.Parse(dateLayout, key); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidWindowKey, key)
	}
	return nil
}

// DateKey formata uma data como window-key DAILY.
func DateKey(at time.Time) string { return at.Format(dateLayout) }

// UntilMidnight retorna a duração até a próxima meia-noite local de at.
//
// Usa time.Date com dia+1 para que transições de horário de verão não
// produzam TTL errado. O valor é recalculado a cada primeira escrita do dia,
// nunca guardado: um restart no meio do dia ainda gera expiração correta.
func UntilMidnight(at time.Time) time.Duration {
	y, m, d := at.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, at.Location())
	return next.Sub(at)
}
