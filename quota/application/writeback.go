package application

import (
	"context"
	"sync"
	"time"

	"usage-quota/quota/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ledgerWriter faz o write-through assíncrono do contador para o ledger.
//
// Fire-and-forget do ponto de vista da requisição: o incremento no contador é
// autoritativo para a decisão imediata, então falha aqui nunca derruba a
// chamada — mas é logada e retentada para os operadores conseguirem
// reconciliar drift.
//
// O pool limita escritas em voo; o rate limiter espaça as retentativas para
// não martelar um banco que já está sofrendo. Uma escrita descartada por
// falta de vaga se auto-corrige: o próximo incremento grava a contagem maior.
type ledgerWriter struct {
	ledger  domain.UsageLedger
	pool    domain.SlotPool
	retry   *rate.Limiter
	log     *zap.Logger
	retries int
	timeout time.Duration

	wg sync.WaitGroup
}

func newLedgerWriter(ledger domain.UsageLedger, pool domain.SlotPool, log *zap.Logger) *ledgerWriter {
	return &ledgerWriter{
		ledger:  ledger,
		pool:    pool,
		retry:   rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		log:     log,
		retries: 3,
		timeout: 5 * time.Second,
	}
}

// record agenda a persistência de rec. Nunca bloqueia o chamador.
func (w *ledgerWriter) record(rec domain.UsageRecord) {
	release := func() {}
	if w.pool != nil {
		var ok bool
		release, ok = w.pool.TryAcquire()
		if !ok {
			w.log.Warn("write-behind dropped, in-flight cap reached; next increment will catch up",
				zap.String("user", string(rec.UserID)),
				zap.String("window_key", rec.WindowKey),
				zap.Int64("count", rec.Count))
			return
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer release()

		// Contexto próprio: a requisição que disparou o incremento já pode
		// ter terminado quando esta escrita rodar.
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		var err error
		for attempt := 0; attempt <= w.retries; attempt++ {
			if attempt > 0 {
				if werr := w.retry.Wait(ctx); werr != nil {
					break
				}
			}
			if _, err = w.ledger.Save(ctx, rec); err == nil {
				return
			}
			w.log.Warn("ledger write-behind failed",
				zap.String("user", string(rec.UserID)),
				zap.String("window_key", rec.WindowKey),
				zap.Int64("count", rec.Count),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
		w.log.Error("ledger write-behind gave up, counter and ledger may drift until next increment",
			zap.String("user", string(rec.UserID)),
			zap.String("window_key", rec.WindowKey),
			zap.Int64("count", rec.Count),
			zap.Error(err))
	}()
}

// wait bloqueia até todas as escritas em voo terminarem (shutdown, testes).
func (w *ledgerWriter) wait() { w.wg.Wait() }
