package application

import (
	"context"
	"errors"
	"time"

	"jump/middleware/ratelimit/domain"
)

// ErrNoSlot indica que nenhuma vaga foi liberada dentro do prazo.
var ErrNoSlot = errors.New("no concurrency slot available")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - AcquireTimeout <= 0: espera até ctx cancelar.
//   - AcquireTimeout > 0: espera até o timeout.
//
// Em caso de erro nenhuma vaga foi adquirida. Se foi o ctx do chamador que
// encerrou, o erro é ctx.Err(); caso contrário ErrNoSlot.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoSlot
}
