package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"jump/middleware/ratelimit/application"
	"jump/middleware/ratelimit/domain"
	"jump/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	// Pool tem precedência sobre Max (permite expor InUse como métrica).
	Pool           domain.SlotPool
	Max            int
	AcquireTimeout time.Duration
	Reject         RejectFunc
}

// ConcurrencyMiddleware limita requisições em voo. Sem vaga dentro de
// AcquireTimeout => 503.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	pool := opts.Pool
	if pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		pool = infra.NewChanPool(opts.Max)
	}
	if opts.Reject == nil {
		opts.Reject = defaultReject
	}

	svc := application.ConcurrencyService{
		Pool:           pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				if !errors.Is(err, application.ErrNoSlot) {
					// cliente desistiu; não há para quem responder
					return
				}
				opts.Reject(w, r, http.StatusServiceUnavailable)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
