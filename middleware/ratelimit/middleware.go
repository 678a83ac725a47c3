package ratelimit

import (
	"net/http"
	"time"

	"jump/middleware/ratelimit/application"
	"jump/middleware/ratelimit/domain"
)

// RejectFunc escreve a resposta de bloqueio. Retry-After já foi definido
// quando aplicável.
type RejectFunc func(w http.ResponseWriter, r *http.Request, status int)

func defaultReject(w http.ResponseWriter, _ *http.Request, status int) {
	http.Error(w, http.StatusText(status), status)
}

type ShieldOptions struct {
	Buckets  domain.BurstLimiter
	ClientFn ClientFunc
	Observer domain.DecisionObserver
	// MinRetryAfter é o piso do Retry-After (padrão 1s).
	MinRetryAfter time.Duration
	// Headers expõe RPS/burst do escudo (X-Shield-*).
	Headers bool
	Reject  RejectFunc
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// ClassForMethod mapeia o método HTTP para a classe de operação.
// ok=false para métodos que não são operações sobre entradas (ex: OPTIONS).
func ClassForMethod(method string) (domain.OperationClass, bool) {
	switch method {
	case http.MethodPost, http.MethodPut:
		return domain.ClassCreate, true
	case http.MethodGet, http.MethodHead:
		return domain.ClassRead, true
	case http.MethodDelete:
		return domain.ClassDelete, true
	}
	return "", false
}

// Shield corta rajadas por cliente e classe com um token bucket local antes
// de qualquer ida ao backend. Bloqueio => 429 com Retry-After.
func Shield(opts ShieldOptions) func(next http.Handler) http.Handler {
	if opts.Buckets == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.ClientFn == nil {
		opts.ClientFn = DefaultClientFunc("", false)
	}
	if opts.Reject == nil {
		opts.Reject = defaultReject
	}

	sh := application.Shield{
		Buckets:       opts.Buckets,
		Observer:      opts.Observer,
		MinRetryAfter: opts.MinRetryAfter,
	}
	ri, hasInfo := opts.Buckets.(rateInfo)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class, ok := ClassForMethod(r.Method)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if opts.Headers && hasInfo {
				w.Header().Set("X-Shield-RPS", formatFloat(ri.RPS()))
				w.Header().Set("X-Shield-Burst", formatInt(ri.Burst()))
			}

			dec := sh.Check(clientOf(r, opts.ClientFn), class)
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(dec.RetryAfterSeconds()))
				opts.Reject(w, r, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteDecisionHeaders escreve X-RateLimit-* para uma decisão do Limiter.
// Decisões sem limite (classe ilimitada, fail-open) não geram headers.
func WriteDecisionHeaders(h http.Header, dec domain.Decision) {
	if dec.Limit <= 0 {
		return
	}
	h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	if !dec.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", formatInt64(dec.ResetAt.Unix()))
	}
	if !dec.Allowed {
		h.Set("Retry-After", formatInt(dec.RetryAfterSeconds()))
	}
}
