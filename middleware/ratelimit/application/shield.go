package application

import (
	"time"

	"jump/middleware/ratelimit/domain"
)

// OutcomeShielded é o outcome reportado ao DecisionObserver quando o escudo
// barra a requisição antes do Limiter.
const OutcomeShielded = "shielded"

// Shield é o filtro local de rajadas (token bucket por cliente e classe).
//
// Roda antes do Limiter e não toca o backend.
type Shield struct {
	Buckets  domain.BurstLimiter
	Observer domain.DecisionObserver
	// MinRetryAfter é o piso do Retry-After (padrão 1s).
	MinRetryAfter time.Duration
}

// Check decide só pelo bucket local. Decisões do escudo não carregam Limit:
// os headers X-RateLimit-* continuam sendo do Limiter.
func (s Shield) Check(c domain.Client, class domain.OperationClass) domain.Decision {
	if s.Buckets == nil {
		return domain.Decision{Allowed: true}
	}

	wait := s.Buckets.Reserve(c, class)
	if wait <= 0 {
		return domain.Decision{Allowed: true}
	}

	floor := s.MinRetryAfter
	if floor <= 0 {
		floor = time.Second
	}
	if wait < floor {
		wait = floor
	}
	if s.Observer != nil {
		s.Observer.ObserveDecision(class, OutcomeShielded)
	}
	return domain.Decision{Allowed: false, RetryAfter: wait}
}
