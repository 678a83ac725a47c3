package domain

import (
	"errors"
	"fmt"

	"jump/backend"
	rldomain "jump/middleware/ratelimit/domain"
)

// ValidationError indica entrada inválida; repetir a mesma requisição não adianta.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	// ErrCollision: o id gerado já existe. Tratado internamente (novo id).
	ErrCollision = errors.New("entry id already exists")
	// ErrGenerationExhausted: todas as tentativas de id colidiram.
	ErrGenerationExhausted = errors.New("could not generate a unique entry id")

	ErrBackendTimeout     = backend.ErrTimeout
	ErrBackendUnavailable = backend.ErrUnavailable
	ErrLimiterUnavailable = rldomain.ErrLimiterUnavailable
)

// RateLimitedError é a negação do limiter para uma classe de operação.
type RateLimitedError struct {
	Class    rldomain.OperationClass
	Decision rldomain.Decision
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (%s): retry after %ds", e.Class, e.Decision.RetryAfterSeconds())
}
