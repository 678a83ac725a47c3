package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

type Key string

// Digest é o xxhash64 da chave em hex. Chaves de cliente podem ser API keys:
// tudo que vai para o backend usa Digest, nunca a chave crua.
func (k Key) Digest() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(string(k)))
}

// OperationClass particiona o orçamento de requisições: uma rajada de leituras
// não consome o orçamento de criação e vice-versa.
type OperationClass string

const (
	ClassCreate OperationClass = "create"
	ClassRead   OperationClass = "read"
	ClassDelete OperationClass = "delete"
)

// Classes lista as classes conhecidas, na ordem usada em relatórios.
var Classes = []OperationClass{ClassCreate, ClassRead, ClassDelete}

// Client identifica quem está fazendo a requisição.
//
// Identified=false significa que não houve identidade explícita (ex: caiu no IP)
// e vale o limite anônimo da classe, que é menor.
type Client struct {
	Key        Key
	Identified bool
}

// Decision é o resultado de uma admissão.
type Decision struct {
	Allowed bool
	// Limit e Remaining ficam zerados quando a classe não tem limite.
	Limit     int
	Remaining int
	// ResetAt é o fim da janela corrente.
	ResetAt time.Time
	// RetryAfter só é preenchido quando bloqueia.
	RetryAfter time.Duration
}

// RetryAfterSeconds arredonda RetryAfter para cima, como vai no header Retry-After.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int((d.RetryAfter + time.Second - 1) / time.Second)
}

// CounterStore é o contador compartilhado (mesmo backend das entradas).
//
// Incr deve incrementar e, no primeiro incremento, aplicar ttl na mesma
// operação atômica.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// FailurePolicy decide o que fazer quando o CounterStore está fora.
type FailurePolicy string

const (
	// FailClosed nega a requisição (padrão).
	FailClosed FailurePolicy = "closed"
	// FailOpen admite sem contar.
	FailOpen FailurePolicy = "open"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailClosed:
		return FailClosed, nil
	case FailOpen:
		return FailOpen, nil
	}
	return "", fmt.Errorf("invalid failure policy %q (want closed or open)", s)
}

// ErrLimiterUnavailable é devolvido quando o contador não respondeu e a
// política é FailClosed.
var ErrLimiterUnavailable = errors.New("rate limiter unavailable")

// DecisionObserver recebe cada resultado (ex: métricas).
// outcome: "allowed", "denied", "unavailable" ou "fail_open".
type DecisionObserver interface {
	ObserveDecision(class OperationClass, outcome string)
}

// BurstLimiter é o filtro local de rajadas, por cliente e classe.
//
// Reserve consome um token e devolve 0, ou devolve quanto falta para o
// próximo token sem consumir nada.
type BurstLimiter interface {
	Reserve(c Client, class OperationClass) time.Duration
}

// SlotPool representa um recurso com capacidade finita (ex: requisições em voo).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
