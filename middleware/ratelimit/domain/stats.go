package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Observação: cuidado com cardinalidade ao guardar Key (pode explodir o
// número de chaves numa base como Redis).
type StatsEvent struct {
	Key     Key
	Class   OperationClass
	Allowed bool

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem chama trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
