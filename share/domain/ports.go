package domain

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

// IDGenerator gera ids opacos e imprevisíveis.
type IDGenerator interface {
	Generate() (string, error)
}

// EntryStore é o contrato do armazenamento expirável.
//
// Ausência não é erro: Get retorna (nil, nil) e Delete retorna false.
type EntryStore interface {
	// Put grava com set-if-not-exists e TTL atômicos; id existente => ErrCollision.
	Put(ctx context.Context, e *Entry) error
	// Get atualiza LastAccessedAt em best-effort.
	Get(ctx context.Context, id string) (*Entry, error)
	Delete(ctx context.Context, id string) (bool, error)
}
