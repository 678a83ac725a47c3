package backend

import (
	"context"
	"errors"
	"net"
	"time"
)

// Store é a capacidade de armazenamento remoto chave/valor usada pelo núcleo.
//
// Toda coordenação entre processos (unicidade de ids, contadores de rate limit)
// fica nas primitivas atômicas da implementação, nunca em locks do processo.
type Store interface {
	// SetNX grava value apenas se key não existir. O TTL é aplicado no mesmo comando.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Get retorna ok=false quando a chave não existe (ou já expirou).
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Replace sobrescreve uma chave existente preservando o TTL atual.
	// Retorna false se a chave não existe mais.
	Replace(ctx context.Context, key string, value []byte) (bool, error)

	// Delete retorna true se a chave existia.
	Delete(ctx context.Context, key string) (bool, error)

	// Incr incrementa o contador em key. Quando o resultado é 1 (primeiro
	// incremento) aplica ttl na mesma operação atômica.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	Ping(ctx context.Context) error
}

var (
	// ErrTimeout indica que a operação não terminou dentro do prazo configurado.
	ErrTimeout = errors.New("backend timeout")
	// ErrUnavailable indica falha de rede/serviço no backend.
	ErrUnavailable = errors.New("backend unavailable")
)

// OpError descreve uma falha do backend com operação e chave envolvidas.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return "backend " + e.Op + ": " + e.Err.Error()
	}
	return "backend " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// Timeout reporta se a causa foi estouro de prazo.
func (e *OpError) Timeout() bool {
	if errors.Is(e.Err, ErrTimeout) || errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Is permite errors.Is(err, ErrTimeout) e errors.Is(err, ErrUnavailable).
func (e *OpError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Timeout()
	case ErrUnavailable:
		return !e.Timeout()
	}
	return false
}

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Key: key, Err: err}
}
