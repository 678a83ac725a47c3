package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout limita cada chamada ao backend a d.
//
// A chamada não herda o cancelamento do chamador: se o cliente HTTP desconecta,
// a operação (que é atômica) termina normalmente e o resultado é descartado.
// Estourado o prazo, o erro casa com ErrTimeout.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, d: d}
}

type timeoutStore struct {
	next Store
	d    time.Duration
}

func (t *timeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), t.d)
}

func (t *timeoutStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	ok, err := t.next.SetNX(ctx, key, value, ttl)
	return ok, deadline(ctx, "setnx", key, err)
}

func (t *timeoutStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	v, ok, err := t.next.Get(ctx, key)
	return v, ok, deadline(ctx, "get", key, err)
}

func (t *timeoutStore) Replace(ctx context.Context, key string, value []byte) (bool, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	ok, err := t.next.Replace(ctx, key, value)
	return ok, deadline(ctx, "replace", key, err)
}

func (t *timeoutStore) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	ok, err := t.next.Delete(ctx, key)
	return ok, deadline(ctx, "delete", key, err)
}

func (t *timeoutStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	n, err := t.next.Incr(ctx, key, ttl)
	return n, deadline(ctx, "incr", key, err)
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return deadline(ctx, "ping", "", t.next.Ping(ctx))
}

func deadline(ctx context.Context, op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return &OpError{Op: op, Key: key, Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
	}
	return wrap(op, key, err)
}
