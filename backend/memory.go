package backend

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory é uma implementação de Store em memória, com expiração dirigida
// por um relógio injetável.
//
// Útil para testes e para rodar um único processo sem Redis. Não compartilha
// estado entre processos.
type Memory struct {
	mu    sync.Mutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	value     []byte
	expiresAt time.Time // zero => sem TTL
}

func (it memItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

type MemoryOption func(*Memory)

// WithClock troca a fonte de tempo (ex: relógio manual em testes).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items: make(map[string]memItem),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lookup deve ser chamado com mu travado.
func (m *Memory) lookup(key string, now time.Time) (memItem, bool) {
	it, ok := m.items[key]
	if !ok {
		return memItem{}, false
	}
	if it.expired(now) {
		delete(m.items, key)
		return memItem{}, false
	}
	return it, true
}

func (m *Memory) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("setnx", key, err)
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key, now); ok {
		return false, nil
	}
	it := memItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = now.Add(ttl)
	}
	m.items[key] = it
	return true, nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, wrap("get", key, err)
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.lookup(key, now)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

func (m *Memory) Replace(ctx context.Context, key string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("replace", key, err)
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.lookup(key, now)
	if !ok {
		return false, nil
	}
	it.value = append([]byte(nil), value...)
	m.items[key] = it
	return true, nil
}

func (m *Memory) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("delete", key, err)
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key, now); !ok {
		return false, nil
	}
	delete(m.items, key)
	return true, nil
}

func (m *Memory) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrap("incr", key, err)
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.lookup(key, now)
	if !ok {
		it = memItem{value: []byte("1")}
		if ttl > 0 {
			it.expiresAt = now.Add(ttl)
		}
		m.items[key] = it
		return 1, nil
	}

	n, err := strconv.ParseInt(string(it.value), 10, 64)
	if err != nil {
		return 0, wrap("incr", key, fmt.Errorf("value is not an integer: %w", err))
	}
	n++
	it.value = []byte(strconv.FormatInt(n, 10))
	m.items[key] = it
	return n, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return wrap("ping", "", ctx.Err())
}

// Cleanup remove fisicamente as chaves expiradas.
func (m *Memory) Cleanup() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, it := range m.items {
		if it.expired(now) {
			delete(m.items, k)
		}
	}
}

// Len retorna o número de chaves (inclusive expiradas ainda não removidas).
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// StartJanitor roda Cleanup periodicamente até ctx encerrar.
func (m *Memory) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Cleanup()
			}
		}
	}()
}
