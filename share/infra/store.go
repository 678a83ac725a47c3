package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jump/backend"
	"jump/share/domain"

	"go.uber.org/zap"
)

// StoreObserver recebe o resultado de cada operação (ex: métricas).
// result: "ok", "miss", "collision", "error".
type StoreObserver interface {
	ObserveStoreOp(op, result string)
}

// ExpiringStore implementa domain.EntryStore sobre um backend.Store.
//
// Expiração física é o TTL nativo do backend; aqui só se garante que uma
// entrada vencida nunca é devolvida.
type ExpiringStore struct {
	store    backend.Store
	clock    domain.Clock
	maxBytes int
	types    domain.ContentTypes
	logger   *zap.Logger
	observer StoreObserver
}

type StoreOption func(*ExpiringStore)

func WithClock(c domain.Clock) StoreOption {
	return func(s *ExpiringStore) { s.clock = c }
}

func WithMaxContentBytes(n int) StoreOption {
	return func(s *ExpiringStore) { s.maxBytes = n }
}

func WithContentTypes(types []string) StoreOption {
	return func(s *ExpiringStore) { s.types = domain.NewContentTypes(types) }
}

func WithLogger(l *zap.Logger) StoreOption {
	return func(s *ExpiringStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithObserver(o StoreObserver) StoreOption {
	return func(s *ExpiringStore) { s.observer = o }
}

func NewExpiringStore(store backend.Store, opts ...StoreOption) *ExpiringStore {
	s := &ExpiringStore{
		store:    store,
		clock:    SystemClock{},
		maxBytes: 10 << 20,
		types:    domain.NewContentTypes(domain.DefaultContentTypes),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExpiringStore) observe(op, result string) {
	if s.observer != nil {
		s.observer.ObserveStoreOp(op, result)
	}
}

func (s *ExpiringStore) Put(ctx context.Context, e *domain.Entry) error {
	if e == nil {
		return &domain.ValidationError{Field: "entry", Reason: "is required"}
	}
	if err := domain.ValidateID(e.ID); err != nil {
		return err
	}
	if err := domain.ValidateContent(e.Content, e.ContentType, s.maxBytes, s.types); err != nil {
		return err
	}

	now := s.clock.Now()
	if !e.ExpiresAt.After(now) {
		return &domain.ValidationError{Field: "expires_at", Reason: "must be in the future"}
	}
	ttl := e.ExpiresAt.Sub(now).Truncate(time.Millisecond)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	ok, err := s.store.SetNX(ctx, domain.EntryKey(e.ID), data, ttl)
	if err != nil {
		s.observe("put", "error")
		return fmt.Errorf("put entry: %w", err)
	}
	if !ok {
		s.observe("put", "collision")
		return domain.ErrCollision
	}
	s.observe("put", "ok")
	return nil
}

func (s *ExpiringStore) Get(ctx context.Context, id string) (*domain.Entry, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}

	key := domain.EntryKey(id)
	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.observe("get", "error")
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if !found {
		s.observe("get", "miss")
		return nil, nil
	}

	var e domain.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		s.observe("get", "error")
		return nil, fmt.Errorf("decode entry %s: %w", id, err)
	}

	now := s.clock.Now()
	if e.Expired(now) {
		s.observe("get", "miss")
		return nil, nil
	}
	s.observe("get", "ok")

	e.LastAccessedAt = &now
	s.touch(ctx, key, &e)
	return &e, nil
}

// touch grava LastAccessedAt sem mexer no TTL. Falha não derruba a leitura.
func (s *ExpiringStore) touch(ctx context.Context, key string, e *domain.Entry) {
	data, err := json.Marshal(e)
	if err == nil {
		_, err = s.store.Replace(ctx, key, data)
	}
	if err != nil {
		s.observe("touch", "error")
		s.logger.Warn("entry touch failed",
			zap.String("id", e.ID),
			zap.Bool("timeout", errors.Is(err, backend.ErrTimeout)),
			zap.Error(err),
		)
		return
	}
	s.observe("touch", "ok")
}

func (s *ExpiringStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := domain.ValidateID(id); err != nil {
		return false, err
	}

	removed, err := s.store.Delete(ctx, domain.EntryKey(id))
	if err != nil {
		s.observe("delete", "error")
		return false, fmt.Errorf("delete entry: %w", err)
	}
	if !removed {
		s.observe("delete", "miss")
		return false, nil
	}
	s.observe("delete", "ok")
	return true, nil
}
