package application

import (
	"context"
	"fmt"
	"time"

	"jump/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// Limits associa um limite por janela a cada classe de operação.
// Classe ausente ou limite <= 0 => sem limite.
type Limits map[domain.OperationClass]int

// Limiter implementa o contador de janela fixa.
//
// Uma janela por (cliente, classe). Todo o estado fica no CounterStore, então
// vários processos compartilhando o mesmo backend enxergam o mesmo contador.
type Limiter struct {
	Counters domain.CounterStore
	Stats    domain.StatsStore
	Observer domain.DecisionObserver

	Window time.Duration
	// Limits vale para clientes identificados; AnonymousLimits para o resto.
	Limits          Limits
	AnonymousLimits Limits
	Policy          domain.FailurePolicy

	Now    func() time.Time
	Logger *zap.Logger
}

// WindowKey monta a chave do contador no backend.
//
// A chave do cliente é hasheada: pode ser uma API key e não deve aparecer em
// texto puro no backend.
func WindowKey(key domain.Key, class domain.OperationClass, index int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", key.Digest(), class, index)
}

// Admit conta a chamada na janela corrente e decide.
//
// Com erro do contador e política FailClosed, retorna uma Decision negada junto
// com um erro que casa com domain.ErrLimiterUnavailable.
func (l Limiter) Admit(ctx context.Context, client domain.Client, class domain.OperationClass) (domain.Decision, error) {
	limit := l.limitFor(client, class)
	if limit <= 0 || l.Counters == nil {
		return domain.Decision{Allowed: true}, nil
	}

	now := l.now()
	secs := l.windowSeconds()
	index := now.Unix() / secs
	resetAt := time.Unix((index+1)*secs, 0).UTC()

	dec := domain.Decision{Limit: limit, ResetAt: resetAt}

	n, err := l.Counters.Incr(ctx, WindowKey(client.Key, class, index), time.Duration(secs)*time.Second)
	if err != nil {
		if l.Policy == domain.FailOpen {
			l.logger().Warn("rate limiter unavailable, admitting request",
				zap.String("class", string(class)),
				zap.Error(err),
			)
			l.observe(class, "fail_open")
			return domain.Decision{Allowed: true}, nil
		}
		l.observe(class, "unavailable")
		dec.RetryAfter = retryAfter(now, resetAt)
		return dec, fmt.Errorf("%w: %w", domain.ErrLimiterUnavailable, err)
	}

	if n <= int64(limit) {
		dec.Allowed = true
		dec.Remaining = limit - int(n)
	} else {
		dec.RetryAfter = retryAfter(now, resetAt)
	}

	l.record(ctx, client, class, dec.Allowed, now)
	return dec, nil
}

func (l Limiter) limitFor(client domain.Client, class domain.OperationClass) int {
	if client.Identified {
		return l.Limits[class]
	}
	return l.AnonymousLimits[class]
}

func (l Limiter) windowSeconds() int64 {
	secs := int64(l.Window / time.Second)
	if secs < 1 {
		return 60
	}
	return secs
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l Limiter) logger() *zap.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return zap.NewNop()
}

func (l Limiter) observe(class domain.OperationClass, outcome string) {
	if l.Observer != nil {
		l.Observer.ObserveDecision(class, outcome)
	}
}

func (l Limiter) record(ctx context.Context, client domain.Client, class domain.OperationClass, allowed bool, at time.Time) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	l.observe(class, outcome)

	if l.Stats == nil {
		return
	}
	err := l.Stats.Record(ctx, domain.StatsEvent{
		Key:     client.Key,
		Class:   class,
		Allowed: allowed,
		At:      at,
	})
	if err != nil {
		l.logger().Debug("rate limit stats not recorded", zap.Error(err))
	}
}

// retryAfter arredonda para cima até a borda da janela, mínimo 1s.
func retryAfter(now, resetAt time.Time) time.Duration {
	d := resetAt.Sub(now)
	secs := (d + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
