package infra

import (
	"context"
	"sync"
	"time"

	"jump/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// BurstBuckets mantém um token bucket por (cliente, classe) em memória.
// Buckets sem uso por idleTTL são descartados pelo janitor.
//
// É local ao processo e complementa o limite por janela do backend.
type BurstBuckets struct {
	mu           sync.Mutex
	buckets      map[bucketKey]*bucket
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type bucketKey struct {
	client domain.Key
	class  domain.OperationClass
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BurstOption func(*BurstBuckets)

func WithIdleTTL(d time.Duration) BurstOption {
	return func(b *BurstBuckets) { b.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BurstOption {
	return func(b *BurstBuckets) { b.cleanupEvery = d }
}

func WithBurstClock(now func() time.Time) BurstOption {
	return func(b *BurstBuckets) { b.now = now }
}

// NewBurstBuckets cria buckets com rps tokens/s e capacidade burst (mínimo 1).
func NewBurstBuckets(rps float64, burst int, opts ...BurstOption) *BurstBuckets {
	if burst < 1 {
		burst = 1
	}
	b := &BurstBuckets{
		buckets:      make(map[bucketKey]*bucket),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BurstBuckets) RPS() float64 { return float64(b.rps) }
func (b *BurstBuckets) Burst() int   { return b.burst }

// Reserve implementa domain.BurstLimiter.
func (b *BurstBuckets) Reserve(c domain.Client, class domain.OperationClass) time.Duration {
	now := b.now()
	k := bucketKey{client: c.Key, class: class}

	b.mu.Lock()
	bk, ok := b.buckets[k]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.rps, b.burst)}
		b.buckets[k] = bk
	}
	bk.lastSeen = now
	b.mu.Unlock()

	r := bk.lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Second
	}
	wait := r.DelayFrom(now)
	if wait > 0 {
		// devolve o token: quem foi barrado não entra na fila
		r.CancelAt(now)
	}
	return wait
}

// Len retorna quantos buckets estão ativos.
func (b *BurstBuckets) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

func (b *BurstBuckets) Cleanup() {
	cutoff := b.now().Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()

	for k, bk := range b.buckets {
		if bk.lastSeen.Before(cutoff) {
			delete(b.buckets, k)
		}
	}
}

// StartJanitor roda Cleanup a cada cleanupEvery até ctx encerrar.
func (b *BurstBuckets) StartJanitor(ctx context.Context) {
	if b.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(b.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.Cleanup()
			}
		}
	}()
}
