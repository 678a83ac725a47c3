package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jump/backend"
	"jump/middleware/ratelimit/domain"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type failingCounters struct{ err error }

func (f failingCounters) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, f.err
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveDecision(_ domain.OperationClass, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

type recordingStats struct {
	mu     sync.Mutex
	events []domain.StatsEvent
}

func (s *recordingStats) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// window começa em 1_700_000_040 (múltiplo de 60)
func newTestLimiter(clk *fixedClock, limit int) Limiter {
	return Limiter{
		Counters:        backend.NewMemory(backend.WithClock(clk.Now)),
		Window:          time.Minute,
		Limits:          Limits{domain.ClassCreate: limit, domain.ClassRead: limit},
		AnonymousLimits: Limits{domain.ClassCreate: 1},
		Now:             clk.Now,
	}
}

var alice = domain.Client{Key: "alice", Identified: true}

func TestLimiter_NthAllowedWithZeroRemainingThenDenied(t *testing.T) {
	clk := &fixedClock{now: time.Unix(1_700_000_040, 0)}
	l := newTestLimiter(clk, 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		dec, err := l.Admit(ctx, alice, domain.ClassCreate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !dec.Allowed {
			t.Fatalf("call %d: expected allowed", i)
		}
		if dec.Remaining != 3-i {
			t.Fatalf("call %d: expected remaining %d, got %d", i, 3-i, dec.Remaining)
		}
		if dec.Limit != 3 {
			t.Fatalf("expected limit 3, got %d", dec.Limit)
		}
	}

	clk.Set(time.Unix(1_700_000_040, 0).Add(15500 * time.Millisecond))
	dec, err := l.Admit(ctx, alice, domain.ClassCreate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("expected 4th call to be denied")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", dec.Remaining)
	}
	// 44.5s até a borda => 45s
	if dec.RetryAfter != 45*time.Second {
		t.Fatalf("expected RetryAfter=45s, got %s", dec.RetryAfter)
	}
	if dec.RetryAfterSeconds() != 45 {
		t.Fatalf("expected 45 seconds, got %d", dec.RetryAfterSeconds())
	}
	if !dec.ResetAt.Equal(time.Unix(1_700_000_100, 0)) {
		t.Fatalf("unexpected reset: %s", dec.ResetAt)
	}
}

func TestLimiter_NewWindowResetsBudget(t *testing.T) {
	clk := &fixedClock{now: time.Unix(1_700_000_040, 0)}
	l := newTestLimiter(clk, 1)
	ctx := context.Background()

	if dec, _ := l.Admit(ctx, alice, domain.ClassCreate); !dec.Allowed {
		t.Fatalf("expected first allowed")
	}
	if dec, _ := l.Admit(ctx, alice, domain.ClassCreate); dec.Allowed {
		t.Fatalf("expected second denied")
	}

	clk.Set(time.Unix(1_700_000_100, 0))
	if dec, _ := l.Admit(ctx, alice, domain.ClassCreate); !dec.Allowed {
		t.Fatalf("expected allowed in next window")
	}
}

func TestLimiter_ClassesAndClientsAreIndependent(t *testing.T) {
	clk := &fixedClock{now: time.Unix(1_700_000_040, 0)}
	l := newTestLimiter(clk, 1)
	ctx := context.Background()

	_, _ = l.Admit(ctx, alice, domain.ClassRead)
	if dec, _ := l.Admit(ctx, alice, domain.ClassRead); dec.Allowed {
		t.Fatalf("expected read budget exhausted")
	}
	if dec, _ := l.Admit(ctx, alice, domain.ClassCreate); !dec.Allowed {
		t.Fatalf("reads must not consume the create budget")
	}

	bob := domain.Client{Key: "bob", Identified: true}
	if dec, _ := l.Admit(ctx, bob, domain.ClassRead); !dec.Allowed {
		t.Fatalf("expected other client to have its own budget")
	}
}

func TestLimiter_AnonymousUsesLowerLimitsAndUnlistedClassIsUnlimited(t *testing.T) {
	clk := &fixedClock{now: time.Unix(1_700_000_040, 0)}
	l := newTestLimiter(clk, 10)
	ctx := context.Background()
	anon := domain.Client{Key: "203.0.113.9"}

	if dec, _ := l.Admit(ctx, anon, domain.ClassCreate); !dec.Allowed || dec.Limit != 1 {
		t.Fatalf("expected anonymous limit 1, got %+v", dec)
	}
	if dec, _ := l.Admit(ctx, anon, domain.ClassCreate); dec.Allowed {
		t.Fatalf("expected anonymous second create denied")
	}

	for i := 0; i < 5; i++ {
		dec, err := l.Admit(ctx, anon, domain.ClassDelete)
		if err != nil || !dec.Allowed {
			t.Fatalf("expected unlimited class to allow, got %+v err=%v", dec, err)
		}
		if dec.Limit != 0 {
			t.Fatalf("expected no limit reported, got %d", dec.Limit)
		}
	}
}

func TestLimiter_ConcurrentCallsAdmitExactlyLimit(t *testing.T) {
	clk := &fixedClock{now: time.Unix(1_700_000_040, 0)}
	l := newTestLimiter(clk, 5)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := l.Admit(context.Background(), alice, domain.ClassCreate)
			if err == nil && dec.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 5 {
		t.Fatalf("expected exactly 5 admitted, got %d", got)
	}
}

func TestLimiter_FailClosedDeniesWithDistinguishedError(t *testing.T) {
	clk := &fixedClock{now: time.Unix(1_700_000_040, 0)}
	obs := &countingObserver{}
	l := newTestLimiter(clk, 5)
	l.Counters = failingCounters{err: backend.ErrTimeout}
	l.Observer = obs

	dec, err := l.Admit(context.Background(), alice, domain.ClassCreate)
	if dec.Allowed {
		t.Fatalf("expected deny on backend failure")
	}
	if !errors.Is(err, domain.ErrLimiterUnavailable) {
		t.Fatalf("expected ErrLimiterUnavailable, got %v", err)
	}
	if !errors.Is(err, backend.ErrTimeout) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}
	if obs.outcomes["unavailable"] != 1 {
		t.Fatalf("expected unavailable outcome, got %v", obs.outcomes)
	}
}

func TestLimiter_FailOpenAdmits(t *testing.T) {
	clk := &fixedClock{now: time.Unix(1_700_000_040, 0)}
	l := newTestLimiter(clk, 5)
	l.Counters = failingCounters{err: backend.ErrUnavailable}
	l.Policy = domain.FailOpen

	dec, err := l.Admit(context.Background(), alice, domain.ClassCreate)
	if err != nil {
		t.Fatalf("expected no error with fail-open, got %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected admit with fail-open")
	}
}

func TestLimiter_RecordsStats(t *testing.T) {
	clk := &fixedClock{now: time.Unix(1_700_000_040, 0)}
	stats := &recordingStats{}
	l := newTestLimiter(clk, 1)
	l.Stats = stats

	_, _ = l.Admit(context.Background(), alice, domain.ClassCreate)
	_, _ = l.Admit(context.Background(), alice, domain.ClassCreate)

	if len(stats.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(stats.events))
	}
	if !stats.events[0].Allowed || stats.events[1].Allowed {
		t.Fatalf("unexpected events: %+v", stats.events)
	}
	if stats.events[0].Class != domain.ClassCreate || stats.events[0].Key != "alice" {
		t.Fatalf("unexpected event: %+v", stats.events[0])
	}
}

func TestWindowKey_HidesClientKey(t *testing.T) {
	k := WindowKey("secret-api-key", domain.ClassRead, 42)
	if !strings.HasPrefix(k, "ratelimit:") || !strings.HasSuffix(k, ":read:42") {
		t.Fatalf("unexpected key %q", k)
	}
	if got := WindowKey("secret-api-key", domain.ClassRead, 42); got != k {
		t.Fatalf("expected deterministic key")
	}
	if WindowKey("secret-api-key", domain.ClassCreate, 42) == k {
		t.Fatalf("expected class to change key")
	}
	if strings.Contains(k, "secret") {
		t.Fatalf("client key leaked into %q", k)
	}
}

func TestRetryAfter_MinimumOneSecond(t *testing.T) {
	now := time.Unix(100, 0)
	if got := retryAfter(now, now); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
	if got := retryAfter(now, now.Add(1500*time.Millisecond)); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
}
