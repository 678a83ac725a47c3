package infra

import (
	"testing"
	"time"

	"jump/middleware/ratelimit/domain"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func TestBurstBuckets_DeniesWithTimeUntilNextToken(t *testing.T) {
	clk := &stepClock{now: time.Unix(1_700_000_000, 0)}
	b := NewBurstBuckets(2, 2, WithBurstClock(clk.Now))
	c := domain.Client{Key: "ip:10.0.0.1"}

	for i := 0; i < 2; i++ {
		if wait := b.Reserve(c, domain.ClassCreate); wait != 0 {
			t.Fatalf("expected request %d within burst, got wait %s", i+1, wait)
		}
	}
	if wait := b.Reserve(c, domain.ClassCreate); wait != 500*time.Millisecond {
		t.Fatalf("expected 500ms until next token, got %s", wait)
	}

	// a negação não consome token: meio segundo depois há exatamente um
	clk.now = clk.now.Add(500 * time.Millisecond)
	if wait := b.Reserve(c, domain.ClassCreate); wait != 0 {
		t.Fatalf("expected token after refill, got wait %s", wait)
	}
}

func TestBurstBuckets_ClassesAndClientsAreIndependent(t *testing.T) {
	clk := &stepClock{now: time.Unix(1_700_000_000, 0)}
	b := NewBurstBuckets(0.02, 1, WithBurstClock(clk.Now))
	anon := domain.Client{Key: "ip:10.0.0.1"}
	other := domain.Client{Key: "ip:10.0.0.2"}

	if b.Reserve(anon, domain.ClassCreate) != 0 {
		t.Fatalf("expected first create allowed")
	}
	if b.Reserve(anon, domain.ClassCreate) == 0 {
		t.Fatalf("expected second create denied")
	}
	if b.Reserve(anon, domain.ClassRead) != 0 {
		t.Fatalf("expected read to have its own bucket")
	}
	if b.Reserve(other, domain.ClassCreate) != 0 {
		t.Fatalf("expected another client to have its own bucket")
	}
	if b.Len() != 3 {
		t.Fatalf("expected 3 buckets, got %d", b.Len())
	}
}

func TestBurstBuckets_ZeroBurstStillAdmitsOne(t *testing.T) {
	b := NewBurstBuckets(1, 0)
	if b.Burst() != 1 {
		t.Fatalf("expected burst raised to 1, got %d", b.Burst())
	}
	if b.Reserve(domain.Client{Key: "ip:x"}, domain.ClassDelete) != 0 {
		t.Fatalf("expected first request allowed")
	}
}

func TestBurstBuckets_CleanupRemovesIdleBuckets(t *testing.T) {
	clk := &stepClock{now: time.Unix(1_700_000_000, 0)}
	b := NewBurstBuckets(0.02, 1,
		WithIdleTTL(time.Minute),
		WithCleanupEvery(0),
		WithBurstClock(clk.Now),
	)
	idle := domain.Client{Key: "ip:idle"}

	_ = b.Reserve(idle, domain.ClassCreate)
	clk.now = clk.now.Add(30 * time.Second)
	_ = b.Reserve(domain.Client{Key: "ip:active"}, domain.ClassCreate)
	clk.now = clk.now.Add(45 * time.Second)

	b.Cleanup()
	if b.Len() != 1 {
		t.Fatalf("expected only the active bucket to survive, got %d", b.Len())
	}

	// bucket recriado volta cheio
	if b.Reserve(idle, domain.ClassCreate) != 0 {
		t.Fatalf("expected a fresh bucket after cleanup")
	}
}
