package engine

import (
	"context"
	"testing"
	"time"

	"github.com/corvaxen/grecurl/job"
)

func TestJitterWaitStaysInExpectedRange(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		got := jitterWait(base)
		if got < base/2 || got >= base+base/2 {
			t.Fatalf("jitterWait(%v) = %v, want within [%v, %v)", base, got, base/2, base+base/2)
		}
	}
}

func TestWaitFixedJitterPacesSameHostRequests(t *testing.T) {
	l := newAdaptiveLimiter(100.0, 0)
	l.setFixedWait(30*time.Millisecond, false)

	ctx := context.Background()
	start := time.Now()
	if err := l.waitFixedJitter(ctx); err != nil {
		t.Fatalf("first wait should not block: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Fatalf("first call should return immediately (no prior request), took %v", elapsed)
	}

	start = time.Now()
	if err := l.waitFixedJitter(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("second call should sleep close to the configured wait, took %v", elapsed)
	}
}

func TestWaitFixedJitterNoopWithoutConfiguredWait(t *testing.T) {
	l := newAdaptiveLimiter(100.0, 0)
	ctx := context.Background()
	start := time.Now()
	if err := l.waitFixedJitter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.waitFixedJitter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Fatalf("no fixed wait configured means waitFixedJitter should never sleep, took %v", elapsed)
	}
}

func TestHostLimitersWithFixedWaitAppliesToExistingAndNewLimiters(t *testing.T) {
	h := newHostLimiters(500 * time.Millisecond)
	key := job.HostKey{Scheme: "http", Host: "a.example", Port: "80"}
	existing := h.get(key)

	h.withFixedWait(20*time.Millisecond, true)

	if existing.fixedWait != 20*time.Millisecond || !existing.randomWait {
		t.Fatalf("expected withFixedWait to update an already-created limiter, got fixedWait=%v randomWait=%v", existing.fixedWait, existing.randomWait)
	}

	fresh := h.get(job.HostKey{Scheme: "http", Host: "b.example", Port: "80"})
	if fresh.fixedWait != 20*time.Millisecond || !fresh.randomWait {
		t.Fatalf("expected a newly created limiter to inherit the configured fixed wait, got fixedWait=%v randomWait=%v", fresh.fixedWait, fresh.randomWait)
	}
}

func TestSetFixedWaitDisablesAdaptiveRate(t *testing.T) {
	l := newAdaptiveLimiter(10.0, 500*time.Millisecond)
	l.setFixedWait(50*time.Millisecond, false)

	before := l.currentRate
	l.ObserveRTT(5 * time.Second) // would otherwise force a steep backoff
	if l.currentRate != before {
		t.Fatalf("ObserveRTT should be a no-op once a fixed wait disables adaptive pacing, rate changed from %v to %v", before, l.currentRate)
	}
}
