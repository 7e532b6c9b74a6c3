package engine

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/corvaxen/grecurl/job"
)

const (
	minRateFloor   = 1.0
	maxRateCeiling = 100.0
	emaAlpha       = 0.2
	recoveryFactor = 1.1
	backoffFactor  = 0.5
)

// adaptiveLimiter dynamically adjusts a per-host rate limit from
// observed response times, keyed per Host rather than shared
// process-wide, since distinct hosts warrant distinct pacing.
type adaptiveLimiter struct {
	limiter     *rate.Limiter
	targetRTT   time.Duration
	mu          sync.Mutex
	emaRTT      time.Duration
	currentRate float64
	disabled    bool

	// fixedWait and randomWait implement the literal --wait/--random-wait
	// pacing between two requests to the same host. Setting a fixed
	// wait disables the adaptive RTT-based rate (see setFixedWait) so
	// the two pacing strategies never fight each other.
	fixedWait   time.Duration
	randomWait  bool
	lastRequest time.Time
}

func newAdaptiveLimiter(initialRPS float64, targetRTT time.Duration) *adaptiveLimiter {
	clamped := clampRate(initialRPS)
	return &adaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(clamped), int(math.Ceil(clamped))),
		targetRTT:   targetRTT,
		currentRate: clamped,
		emaRTT:      targetRTT,
	}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	return a.waitFixedJitter(ctx)
}

// waitFixedJitter sleeps the remainder of a --wait interval since this
// limiter's last request, jittered into [0.5w, 1.5w) when random-wait
// is set. A no-op when no manual --wait was configured.
func (a *adaptiveLimiter) waitFixedJitter(ctx context.Context) error {
	a.mu.Lock()
	if a.fixedWait <= 0 {
		a.mu.Unlock()
		return nil
	}
	wait := a.fixedWait
	if a.randomWait {
		wait = jitterWait(wait)
	}
	var delay time.Duration
	if !a.lastRequest.IsZero() {
		if elapsed := time.Since(a.lastRequest); elapsed < wait {
			delay = wait - elapsed
		}
	}
	a.lastRequest = time.Now().Add(delay)
	a.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jitterWait scales d by a uniform random factor in [0.5, 1.5), the
// --random-wait interval.
func jitterWait(d time.Duration) time.Duration {
	factor := 0.5 + rand.Float64()
	return time.Duration(float64(d) * factor)
}

// setFixedWait configures the literal --wait/--random-wait sleep this
// limiter applies between requests. A positive wait disables the
// adaptive RTT-based rate (so the two pacing strategies don't fight
// each other) and opens the token bucket wide, leaving the fixed sleep
// as the sole pacing mechanism.
func (a *adaptiveLimiter) setFixedWait(wait time.Duration, random bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fixedWait = wait
	a.randomWait = random
	if wait > 0 {
		a.disabled = true
		a.currentRate = maxRateCeiling
		a.limiter.SetLimit(rate.Limit(maxRateCeiling))
		a.limiter.SetBurst(int(math.Ceil(maxRateCeiling)))
	}
}

func (a *adaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disabled || a.targetRTT <= 0 {
		return
	}

	newEMA := time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))
	a.emaRTT = newEMA

	ratio := float64(a.targetRTT) / float64(newEMA)
	var newRate float64
	if ratio < 1 {
		proposed := a.currentRate * ratio
		floor := a.currentRate * backoffFactor
		if proposed < floor {
			newRate = floor
		} else {
			newRate = proposed
		}
	} else {
		newRate = a.currentRate * recoveryFactor
	}

	newRate = clampRate(newRate)
	if math.Abs(newRate-a.currentRate) > 0.1 {
		a.currentRate = newRate
		a.limiter.SetLimit(rate.Limit(newRate))
		a.limiter.SetBurst(int(math.Ceil(newRate)))
	}
}

func clampRate(rps float64) float64 {
	if rps < minRateFloor {
		return minRateFloor
	}
	if rps > maxRateCeiling {
		return maxRateCeiling
	}
	return rps
}

// hostLimiters hands out one adaptiveLimiter per Host, lazily, guarded
// by its own mutex (the scheduler reasons about per-host pacing; it
// has no business sharing the registry's lock).
type hostLimiters struct {
	mu         sync.Mutex
	limiters   map[job.HostKey]*adaptiveLimiter
	targetRTT  time.Duration
	fixedWait  time.Duration // literal --wait sleep, 0 when unset
	randomWait bool
}

func newHostLimiters(targetRTT time.Duration) *hostLimiters {
	return &hostLimiters{
		limiters:  make(map[job.HostKey]*adaptiveLimiter),
		targetRTT: targetRTT,
	}
}

// withFixedWait records the literal --wait/--random-wait interval and
// applies it, in place of the adaptive rate (see setFixedWait), to
// every limiter handed out from here on (and to any already created).
func (h *hostLimiters) withFixedWait(wait time.Duration, random bool) *hostLimiters {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fixedWait = wait
	h.randomWait = random
	for _, l := range h.limiters {
		l.setFixedWait(wait, random)
	}
	return h
}

func (h *hostLimiters) get(key job.HostKey) *adaptiveLimiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.limiters[key]; ok {
		return l
	}
	l := newAdaptiveLimiter(10.0, h.targetRTT)
	if h.fixedWait > 0 {
		l.setFixedWait(h.fixedWait, h.randomWait)
	}
	h.limiters[key] = l
	return l
}
