// Package breaker implements the shared circuit breaker that gates WAF
// engine attempts during an outage.
package breaker

import (
	"sync"
	"time"
)

const (
	DefaultThreshold = 3
	DefaultCooldown  = 60 * time.Second
)

// Breaker is a two-state machine: Closed while the consecutive-failure count
// is below the threshold, Open while a cooldown deadline lies in the future.
// Expiry of the deadline is the only Open->Closed transition; the first
// attempt afterward is a full normal attempt.
type Breaker struct {
	mu        sync.Mutex
	failures  int
	openUntil time.Time

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// New returns an independent breaker with the default threshold and
// cooldown. Most callers want Shared instead.
func New() *Breaker {
	return NewWithClock(time.Now)
}

// NewWithClock injects the time source, for tests.
func NewWithClock(now func() time.Time) *Breaker {
	return &Breaker{
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		now:       now,
	}
}

var shared = New()

// Shared returns the process-wide breaker. Every client instance in the
// process feeds the same failure signal so short-lived clients inherit
// outage knowledge from their predecessors.
func Shared() *Breaker {
	return shared
}

// Allow is the gate check at the start of an operation. It returns false
// while the cooldown deadline is in the future. An expired deadline clears
// both the deadline and the failure counter before allowing the attempt.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return true
	}
	if b.now().Before(b.openUntil) {
		return false
	}
	b.openUntil = time.Time{}
	b.failures = 0
	return true
}

// Success resets the failure counter.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Failure records one failed attempt and reports whether this failure
// tripped the breaker into the Open state.
func (b *Breaker) Failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures < b.threshold || !b.openUntil.IsZero() {
		return false
	}
	b.openUntil = b.now().Add(b.cooldown)
	return true
}

// Open reports whether the breaker currently short-circuits attempts.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.openUntil.IsZero() && b.now().Before(b.openUntil)
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
