package pa

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the breaker rejects a submission
// without attempting it.
var ErrBreakerOpen = errors.New("submission breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker protects the platform from request storms when it is failing:
// after maxFailures consecutive failures the breaker opens and submissions
// fail fast until the cooldown elapses. The first request after the
// cooldown probes the platform in half-open state; successThreshold
// consecutive successes close the breaker again, any failure re-opens it.
type Breaker struct {
	maxFailures      int
	successThreshold int
	cooldown         time.Duration

	mu         sync.Mutex
	state      breakerState
	failures   int
	successes  int
	lastChange time.Time
}

// NewBreaker creates a closed breaker. Non-positive arguments fall back
// to 10 failures and a 30 second cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		maxFailures:      maxFailures,
		successThreshold: 3,
		cooldown:         cooldown,
		state:            breakerClosed,
	}
}

// Execute runs fn under breaker protection and feeds its outcome back
// into the state machine.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == breakerOpen {
		if time.Since(b.lastChange) < b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = breakerHalfOpen
		b.successes = 0
		b.lastChange = time.Now()
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		switch b.state {
		case breakerHalfOpen:
			b.state = breakerOpen
			b.lastChange = time.Now()
		case breakerClosed:
			if b.failures >= b.maxFailures {
				b.state = breakerOpen
				b.lastChange = time.Now()
			}
		}
		return err
	}

	b.successes++
	switch b.state {
	case breakerHalfOpen:
		if b.successes >= b.successThreshold {
			b.state = breakerClosed
			b.failures = 0
			b.lastChange = time.Now()
		}
	case breakerClosed:
		b.failures = 0
	}
	return nil
}

// Open reports whether the breaker currently rejects submissions.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == breakerOpen && time.Since(b.lastChange) < b.cooldown
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
	b.successes = 0
	b.lastChange = time.Now()
}
