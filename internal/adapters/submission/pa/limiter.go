package pa

import (
	"context"
	"sync"
)

// platformConcurrencyCap is the hard platform limit on concurrent import
// requests per token.
const platformConcurrencyCap = 1000

// Limiter bounds the number of in-flight import requests. Acquire blocks
// until a slot frees up or the context is cancelled.
type Limiter struct {
	sem chan struct{}
	max int

	mu     sync.Mutex
	active int
}

// NewLimiter creates a limiter with the given bound, clamped to the
// platform cap. A non-positive bound uses the cap.
func NewLimiter(max int) *Limiter {
	if max <= 0 || max > platformConcurrencyCap {
		max = platformConcurrencyCap
	}
	return &Limiter{
		sem: make(chan struct{}, max),
		max: max,
	}
}

// Acquire takes one slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees one slot.
func (l *Limiter) Release() {
	<-l.sem
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
}

// Active returns the number of in-flight requests.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Max returns the configured bound.
func (l *Limiter) Max() int { return l.max }
