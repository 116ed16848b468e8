// Package ratelimit provides a token bucket rate limiter. respool uses it
// to bound how fast a pool opens new connections.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// idlePoll is how often Wait rechecks a bucket that never refills.
const idlePoll = time.Second

// Limiter is a token bucket. A nil *Limiter allows everything.
type Limiter struct {
	mu        sync.Mutex
	perSecond float64
	burst     float64
	available float64
	last      time.Time
	now       func() time.Time
}

// New returns a full bucket refilled at rate tokens per second and
// holding at most burst tokens. A burst below one is raised to one so
// that Wait can make progress.
func New(rate float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		perSecond: rate,
		burst:     float64(burst),
		available: float64(burst),
		now:       time.Now,
	}
	l.last = l.now()
	return l
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	_, ok := l.take()
	return ok
}

// Wait blocks until it takes a token or ctx is done. In the latter case it
// returns ctx's error and takes nothing.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	for {
		delay, ok := l.take()
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// take consumes a token, or reports how long until one accrues.
func (l *Limiter) take() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance()
	if l.available >= 1 {
		l.available--
		return 0, true
	}
	if l.perSecond <= 0 {
		return idlePoll, false
	}
	return time.Duration((1 - l.available) / l.perSecond * float64(time.Second)), false
}

// advance credits tokens accrued since the last call. l.mu must be held.
func (l *Limiter) advance() {
	now := l.now()
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.available = min(l.burst, l.available+elapsed*l.perSecond)
	}
	l.last = now
}

// Tokens returns the number of tokens available now.
func (l *Limiter) Tokens() float64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advance()
	return l.available
}
