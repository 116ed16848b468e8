package resilience

import (
	"context"
	"fmt"

	apperrors "github.com/go-i2p/respool/lib/errors"
	"github.com/go-i2p/respool/lib/pool"
	"github.com/go-i2p/respool/lib/ratelimit"
)

// Guard wraps factory so that calls go through cb. While the circuit is
// open the returned factory fails fast with ErrCircuitOpen, which the pool
// reports as a factory error.
func Guard[R comparable](cb *CircuitBreaker, factory pool.Factory[R]) pool.Factory[R] {
	if cb == nil {
		return factory
	}
	return func(ctx context.Context) (R, error) {
		var r R
		err := cb.Execute(ctx, func(ctx context.Context) error {
			var err error
			r, err = factory(ctx)
			return err
		})
		return r, err
	}
}

// Throttle wraps factory so that each call first takes a token from l.
// A nil limiter leaves factory unchanged.
//
// When no token is available the call waits no later than the acquire
// deadline, then fails with ErrTimeout. An Acquire that does not wait
// therefore fails at once on an empty bucket.
func Throttle[R comparable](l *ratelimit.Limiter, factory pool.Factory[R]) pool.Factory[R] {
	if l == nil {
		return factory
	}
	return func(ctx context.Context) (R, error) {
		var zero R
		if l.Allow() {
			return factory(ctx)
		}

		ThrottleWaits.Inc()
		waitCtx := ctx
		if deadline, ok := pool.AcquireDeadline(ctx); ok {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithDeadline(ctx, deadline)
			defer cancel()
		}

		log.Debug("factory throttled, waiting for token")
		if err := l.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return zero, err
			}
			return zero, fmt.Errorf("create rate limit: %w", apperrors.ErrTimeout)
		}
		return factory(ctx)
	}
}
