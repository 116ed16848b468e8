package pool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/go-i2p/respool/lib/errors"
)

// Handle is a resource acquired from a pool together with a reference back
// to that pool, so whoever holds it can release it.
type Handle[R comparable] struct {
	pool       *Pool[R]
	res        R
	id         string
	acquiredAt time.Time

	releaseOnce sync.Once
	releaseErr  error
}

// Get acquires a resource like Acquire and wraps it in a Handle.
func (p *Pool[R]) Get(ctx context.Context) (*Handle[R], error) {
	return p.GetTimeout(ctx, p.config.AcquireTimeout)
}

// GetTimeout acquires a resource like AcquireTimeout and wraps it in a Handle.
func (p *Pool[R]) GetTimeout(ctx context.Context, timeout time.Duration) (*Handle[R], error) {
	r, err := p.AcquireTimeout(ctx, timeout)
	if err != nil {
		return nil, err
	}
	h := &Handle[R]{
		pool:       p,
		res:        r,
		id:         uuid.NewString(),
		acquiredAt: time.Now(),
	}
	log.WithField("pool", p.config.Name).WithField("handle", h.id).Debug("handle acquired")
	return h, nil
}

// Resource returns the pooled resource. It must not be used after Release.
func (h *Handle[R]) Resource() R {
	return h.res
}

// ID returns a unique identifier for this acquisition, for log correlation.
func (h *Handle[R]) ID() string {
	return h.id
}

// AcquiredAt returns when the resource was acquired.
func (h *Handle[R]) AcquiredAt() time.Time {
	return h.acquiredAt
}

// Pool returns the pool the handle belongs to.
func (h *Handle[R]) Pool() *Pool[R] {
	return h.pool
}

// Release releases the resource back to its pool.
// Only the first call releases; later calls return the first call's result.
// This allows for both defer h.Close() and explicit release patterns.
func (h *Handle[R]) Release() error {
	h.releaseOnce.Do(func() {
		h.releaseErr = h.pool.Release(h.res)
		log.WithField("pool", h.pool.config.Name).WithField("handle", h.id).WithField("held", time.Since(h.acquiredAt)).Debug("handle released")
	})
	return h.releaseErr
}

// Close is Release, for use with defer.
func (h *Handle[R]) Close() error {
	return h.Release()
}

// Do acquires a resource, runs fn with it and releases it on every exit
// path, including a panic in fn. The error from fn is returned, joined with
// any release error.
func (p *Pool[R]) Do(ctx context.Context, fn func(ctx context.Context, r R) error) error {
	return p.DoTimeout(ctx, p.config.AcquireTimeout, fn)
}

// DoTimeout is Do with a per-call acquire timeout.
func (p *Pool[R]) DoTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, r R) error) (err error) {
	r, err := p.AcquireTimeout(ctx, timeout)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := p.Release(r); rerr != nil {
			err = apperrors.Join(err, rerr)
		}
	}()
	return fn(ctx, r)
}
