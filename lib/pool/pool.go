package pool

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/go-i2p/respool/lib/errors"
)

// Errors returned by the pool. They are aliases of lib/errors sentinels so
// callers can match either.
var (
	// ErrTimeout is returned when Acquire could not obtain a resource in time.
	ErrTimeout = apperrors.ErrTimeout
	// ErrUnknownResource is returned when Release is given a resource that
	// is not currently held.
	ErrUnknownResource = apperrors.ErrUnknownResource
	// ErrClosed is returned when operating on a closed pool.
	ErrClosed = apperrors.ErrClosed
	// ErrNoFactory is returned when neither the pool nor the call has a factory.
	ErrNoFactory = apperrors.ErrNoFactory
)

// Factory creates a new resource. It is called without the pool lock held
// and may block on I/O. Errors are returned to the Acquire caller.
//
// ctx carries the acquire deadline, see AcquireDeadline.
type Factory[R comparable] func(ctx context.Context) (R, error)

type deadlineKey struct{}

// AcquireDeadline returns the time by which the Acquire that called the
// factory stops waiting for capacity. Factory middleware that may block
// before creating, such as a rate limiter, should give up by then. It does
// not bound the creation itself.
func AcquireDeadline(ctx context.Context) (time.Time, bool) {
	d, ok := ctx.Value(deadlineKey{}).(time.Time)
	return d, ok
}

// Default configuration values
const (
	DefaultCapacity       = 100
	DefaultAcquireTimeout = 10 * time.Second
)

// Config configures the resource pool.
type Config struct {
	// Name identifies the pool in logs and String.
	Name string
	// Capacity is the maximum number of resources that may exist at once.
	// Default: 100
	Capacity int
	// AcquireTimeout is how long Acquire waits when the pool is exhausted.
	// Zero means Acquire fails immediately instead of waiting.
	// Default: 10 seconds
	AcquireTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:           "default",
		Capacity:       DefaultCapacity,
		AcquireTimeout: DefaultAcquireTimeout,
	}
}

// Pool is a bounded pool of resources of type R.
type Pool[R comparable] struct {
	factory Factory[R]
	config  Config

	mu      sync.Mutex
	idle    []R
	active  map[R]struct{}
	created int
	waiters waitQueue[R]
	closed  bool

	// Metrics
	acquireCount    uint64
	acquireSuccess  uint64
	acquireFailed   uint64
	timeouts        uint64
	factoryErrors   uint64
	releaseCount    uint64
	unknownReleases uint64
}

// New creates a new resource pool. factory may be nil if every acquisition
// goes through AcquireWith with its own factory.
func New[R comparable](factory Factory[R], cfg Config) *Pool[R] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.AcquireTimeout < 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	p := &Pool[R]{
		factory: factory,
		config:  cfg,
		idle:    make([]R, 0, cfg.Capacity),
		active:  make(map[R]struct{}, cfg.Capacity),
	}
	PoolCapacity.With(cfg.Name).Set(int64(cfg.Capacity))

	log.WithField("pool", cfg.Name).WithField("capacity", cfg.Capacity).WithField("acquireTimeout", cfg.AcquireTimeout).Debug("pool created")
	return p
}

// Name returns the configured pool name.
func (p *Pool[R]) Name() string {
	return p.config.Name
}

// Capacity returns the maximum number of live resources.
func (p *Pool[R]) Capacity() int {
	return p.config.Capacity
}

// Acquire gets a resource using the pool factory and the configured
// AcquireTimeout.
func (p *Pool[R]) Acquire(ctx context.Context) (R, error) {
	return p.AcquireWith(ctx, nil, p.config.AcquireTimeout)
}

// AcquireTimeout gets a resource, waiting at most timeout when the pool is
// exhausted.
func (p *Pool[R]) AcquireTimeout(ctx context.Context, timeout time.Duration) (R, error) {
	return p.AcquireWith(ctx, nil, timeout)
}

// AcquireWith gets a resource, creating it with factory when the pool has
// room and no idle resource. A nil factory means the pool factory.
//
// An idle resource is preferred, longest idle first. Otherwise a new one is
// created if capacity allows. Otherwise the caller waits up to timeout for
// a release; a timeout of zero or less does not wait. The context bounds
// the wait and is passed to the factory.
//
// On failure the pool is left as it was. Factory errors are returned
// wrapped so that errors.Is matches both ErrFactory and the original error.
func (p *Pool[R]) AcquireWith(ctx context.Context, factory Factory[R], timeout time.Duration) (R, error) {
	var zero R
	start := time.Now()
	atomic.AddUint64(&p.acquireCount, 1)
	PoolAcquireTotal.Inc()

	if factory == nil {
		factory = p.factory
	}
	if factory == nil {
		p.recordFailure()
		return zero, ErrNoFactory
	}
	if err := ctx.Err(); err != nil {
		return zero, p.contextError(err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.recordFailure()
		return zero, ErrClosed
	}

	if r, ok := p.popIdleLocked(); ok {
		p.active[r] = struct{}{}
		p.mu.Unlock()
		p.recordSuccess(start)
		log.WithField("pool", p.config.Name).Debug("acquired idle resource")
		return r, nil
	}

	if p.created < p.config.Capacity {
		p.created++
		return p.createUnlocked(ctx, factory, start, timeout)
	}

	if timeout <= 0 {
		p.mu.Unlock()
		return zero, p.timedOut()
	}

	w := p.waiters.enqueue()
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	log.WithField("pool", p.config.Name).Debug("waiting for available resource")

	var g grant[R]
	var waitErr error
	select {
	case g = <-w.ch:
	case <-timer.C:
		waitErr = ErrTimeout
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	p.mu.Lock()
	if waitErr != nil {
		if p.waiters.remove(w) {
			p.mu.Unlock()
			if waitErr == ErrTimeout {
				return zero, p.timedOut()
			}
			return zero, p.contextError(waitErr)
		}
		// A grant raced with the deadline and is already buffered.
		g = <-w.ch
		if g.slot {
			p.created--
			p.grantSlotLocked()
			p.mu.Unlock()
			if waitErr == ErrTimeout {
				return zero, p.timedOut()
			}
			return zero, p.contextError(waitErr)
		}
	}

	switch {
	case g.handoff:
		p.mu.Unlock()
		p.recordSuccess(start)
		log.WithField("pool", p.config.Name).Debug("acquired released resource")
		return g.res, nil
	case g.err != nil:
		p.mu.Unlock()
		p.recordFailure()
		return zero, g.err
	}

	// The slot freed by a failed creation is already counted in
	// p.created on our behalf.
	if p.closed {
		p.created--
		p.mu.Unlock()
		p.recordFailure()
		return zero, ErrClosed
	}
	return p.createUnlocked(ctx, factory, start, timeout)
}

// createUnlocked runs the factory without the lock for a slot already
// counted in p.created and records the result. It is entered with p.mu
// held and returns with it released.
func (p *Pool[R]) createUnlocked(ctx context.Context, factory Factory[R], start time.Time, timeout time.Duration) (R, error) {
	var zero R

	p.mu.Unlock()

	r, err := factory(context.WithValue(ctx, deadlineKey{}, start.Add(max(timeout, 0))))

	p.mu.Lock()
	if err != nil {
		p.created--
		p.grantSlotLocked()
		p.mu.Unlock()

		atomic.AddUint64(&p.factoryErrors, 1)
		PoolFactoryErrorsTotal.Inc()
		p.recordFailure()
		log.WithField("pool", p.config.Name).WithError(err).Warn("failed to create resource")
		return zero, apperrors.FactoryError(err)
	}

	if p.closed {
		p.created--
		p.mu.Unlock()
		closeResource(r)
		p.recordFailure()
		return zero, ErrClosed
	}

	if _, dup := p.active[r]; dup {
		p.created--
		p.grantSlotLocked()
		p.mu.Unlock()

		atomic.AddUint64(&p.factoryErrors, 1)
		PoolFactoryErrorsTotal.Inc()
		p.recordFailure()
		return zero, apperrors.FactoryError(fmt.Errorf("factory returned a resource that is already in use"))
	}

	p.active[r] = struct{}{}
	created := p.created
	p.mu.Unlock()

	p.recordSuccess(start)
	log.WithField("pool", p.config.Name).WithField("created", created).Debug("created new resource")
	return r, nil
}

// popIdleLocked removes the longest idle resource (caller must hold lock).
func (p *Pool[R]) popIdleLocked() (R, bool) {
	var zero R
	if len(p.idle) == 0 {
		return zero, false
	}
	r := p.idle[0]
	p.idle[0] = zero
	p.idle = p.idle[1:]
	return r, true
}

// grantSlotLocked hands capacity freed without a resource to the first
// waiter, reserving the slot so no newcomer can take it (caller must hold
// lock).
func (p *Pool[R]) grantSlotLocked() {
	if w, ok := p.waiters.dequeue(); ok {
		p.created++
		w.ch <- grant[R]{slot: true}
	}
}

// Release returns a resource to the pool. If an acquirer is waiting, the
// resource goes directly to the longest waiting one; otherwise it joins the
// idle queue. Release never blocks.
//
// It fails with ErrUnknownResource if r is not currently held, for example
// on a double release. The pool is unchanged in that case.
//
// After Close, a released resource is dropped and closed if it implements
// io.Closer.
func (p *Pool[R]) Release(r R) error {
	atomic.AddUint64(&p.releaseCount, 1)
	PoolReleaseTotal.Inc()

	p.mu.Lock()

	if _, ok := p.active[r]; !ok {
		p.mu.Unlock()
		atomic.AddUint64(&p.unknownReleases, 1)
		PoolReleaseUnknownTotal.Inc()
		log.WithField("pool", p.config.Name).Warn("release of unknown resource")
		return ErrUnknownResource
	}

	if p.closed {
		delete(p.active, r)
		p.created--
		p.mu.Unlock()
		log.WithField("pool", p.config.Name).Debug("pool closed, closing released resource")
		closeResource(r)
		return nil
	}

	if w, ok := p.waiters.dequeue(); ok {
		// Ownership moves to the waiter; r stays in active.
		w.ch <- grant[R]{res: r, handoff: true}
		p.mu.Unlock()
		log.WithField("pool", p.config.Name).Debug("resource handed to waiter")
		return nil
	}

	delete(p.active, r)
	p.idle = append(p.idle, r)
	p.mu.Unlock()
	log.WithField("pool", p.config.Name).Debug("resource released to pool")
	return nil
}

// IdleCount returns the room remaining in the pool: capacity minus the
// resources held by callers. Slots whose resource has not been created yet
// count as idle. Use Stats().Idle for the number of created resources
// waiting in the idle queue.
func (p *Pool[R]) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.Capacity - len(p.active)
}

// Close closes the pool. Blocked acquirers fail with ErrClosed and idle
// resources implementing io.Closer are closed. Resources still held are
// closed when they are released. A second Close returns ErrClosed.
func (p *Pool[R]) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true

	for _, w := range p.waiters.drain() {
		w.ch <- grant[R]{err: ErrClosed}
	}

	idle := p.idle
	p.idle = nil
	p.created -= len(idle)
	p.mu.Unlock()

	var errs []error
	for _, r := range idle {
		if err := closeResource(r); err != nil {
			errs = append(errs, err)
		}
	}

	forgetMetrics(p.config.Name)
	log.WithField("pool", p.config.Name).WithField("closed", len(idle)).Debug("pool closed")
	return apperrors.Join(errs...)
}

// closeResource closes r if it implements io.Closer.
func closeResource[R comparable](r R) error {
	c, ok := any(r).(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		log.WithError(err).Debug("failed to close resource")
		return err
	}
	return nil
}

func (p *Pool[R]) recordSuccess(start time.Time) {
	atomic.AddUint64(&p.acquireSuccess, 1)
	PoolAcquireSuccessTotal.Inc()
	PoolAcquireLatency.ObserveSince(start)
}

func (p *Pool[R]) recordFailure() {
	atomic.AddUint64(&p.acquireFailed, 1)
	PoolAcquireFailedTotal.Inc()
}

func (p *Pool[R]) timedOut() error {
	atomic.AddUint64(&p.timeouts, 1)
	PoolAcquireTimeoutsTotal.Inc()
	p.recordFailure()
	log.WithField("pool", p.config.Name).Debug("acquire timed out")
	return ErrTimeout
}

// contextError maps a context error onto the pool's taxonomy: a deadline
// is a timeout, cancellation is returned as is.
func (p *Pool[R]) contextError(err error) error {
	if apperrors.Is(err, context.DeadlineExceeded) {
		return p.timedOut()
	}
	p.recordFailure()
	return err
}

// Stats returns pool statistics.
type Stats struct {
	// Name is the configured pool name.
	Name string `json:"name"`
	// Capacity is the maximum pool size.
	Capacity int `json:"capacity"`
	// Created is the number of resources owned by the pool, including
	// ones being created.
	Created int `json:"created"`
	// Idle is the number of created resources in the idle queue.
	Idle int `json:"idle"`
	// Active is the number of resources held by callers.
	Active int `json:"active"`
	// Waiting is the number of blocked acquirers.
	Waiting int `json:"waiting"`
	// AcquireCount is the total number of acquire attempts.
	AcquireCount uint64 `json:"acquire_count"`
	// AcquireSuccess is the number of successful acquires.
	AcquireSuccess uint64 `json:"acquire_success"`
	// AcquireFailed is the number of failed acquires.
	AcquireFailed uint64 `json:"acquire_failed"`
	// Timeouts is the number of acquires that timed out.
	Timeouts uint64 `json:"timeouts"`
	// FactoryErrors is the number of failed resource creations.
	FactoryErrors uint64 `json:"factory_errors"`
	// ReleaseCount is the number of release attempts.
	ReleaseCount uint64 `json:"release_count"`
	// UnknownReleases is the number of releases of untracked resources.
	UnknownReleases uint64 `json:"unknown_releases"`
}

// Stats returns current pool statistics.
func (p *Pool[R]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Name:            p.config.Name,
		Capacity:        p.config.Capacity,
		Created:         p.created,
		Idle:            len(p.idle),
		Active:          len(p.active),
		Waiting:         p.waiters.len(),
		AcquireCount:    atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess:  atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:   atomic.LoadUint64(&p.acquireFailed),
		Timeouts:        atomic.LoadUint64(&p.timeouts),
		FactoryErrors:   atomic.LoadUint64(&p.factoryErrors),
		ReleaseCount:    atomic.LoadUint64(&p.releaseCount),
		UnknownReleases: atomic.LoadUint64(&p.unknownReleases),
	}
}

// String describes the pool as "<Pool name capacity=N idle=I active=A>",
// where idle is IdleCount.
func (p *Pool[R]) String() string {
	p.mu.Lock()
	active := len(p.active)
	p.mu.Unlock()

	return fmt.Sprintf("<Pool %s capacity=%d idle=%d active=%d>",
		p.config.Name, p.config.Capacity, p.config.Capacity-active, active)
}
