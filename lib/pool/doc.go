// Package pool provides a bounded, thread-safe pool of reusable resources
// that are expensive to create, such as database connections.
//
// The pool supports:
//   - A fixed capacity on the number of live resources
//   - Lazy creation through a Factory, run outside the pool lock
//   - Blocking acquisition with a timeout, served in FIFO order
//   - Explicit release with detection of unknown resources
//   - Scoped acquisition that always releases
//   - Metrics for pool utilization
//
// Resources are never inspected by the pool. They are compared with ==, so
// the resource type is usually a pointer. The pool performs no health
// checks and never evicts idle resources; idle-time limits belong to the
// factory's collaborator.
//
// # Basic Usage
//
//	factory := func(ctx context.Context) (*sql.Conn, error) {
//	    return db.Conn(ctx)
//	}
//
//	cfg := pool.DefaultConfig()
//	cfg.Capacity = 10
//
//	p := pool.New(factory, cfg)
//	defer p.Close()
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(conn)
//
// # Scoped Acquisition
//
// Do acquires a resource, runs the function and releases the resource on
// every exit path, including a panic:
//
//	err := p.Do(ctx, func(ctx context.Context, conn *sql.Conn) error {
//	    _, err := conn.ExecContext(ctx, "UPDATE jobs SET state = 'done'")
//	    return err
//	})
//
// # Handles
//
// Get returns a Handle that carries a reference back to its pool, so the
// holder can release it without access to the pool itself:
//
//	h, err := p.Get(ctx)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//	use(h.Resource())
//
// # Idle Count
//
// IdleCount reports room remaining: capacity minus resources held by
// callers, which includes slots whose resource has not been created yet.
// The number of created resources sitting in the idle queue is reported
// separately as Stats().Idle.
//
// # Broken Resources
//
// A caller that finds its resource unusable may either release it, leaving
// the next holder to hit the collaborator error, or keep it, which
// permanently consumes one slot of capacity.
//
// # Metrics
//
// Pool utilization metrics are registered with the metrics package. The
// gauges are labelled pool="<name>" and refreshed by UpdateMetrics; Close
// removes them. Counters and the histogram are shared by all pools.
//   - respool_pool_capacity: Maximum pool size
//   - respool_pool_created: Resources created and owned by the pool
//   - respool_pool_idle: Resources waiting in the idle queue
//   - respool_pool_active: Resources held by callers
//   - respool_pool_waiting: Acquirers blocked on the pool
//   - respool_pool_acquire_total: Total acquire attempts
//   - respool_pool_acquire_success_total: Successful acquires
//   - respool_pool_acquire_failed_total: Failed acquires
//   - respool_pool_acquire_timeouts_total: Acquires that timed out
//   - respool_pool_factory_errors_total: Factory failures
//   - respool_pool_release_total: Total releases
//   - respool_pool_release_unknown_total: Releases of unknown resources
//   - respool_pool_acquire_duration_seconds: Acquire latency
package pool
