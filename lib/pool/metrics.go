package pool

import "github.com/go-i2p/respool/lib/metrics"

const poolLabel = "pool"

// Pool utilization metrics. Counters and the latency histogram are shared
// by every pool in the process. Gauges carry a pool label and reflect the
// last Stats passed to UpdateMetrics for that pool.
var (
	// PoolCapacity is the maximum pool size.
	PoolCapacity = metrics.NewGaugeVec(
		"respool_pool_capacity",
		"Maximum number of resources in the pool",
		poolLabel,
	)
	// PoolCreated is the number of resources owned by the pool.
	PoolCreated = metrics.NewGaugeVec(
		"respool_pool_created",
		"Current number of resources created and owned by the pool",
		poolLabel,
	)
	// PoolIdle is the number of resources in the idle queue.
	PoolIdle = metrics.NewGaugeVec(
		"respool_pool_idle",
		"Current number of resources waiting in the idle queue",
		poolLabel,
	)
	// PoolActive is the number of resources held by callers.
	PoolActive = metrics.NewGaugeVec(
		"respool_pool_active",
		"Number of resources currently held by callers",
		poolLabel,
	)
	// PoolWaiting is the number of blocked acquirers.
	PoolWaiting = metrics.NewGaugeVec(
		"respool_pool_waiting",
		"Number of acquirers blocked waiting for a resource",
		poolLabel,
	)
	// PoolAcquireTotal is the total number of acquire attempts.
	PoolAcquireTotal = metrics.NewCounter(
		"respool_pool_acquire_total",
		"Total number of resource acquire attempts",
	)
	// PoolAcquireSuccessTotal is the number of successful acquires.
	PoolAcquireSuccessTotal = metrics.NewCounter(
		"respool_pool_acquire_success_total",
		"Total number of successful resource acquires",
	)
	// PoolAcquireFailedTotal is the number of failed acquires.
	PoolAcquireFailedTotal = metrics.NewCounter(
		"respool_pool_acquire_failed_total",
		"Total number of failed resource acquires",
	)
	// PoolAcquireTimeoutsTotal is the number of acquires that timed out.
	PoolAcquireTimeoutsTotal = metrics.NewCounter(
		"respool_pool_acquire_timeouts_total",
		"Total number of resource acquires that timed out",
	)
	// PoolFactoryErrorsTotal is the number of failed resource creations.
	PoolFactoryErrorsTotal = metrics.NewCounter(
		"respool_pool_factory_errors_total",
		"Total number of resource factory failures",
	)
	// PoolReleaseTotal is the number of releases.
	PoolReleaseTotal = metrics.NewCounter(
		"respool_pool_release_total",
		"Total number of resource releases",
	)
	// PoolReleaseUnknownTotal is the number of releases of unknown resources.
	PoolReleaseUnknownTotal = metrics.NewCounter(
		"respool_pool_release_unknown_total",
		"Total number of releases of resources not held from the pool",
	)
	// PoolAcquireLatency tracks time spent acquiring resources.
	PoolAcquireLatency = metrics.NewHistogram(
		"respool_pool_acquire_duration_seconds",
		"Time spent acquiring a resource from the pool",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics sets the gauges labelled with stats.Name.
func UpdateMetrics(stats Stats) {
	PoolCapacity.With(stats.Name).Set(int64(stats.Capacity))
	PoolCreated.With(stats.Name).Set(int64(stats.Created))
	PoolIdle.With(stats.Name).Set(int64(stats.Idle))
	PoolActive.With(stats.Name).Set(int64(stats.Active))
	PoolWaiting.With(stats.Name).Set(int64(stats.Waiting))
}

// forgetMetrics drops the gauges labelled with name.
func forgetMetrics(name string) {
	for _, v := range []*metrics.GaugeVec{PoolCapacity, PoolCreated, PoolIdle, PoolActive, PoolWaiting} {
		v.Delete(name)
	}
}
