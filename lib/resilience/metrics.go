package resilience

import (
	"github.com/go-i2p/respool/lib/metrics"
)

// Circuit breaker metrics for Prometheus exposition.
var (
	// CircuitState tracks each breaker's state by name.
	// 0 = closed, 1 = open, 2 = half-open
	CircuitState = metrics.NewGaugeVec(
		"respool_factory_circuit_state",
		"Current state of the factory circuit breaker (0=closed, 1=open, 2=half-open)",
		"circuit",
	)

	// CircuitTrips counts the number of times circuits have opened.
	CircuitTrips = metrics.NewCounter(
		"respool_factory_circuit_trips_total",
		"Total number of times factory circuit breakers have opened",
	)

	// CircuitSuccesses counts factory calls that succeeded through a breaker.
	CircuitSuccesses = metrics.NewCounter(
		"respool_factory_circuit_successes_total",
		"Total successful factory calls through circuit breakers",
	)

	// CircuitFailures counts factory calls that failed through a breaker.
	CircuitFailures = metrics.NewCounter(
		"respool_factory_circuit_failures_total",
		"Total failed factory calls through circuit breakers",
	)

	// CircuitRejections counts factory calls rejected by open circuits.
	CircuitRejections = metrics.NewCounter(
		"respool_factory_circuit_rejections_total",
		"Total factory calls rejected by open circuit breakers",
	)

	// ThrottleWaits counts factory calls delayed by the creation rate limit.
	ThrottleWaits = metrics.NewCounter(
		"respool_factory_throttle_waits_total",
		"Total factory calls that waited for the creation rate limit",
	)
)
