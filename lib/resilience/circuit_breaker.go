// Package resilience protects resource factories from a failing backend.
//
// A CircuitBreaker counts consecutive factory failures. Once the threshold
// is reached it opens and rejects calls with ErrCircuitOpen until the
// cooldown has passed; then a limited number of probe calls decide whether
// to close it again.
//
//	Closed -> Open -> HalfOpen -> Closed
//	           ^         |
//	           +---------+ (probe failed)
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/go-i2p/logger"

	apperrors "github.com/go-i2p/respool/lib/errors"
)

var log = logger.GetGoI2PLogger()

// ErrCircuitOpen is returned when a call is rejected by an open circuit.
var ErrCircuitOpen = apperrors.ErrCircuitOpen

// State is the state of a circuit breaker.
type State int

const (
	// StateClosed passes calls through.
	StateClosed State = iota
	// StateOpen rejects calls.
	StateOpen
	// StateHalfOpen lets a few probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a CircuitBreaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
	// Probes is both the number of concurrent calls allowed while half-open
	// and the number of successes needed to close.
	Probes int
}

// DefaultConfig returns defaults suited to database connects.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         10 * time.Second,
		Probes:           1,
	}
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	name   string
	config Config
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
}

// NewCircuitBreaker creates a closed circuit breaker. Non-positive config
// fields take their defaults.
func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = def.Probes
	}
	return &CircuitBreaker{
		name:   name,
		config: cfg,
		now:    time.Now,
	}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state. An open circuit whose cooldown has
// passed reports half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cooledDownLocked() {
		return StateHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) cooledDownLocked() bool {
	return cb.now().Sub(cb.openedAt) >= cb.config.Cooldown
}

// allow reserves a call slot, reporting false if the call must be rejected.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if !cb.cooledDownLocked() {
			return false
		}
		cb.transitionLocked(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.inFlight >= cb.config.Probes {
			return false
		}
		cb.inFlight++
		return true
	}
	return false
}

// record reports the outcome of a call admitted by allow.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}

	if err == nil {
		CircuitSuccesses.Inc()
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.Probes {
				cb.transitionLocked(StateClosed)
			}
		}
		return
	}

	CircuitFailures.Inc()
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		cb.transitionLocked(StateOpen)
	}
}

// release gives back a slot for a call that ended without a verdict.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
}

// transitionLocked changes state. Must be called with the lock held.
func (cb *CircuitBreaker) transitionLocked(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to

	switch to {
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
		cb.inFlight = 0
	case StateOpen:
		cb.openedAt = cb.now()
		cb.successes = 0
		cb.inFlight = 0
		CircuitTrips.Inc()
	case StateHalfOpen:
		cb.successes = 0
		cb.inFlight = 0
	}
	CircuitState.With(cb.name).Set(int64(to))

	log.WithField("circuit", cb.name).
		WithField("from", from.String()).
		WithField("to", to.String()).
		Info("circuit breaker state transition")
}

// Execute runs fn if the circuit allows it and records the result.
// Context cancellation is not counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.allow() {
		CircuitRejections.Inc()
		return ErrCircuitOpen
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}
	cb.record(err)
	return err
}

// Reset closes the circuit and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.failures = 0
}

// Stats holds a snapshot of a circuit breaker.
type Stats struct {
	Name      string
	State     State
	Failures  int
	Successes int
	OpenedAt  time.Time
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.state
	if state == StateOpen && cb.cooledDownLocked() {
		state = StateHalfOpen
	}
	return Stats{
		Name:      cb.name,
		State:     state,
		Failures:  cb.failures,
		Successes: cb.successes,
		OpenedAt:  cb.openedAt,
	}
}
