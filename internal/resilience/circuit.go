// Package resilience guards outbound feed calls: exponential backoff for
// transient faults and a circuit breaker that sheds load while a source
// stays down.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen rejects a call without touching the wire. It is not a
// transient error, so a retry loop wrapping the breaker stops immediately
// instead of burning its remaining attempts against a dead source.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitState is the breaker's view of the guarded source.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset window elapses.
	CircuitOpen
	// CircuitHalfOpen admits probe calls to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes when the breaker trips and recovers. Zero
// values take the defaults applied by NewCircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is how many consecutive tripping failures open the
	// circuit. Default 5.
	FailureThreshold int

	// ResetTimeout is how long an open circuit waits before admitting
	// probes. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMaxProbes is how many probe successes close the circuit
	// again. Default 1.
	HalfOpenMaxProbes int

	// ShouldTrip decides which errors count toward the threshold. Nil
	// counts every non-nil error. The feed fetcher narrows this to
	// IsTransient so a 404 on a vanished role cannot open the circuit.
	ShouldTrip func(err error) bool
}

// FromCircuitConfig builds a CircuitBreakerConfig from flat config values.
// Zero or negative values keep the defaults.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := CircuitBreakerConfig{FailureThreshold: failureThreshold}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}

// CircuitBreaker tracks consecutive failures against one source. The open
// and half-open states are derived from the trip time, so recovery needs no
// background timer.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	clock func() time.Time

	mu        sync.Mutex
	tripped   bool
	failures  int
	openedAt  time.Time
	probeWins int
}

// NewCircuitBreaker returns a closed breaker with defaults filled in.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = 1
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{cfg: cfg, clock: time.Now}
}

// ExecuteVal runs fn through the breaker, returning ErrCircuitOpen while the
// circuit is open. The call's outcome feeds the failure counter.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !cb.admit() {
		return zero, ErrCircuitOpen
	}
	val, err := fn(ctx)
	cb.observe(err)
	return val, err
}

// State reports the current circuit state. An open breaker whose reset
// window has elapsed reports half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	switch {
	case !cb.tripped:
		return CircuitClosed
	case cb.clock().Sub(cb.openedAt) >= cb.cfg.ResetTimeout:
		return CircuitHalfOpen
	default:
		return CircuitOpen
	}
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked() != CircuitOpen
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.stateLocked()

	if err != nil && cb.cfg.ShouldTrip(err) {
		cb.failures++
		cb.probeWins = 0
		// A failed probe reopens at once; a closed breaker waits for the
		// threshold.
		if state == CircuitHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.tripped = true
			cb.openedAt = cb.clock()
		}
		return
	}

	switch state {
	case CircuitHalfOpen:
		cb.probeWins++
		if cb.probeWins >= cb.cfg.HalfOpenMaxProbes {
			cb.tripped = false
			cb.failures = 0
			cb.probeWins = 0
		}
	case CircuitClosed:
		cb.failures = 0
	}
}
