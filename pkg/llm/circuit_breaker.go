package llm

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState is the breaker state. The numeric value is exported as a gauge.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
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

// CircuitBreakerConfig holds configuration for the oracle circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// ResetAfter is how long an open circuit waits before letting one trial request through.
	ResetAfter time.Duration
	// OnStateChange, if set, is called after every transition, outside the lock.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after 5 failures and retries after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: 5, ResetAfter: 30 * time.Second}
}

// CircuitBreaker fails oracle calls fast once the endpoint keeps failing,
// so questions do not each wait out the request timeout.
//
// closed --(Threshold failures)--> open --(ResetAfter)--> half-open
// half-open admits exactly one trial request: success closes, failure reopens.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
}

// NewCircuitBreaker creates a closed circuit breaker. A threshold below one is raised to one.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed. The first caller after
// ResetAfter becomes the half-open trial request; everyone else is rejected until
// the trial request reports back.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	from := cb.state
	var rejection error
	switch cb.state {
	case CircuitOpen:
		waited := cb.now().Sub(cb.openedAt)
		if waited > cb.cfg.ResetAfter {
			cb.state = CircuitHalfOpen
			break
		}
		rejection = NewError(ErrorTypeCircuitOpen, fmt.Sprintf(
			"circuit breaker open: oracle failed %d times, opened %v ago",
			cb.failures, waited.Round(time.Second)), false, nil)
	case CircuitHalfOpen:
		rejection = NewError(ErrorTypeCircuitOpen, "circuit breaker half-open: probing oracle recovery", false, nil)
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return rejection == nil, rejection
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.transition(func() {
		cb.failures = 0
		cb.state = CircuitClosed
	})
}

// RecordFailure counts a failure. Reaching the threshold, or failing the
// half-open trial request, (re)opens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.transition(func() {
		cb.failures++
		if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.Threshold {
			cb.state = CircuitOpen
			cb.openedAt = cb.now()
		}
	})
}

// Reset forces the circuit closed.
func (cb *CircuitBreaker) Reset() {
	cb.RecordSuccess()
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the failures counted since the last success.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) transition(mutate func()) {
	cb.mu.Lock()
	from := cb.state
	mutate()
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
