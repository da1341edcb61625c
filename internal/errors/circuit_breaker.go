package errors

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// Closed means the circuit is operating normally.
	Closed CircuitState = iota
	// Open means the circuit has tripped and requests are blocked.
	Open
	// HalfOpen means the circuit is testing if it can close again.
	HalfOpen
)

// String returns the string representation of CircuitState.
func (s CircuitState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Number of failures before opening
	SuccessThreshold int           // Number of successes in half-open before closing
	Timeout          time.Duration // Time to wait before trying half-open
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern for a single host.
// Hosts serving script bundles that fail repeatedly get skipped instead of
// stalling the whole download round.
type CircuitBreaker struct {
	mu sync.RWMutex

	config CircuitBreakerConfig
	state  CircuitState

	failures        int
	successes       int
	lastFailureTime time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		state:  Closed,
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Allow checks if a request should be allowed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return true

	case Open:
		if time.Since(cb.lastFailureTime) >= cb.config.Timeout {
			cb.transitionTo(HalfOpen)
			return true
		}
		return false

	case HalfOpen:
		return true
	}

	return false
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		cb.failures = 0

	case HalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(Closed)
		}
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case Closed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(Open)
		}

	case HalfOpen:
		// Any failure in half-open reopens the circuit
		cb.transitionTo(Open)
	}
}

func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	if cb.state == newState {
		return
	}

	cb.state = newState

	switch newState {
	case Closed:
		cb.failures = 0
		cb.successes = 0
	case Open, HalfOpen:
		cb.successes = 0
	}
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = Closed
	cb.failures = 0
	cb.successes = 0
}

// CircuitOpenError is returned when the circuit is open.
type CircuitOpenError struct {
	Host string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return "circuit breaker open for host " + e.Host
}

// HostCircuitBreakers manages circuit breakers per host.
type HostCircuitBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   CircuitBreakerConfig
}

// NewHostCircuitBreakers creates a new host circuit breaker manager.
func NewHostCircuitBreakers(config CircuitBreakerConfig) *HostCircuitBreakers {
	return &HostCircuitBreakers{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
	}
}

// Get returns the circuit breaker for a host, creating one if needed.
func (hcb *HostCircuitBreakers) Get(host string) *CircuitBreaker {
	hcb.mu.RLock()
	cb, ok := hcb.breakers[host]
	hcb.mu.RUnlock()

	if ok {
		return cb
	}

	hcb.mu.Lock()
	defer hcb.mu.Unlock()

	if cb, ok = hcb.breakers[host]; ok {
		return cb
	}

	cb = NewCircuitBreaker(hcb.config)
	hcb.breakers[host] = cb
	return cb
}
