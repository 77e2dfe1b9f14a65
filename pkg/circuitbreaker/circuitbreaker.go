package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tair/parts-exchange/pkg/logger"
)

// ErrOpen is returned by Call while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// State represents the state of a circuit breaker
type State string

const (
	StateClosed   State = "closed"    // Normal operation
	StateOpen     State = "open"      // Rejecting calls
	StateHalfOpen State = "half-open" // Letting a probe through
)

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name            string
	maxFailures     int
	openTimeout     time.Duration
	halfOpenSuccess int
	state           State
	failures        int
	successCount    int
	probing         bool
	lastStateChange time.Time
	now             func() time.Time
	mu              sync.Mutex
}

// New creates a breaker that opens after maxFailures consecutive failures and
// stays open for openTimeout before letting a probe through.
func New(name string, maxFailures int, openTimeout time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:            name,
		maxFailures:     maxFailures,
		openTimeout:     openTimeout,
		halfOpenSuccess: 1,
		state:           StateClosed,
		lastStateChange: time.Now(),
		now:             time.Now,
	}
}

// Call executes fn unless the breaker is open. While half-open only one
// call at a time is let through; the others get ErrOpen.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen && cb.now().Sub(cb.lastStateChange) > cb.openTimeout {
		cb.setState(StateHalfOpen)
		cb.successCount = 0
	}
	state := cb.state
	rejected := state == StateOpen || (state == StateHalfOpen && cb.probing)
	if !rejected && state == StateHalfOpen {
		cb.probing = true
	}
	cb.mu.Unlock()

	if rejected {
		return fmt.Errorf("%w: %s", ErrOpen, cb.name)
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if state == StateHalfOpen {
		cb.probing = false
	}

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
	return err
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++

	if cb.state == StateHalfOpen {
		cb.setState(StateOpen)
		return
	}
	if cb.failures >= cb.maxFailures && cb.state != StateOpen {
		cb.setState(StateOpen)
		logger.Logger.Error().
			Str("circuit", cb.name).
			Int("failures", cb.failures).
			Int("threshold", cb.maxFailures).
			Msg("Circuit breaker opened")
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenSuccess {
			cb.failures = 0
			cb.successCount = 0
			cb.setState(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	logger.Logger.Info().
		Str("circuit", cb.name).
		Str("from", string(cb.state)).
		Str("to", string(s)).
		Msg("Circuit breaker state changed")
	cb.state = s
	cb.lastStateChange = cb.now()
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
