// Package resilience provides the failover primitives behind the synthesis
// chain.
//
// [CircuitBreaker] is a three-state breaker (closed → open → half-open) that
// keeps a failing provider from being hammered on every turn. [FallbackGroup]
// strings several providers of one type together with a breaker per entry, and
// [TTSFallback] builds on both to give the session a synthesis call that
// degrades to "no audio" instead of failing.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and its reset timeout has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	defaultMaxFailures = 5
	defaultResetAfter  = 30 * time.Second
	defaultProbeMax    = 3
)

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards all calls. Normal operation.
	StateClosed State = iota

	// StateOpen rejects all calls with [ErrCircuitOpen] until the reset
	// timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through to decide
	// whether the backend has recovered.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// CircuitBreakerConfig holds the tuning knobs for a [CircuitBreaker].
// Zero-value fields are replaced with defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output, typically the provider name.
	Name string

	// MaxFailures is the consecutive-failure count that opens the breaker.
	// Default: 5.
	MaxFailures int

	// ResetAfter is how long the breaker stays open before probing the
	// backend again. Default: 30 s.
	ResetAfter time.Duration

	// ProbeMax is how many half-open probe calls may run before the breaker
	// decides to close or re-open. Default: 3.
	ProbeMax int
}

// CircuitBreaker is a classic three-state circuit breaker.
type CircuitBreaker struct {
	name        string
	maxFailures int
	resetAfter  time.Duration
	probeMax    int

	mu         sync.Mutex
	state      State
	failStreak int
	lastFail   time.Time
	probes     int
	probeFails int
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = defaultResetAfter
	}
	if cfg.ProbeMax <= 0 {
		cfg.ProbeMax = defaultProbeMax
	}
	return &CircuitBreaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		resetAfter:  cfg.ResetAfter,
		probeMax:    cfg.ProbeMax,
	}
}

// Execute runs fn if the breaker allows it and feeds the outcome back into
// the state machine. In the open state fn is not called and [ErrCircuitOpen]
// is returned.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.allow()
	if err != nil {
		return err
	}

	err = fn()
	cb.record(probe, err)
	return err
}

// allow decides whether a call may proceed and reports whether it counts as a
// half-open probe.
func (cb *CircuitBreaker) allow() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFail) < cb.resetAfter {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("circuit breaker half-open, probing", "breaker", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.probeMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probes++
		return true, nil
	}
	return false, nil
}

// record feeds one call outcome back into the state machine.
func (cb *CircuitBreaker) record(probe bool, callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if callErr == nil {
		if probe {
			if cb.probes-cb.probeFails >= cb.probeMax {
				cb.state = StateClosed
				cb.failStreak = 0
				cb.probes = 0
				cb.probeFails = 0
				slog.Info("circuit breaker closed after successful probes",
					"breaker", cb.name)
			}
			return
		}
		cb.failStreak = 0
		return
	}

	cb.lastFail = time.Now()
	if probe {
		// One failed probe is enough to re-open.
		cb.probeFails++
		cb.state = StateOpen
		cb.failStreak = cb.maxFailures
		slog.Warn("circuit breaker re-opened from half-open", "breaker", cb.name)
		return
	}

	cb.failStreak++
	if cb.failStreak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"breaker", cb.name,
			"consecutive_failures", cb.failStreak)
	}
}

// State returns the breaker's current state. An open breaker whose reset
// timeout has elapsed reports [StateHalfOpen]; the actual transition happens
// on the next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFail) >= cb.resetAfter {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failStreak = 0
	cb.probes = 0
	cb.probeFails = 0
	slog.Info("circuit breaker manually reset", "breaker", cb.name)
}
