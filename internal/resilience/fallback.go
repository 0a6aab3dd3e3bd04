package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or is
// skipped by an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// ErrNoProviders is returned when a [FallbackGroup] has no entries at all.
var ErrNoProviders = errors.New("no providers configured")

// FallbackConfig configures the per-entry circuit breaker created for each
// provider added to a [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered list of providers of the same type, each
// guarded by its own circuit breaker. Entries are tried in the order they
// were added; open breakers are skipped. A group may be empty, which makes
// every execution fail with [ErrNoProviders] — callers that can degrade
// (such as the synthesis chain) rely on this rather than requiring a primary.
//
// Add is not safe to call concurrently with Execute; register all entries
// during construction.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates an empty group. Providers are registered with
// [FallbackGroup.Add] in priority order.
func NewFallbackGroup[T any](cfg FallbackConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cfg: cfg}
}

// Add appends a provider. The name labels the entry's breaker and log lines.
func (fg *FallbackGroup[T]) Add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len returns the number of registered providers.
func (fg *FallbackGroup[T]) Len() int {
	return len(fg.entries)
}

// Names returns the provider names in priority order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Execute tries fn against each entry in order until one succeeds. The
// entry's name is passed to fn so callers can attribute logs and metrics.
// Returns [ErrNoProviders] for an empty group, or [ErrAllFailed] wrapped with
// the last error when every entry fails.
func (fg *FallbackGroup[T]) Execute(fn func(name string, value T) error) error {
	if len(fg.entries) == 0 {
		return ErrNoProviders
	}

	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.name, entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds, returning the result value. This is a package-level function
// because Go does not support method-level type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(name string, value T) (R, error)) (R, error) {
	var result R
	err := fg.Execute(func(name string, value T) error {
		var innerErr error
		result, innerErr = fn(name, value)
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
