package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/earshot/pkg/provider/tts"
)

const defaultAttemptTimeout = 15 * time.Second

// TTSFallbackConfig holds the tuning knobs for a [TTSFallback].
type TTSFallbackConfig struct {
	// AttemptTimeout bounds each individual provider call. Default: 15 s.
	AttemptTimeout time.Duration

	// CircuitBreaker configures the per-provider breakers.
	CircuitBreaker CircuitBreakerConfig
}

// TTSFallback tries an ordered list of synthesis providers until one returns
// audio. Each provider is guarded by its own circuit breaker and each attempt
// by its own timeout; text is truncated to the provider's declared maximum
// before the call.
//
// Unlike a [tts.Provider], the chain never fails: when every provider errors,
// is skipped by an open breaker, or none is configured at all, Synthesize
// returns an empty payload. Callers treat empty audio as "deliver text only".
type TTSFallback struct {
	group          *FallbackGroup[tts.Provider]
	attemptTimeout time.Duration
}

// NewTTSFallback creates an empty chain. Providers are registered with
// [TTSFallback.Add] in priority order.
func NewTTSFallback(cfg TTSFallbackConfig) *TTSFallback {
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &TTSFallback{
		group:          NewFallbackGroup[tts.Provider](FallbackConfig{CircuitBreaker: cfg.CircuitBreaker}),
		attemptTimeout: timeout,
	}
}

// Add appends a provider to the chain, labelled by its own Name.
func (f *TTSFallback) Add(p tts.Provider) {
	f.group.Add(p.Name(), p)
}

// Len returns the number of registered providers.
func (f *TTSFallback) Len() int {
	return f.group.Len()
}

// Providers returns the provider names in priority order.
func (f *TTSFallback) Providers() []string {
	return f.group.Names()
}

// Synthesize converts text into one encoded audio clip using the first
// healthy provider. The returned slice is empty when no provider could
// deliver audio; that is a degraded outcome, not an error.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) []byte {
	clip, err := ExecuteWithResult(f.group, func(name string, p tts.Provider) ([]byte, error) {
		input := truncateText(text, p.MaxTextLen())

		attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
		defer cancel()

		audio, err := p.Synthesize(attemptCtx, input)
		if err != nil {
			return nil, err
		}
		if len(audio) == 0 {
			// Defends the chain against providers that violate their
			// contract; counts as a failure for the breaker.
			return nil, fmt.Errorf("%s returned no audio", name)
		}
		return audio, nil
	})
	if err != nil {
		slog.Warn("synthesis degraded to text only", "error", err)
		return nil
	}
	return clip
}

// truncateText shortens s to at most max runes. Non-positive max means
// unlimited.
func truncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
