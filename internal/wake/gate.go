// Package wake implements the wake-word gate that arms and disarms detection
// around a turn.
//
// The [Gate] wraps a [wakeprov.Classifier] and adds the cooldown behaviour
// the classifier itself does not have: after every completed turn the gate is
// engaged, which clears the classifier's rolling audio window and suppresses
// detection for a fixed span of samples so the assistant's own synthesized
// speech cannot re-trigger it.
//
// A Gate is not safe for concurrent use; each session owns its own instance
// and drives it from the per-frame path.
package wake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	wakeprov "github.com/MrWong99/earshot/pkg/provider/wake"
)

// Config holds the tuning knobs for a [Gate]. Zero-value fields are replaced
// with sensible defaults by [NewGate].
type Config struct {
	// Threshold is the confidence score a label must reach to count as a
	// detection. Range (0, 1]. Default: 0.5.
	Threshold float64

	// Cooldown is how long detection stays suppressed after the gate is
	// engaged, measured in audio time rather than wall-clock time.
	// Default: 2 s.
	Cooldown time.Duration

	// SampleRate converts the cooldown duration into a sample count.
	// Default: 16000.
	SampleRate int
}

// Gate decides when a wake phrase has been spoken.
type Gate struct {
	classifier wakeprov.Classifier
	threshold  float64

	cooldownSamples int
	remaining       int

	degradeOnce sync.Once
}

// NewGate creates a [Gate] over the given classifier. The gate starts armed,
// with no cooldown active.
func NewGate(classifier wakeprov.Classifier, cfg Config) *Gate {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Gate{
		classifier:      classifier,
		threshold:       cfg.Threshold,
		cooldownSamples: int(cfg.Cooldown.Seconds() * float64(cfg.SampleRate)),
	}
}

// Feed passes one audio frame through the gate. It returns the detected wake
// label and true on a detection, or "" and false otherwise.
//
// While a cooldown is active the frame only shortens the remaining cooldown;
// the classifier is not consulted. Classifier failures degrade to
// no-detection and are logged once, so a missing or crashed wake model never
// takes the session down.
func (g *Gate) Feed(ctx context.Context, frame []float32) (string, bool) {
	if g.remaining > 0 {
		g.remaining -= len(frame)
		if g.remaining < 0 {
			g.remaining = 0
		}
		return "", false
	}

	scores, err := g.classifier.Predict(ctx, frame)
	if err != nil {
		g.degradeOnce.Do(func() {
			slog.Warn("wake gate: classifier unavailable, detection degraded",
				"error", err)
		})
		return "", false
	}

	// Any label above the threshold is a detection; report the strongest one.
	var (
		best      string
		bestScore float64
	)
	for label, score := range scores {
		if score >= g.threshold && score > bestScore {
			best = label
			bestScore = score
		}
	}
	if best == "" {
		return "", false
	}

	// Clear the rolling window before reporting so the wake phrase itself
	// cannot score again on the next frame.
	if err := g.classifier.Reset(ctx); err != nil {
		slog.Warn("wake gate: classifier reset after detection failed",
			"label", best, "error", err)
	}
	return best, true
}

// Engage clears the classifier's rolling state and starts the cooldown.
// It is called on every turn completion, regardless of how the turn ended.
func (g *Gate) Engage(ctx context.Context) {
	if err := g.classifier.Reset(ctx); err != nil {
		slog.Warn("wake gate: classifier reset failed", "error", err)
	}
	g.remaining = g.cooldownSamples
}

// CoolingDown reports whether the cooldown is still active.
func (g *Gate) CoolingDown() bool {
	return g.remaining > 0
}
