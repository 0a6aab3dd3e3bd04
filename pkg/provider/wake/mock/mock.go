// Package mock provides a mock wake-word classifier for testing.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/earshot/pkg/provider/wake"
)

// Compile-time assertion that Classifier implements the interface.
var _ wake.Classifier = (*Classifier)(nil)

// PredictCall records a single call to Predict.
type PredictCall struct {
	Ctx   context.Context
	Frame []float32
}

// Classifier is a configurable mock implementation of wake.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Scores is returned by every Predict call unless ScoreSequence still
	// has entries.
	Scores map[string]float64

	// ScoreSequence, if non-empty, is consumed one entry per Predict call
	// before falling back to Scores. Useful for simulating a detection
	// after a few quiet frames.
	ScoreSequence []map[string]float64

	// Err, if set, is returned by Predict.
	Err error

	// ResetErr, if set, is returned by Reset.
	ResetErr error

	// Delay, if set, blocks Predict until the channel is closed or the
	// context is cancelled.
	Delay <-chan struct{}

	// PredictCalls records all calls made to Predict.
	PredictCalls []PredictCall

	// ResetCalls counts how often Reset was called.
	ResetCalls int
}

// Predict records the call and returns the configured scores or error.
func (c *Classifier) Predict(ctx context.Context, frame []float32) (map[string]float64, error) {
	c.mu.Lock()
	frameCopy := make([]float32, len(frame))
	copy(frameCopy, frame)
	c.PredictCalls = append(c.PredictCalls, PredictCall{Ctx: ctx, Frame: frameCopy})
	var scores map[string]float64
	if len(c.ScoreSequence) > 0 {
		scores = c.ScoreSequence[0]
		c.ScoreSequence = c.ScoreSequence[1:]
	} else {
		scores = c.Scores
	}
	err := c.Err
	delay := c.Delay
	c.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// Reset records the call and returns the configured reset error.
func (c *Classifier) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResetCalls++
	return c.ResetErr
}

// PredictCount returns the number of Predict calls made so far.
func (c *Classifier) PredictCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.PredictCalls)
}

// ResetCount returns the number of Reset calls made so far.
func (c *Classifier) ResetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ResetCalls
}

// Clear removes all recorded calls and restores the sequence state.
func (c *Classifier) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PredictCalls = nil
	c.ResetCalls = 0
}
