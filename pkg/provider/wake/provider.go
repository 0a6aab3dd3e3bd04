// Package wake defines the Classifier interface for wake-word detection
// backends.
//
// A classifier scores short audio frames against a set of known wake phrases
// and reports a confidence per phrase label. Classifiers are stateful: they
// keep a rolling audio window internally, so frames must be fed in order and
// Reset must be called whenever the caller discards accumulated audio (after
// a detection, or when a listening phase ends).
//
// Implementations need not be safe for concurrent use; each session owns its
// own classifier instance.
package wake

import "context"

// Classifier is the abstraction over any wake-word scoring backend.
type Classifier interface {
	// Predict scores one audio frame against all known wake phrases and
	// returns a map of phrase label to confidence in [0, 1]. The frame is
	// mono float32 PCM at the classifier's expected sample rate.
	Predict(ctx context.Context, frame []float32) (map[string]float64, error)

	// Reset clears the classifier's rolling audio window. Call it after a
	// detection and whenever buffered audio is discarded, so stale audio
	// cannot trigger a detection later.
	Reset(ctx context.Context) error
}

// Pinger is an optional interface for classifiers that can verify their
// backing service is reachable. Readiness probes use it when available.
type Pinger interface {
	Ping(ctx context.Context) error
}
