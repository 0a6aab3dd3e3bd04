// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs, OpenAI,
// or a local Coqui instance) and presents a uniform batch interface: one call
// turns a reply text into one complete encoded audio clip that the session
// forwards to the client as a single binary frame.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (one per connected client).
type Provider interface {
	// Name returns a short stable identifier for the backend (e.g.,
	// "elevenlabs", "openai"). It is used in logs and metrics labels.
	Name() string

	// Synthesize converts text into a complete encoded audio clip (typically
	// MP3 or WAV, depending on the backend). It blocks until the clip is
	// fully available or ctx is cancelled.
	//
	// Returns a non-nil error if synthesis fails; an empty audio slice with
	// a nil error is not a valid result.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// MaxTextLen returns the maximum text length in runes this backend
	// accepts per request. Callers truncate longer texts before calling
	// Synthesize. A non-positive value means unlimited.
	MaxTextLen() int
}

// Pinger is an optional interface for providers that can verify their
// backing service is reachable. Readiness probes use it when available.
type Pinger interface {
	Ping(ctx context.Context) error
}
