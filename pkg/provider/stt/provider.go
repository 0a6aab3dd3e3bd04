// Package stt defines the Provider interface for speech-to-text backends.
//
// The session core hands a provider one complete utterance at a time — the
// concatenated frames captured during a single listening span — and expects
// plain text back. Providers wrap a transcription engine such as a local
// whisper-server or the native whisper.cpp bindings and may apply their own
// voice-activity filtering before decoding.
//
// Implementations must be safe for concurrent use; several sessions may
// transcribe at the same time.
package stt

import "context"

// Provider is the abstraction over any batch speech-to-text backend.
type Provider interface {
	// Transcribe converts one utterance of normalised mono float32 samples at
	// the given sample rate into text. The returned text is raw provider
	// output; trimming and normalisation are the caller's job. An utterance
	// the engine hears nothing in yields an empty string, not an error.
	//
	// The context bounds the whole operation; implementations must return
	// promptly once it is cancelled.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// Pinger is implemented by providers that can cheaply verify their backing
// engine is reachable. The readiness probe uses it when available.
type Pinger interface {
	Ping(ctx context.Context) error
}
