// Package chat defines the Provider interface for conversational backends.
//
// A chat provider wraps whatever service turns a user's utterance into a
// reply: an OpenAI-compatible gateway, a hosted model API, or a local
// inference server. The turn loop sends exactly one request per utterance and
// waits for the complete reply text; streaming, history management, and tool
// calling live behind the backend, not here.
//
// Implementations must be safe for concurrent use.
package chat

import "context"

// Request carries everything the backend needs to produce a reply.
type Request struct {
	// SystemPrompt is an optional instruction injected before the user text.
	// Empty means the backend's own default behaviour applies.
	SystemPrompt string

	// UserText is the transcribed utterance driving the reply.
	UserText string

	// UserKey is a stable identifier for the end user, forwarded to backends
	// that support per-user attribution (e.g., the OpenAI "user" field).
	UserKey string
}

// Provider is the abstraction over any conversational backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: when ctx is cancelled, Complete must return as soon
// as possible.
type Provider interface {
	// Complete sends the request and blocks until the full reply text is
	// available. An empty reply with a nil error is valid; callers decide how
	// to present it.
	Complete(ctx context.Context, req Request) (string, error)
}

// Pinger is an optional interface for providers that can verify their
// backing service is reachable. Readiness probes use it when available.
type Pinger interface {
	Ping(ctx context.Context) error
}
