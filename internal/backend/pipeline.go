// Package backend issues the per-turn chat request and keeps the client
// connection warm while the answer is pending.
//
// The [Pipeline] sends exactly one completion request per turn through a
// [chat.Provider]. While the request is outstanding a ticker fires a
// caller-supplied keepalive callback on a fixed interval; the two activities
// run concurrently and are joined by completion or cancellation, so no
// keepalive is ever emitted after the request has resolved. There is no
// retry: re-submitting user speech could duplicate side effects on the
// backend.
package backend

import (
	"context"
	"time"

	"github.com/MrWong99/earshot/pkg/provider/chat"
)

const defaultKeepaliveInterval = 5 * time.Second

// Error wraps any failure of the backend exchange, preserving the cause for
// [errors.Is] and [errors.As] inspection.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return "backend: query failed: " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Config holds the per-session parameters of a [Pipeline].
type Config struct {
	// SystemPrompt is the fixed instruction sent with every request.
	SystemPrompt string

	// UserKey is a stable identifier for the end user behind this session,
	// forwarded to providers that support per-user attribution.
	UserKey string

	// KeepaliveInterval is how often the keepalive callback fires while a
	// request is outstanding. Default: 5 s.
	KeepaliveInterval time.Duration
}

// Pipeline performs backend queries for one session.
type Pipeline struct {
	provider  chat.Provider
	cfg       Config
	keepalive time.Duration
}

// New creates a [Pipeline] over the given provider.
func New(provider chat.Provider, cfg Config) *Pipeline {
	keepalive := cfg.KeepaliveInterval
	if keepalive <= 0 {
		keepalive = defaultKeepaliveInterval
	}
	return &Pipeline{
		provider:  provider,
		cfg:       cfg,
		keepalive: keepalive,
	}
}

// Ask sends the transcribed user text to the backend and returns the reply.
// While the request is outstanding, keepalive is invoked once per configured
// interval; it must be fast and non-blocking. A nil keepalive is allowed.
//
// Any failure, including context cancellation, is returned as a [*Error]
// with the cause preserved.
func (p *Pipeline) Ask(ctx context.Context, userText string, keepalive func()) (string, error) {
	type result struct {
		reply string
		err   error
	}

	// Buffered so the request goroutine can always complete, even when Ask
	// has already returned on cancellation.
	resCh := make(chan result, 1)
	go func() {
		reply, err := p.provider.Complete(ctx, chat.Request{
			SystemPrompt: p.cfg.SystemPrompt,
			UserText:     userText,
			UserKey:      p.cfg.UserKey,
		})
		resCh <- result{reply: reply, err: err}
	}()

	ticker := time.NewTicker(p.keepalive)
	defer ticker.Stop()

	for {
		select {
		case res := <-resCh:
			if res.err != nil {
				return "", &Error{Cause: res.err}
			}
			return res.reply, nil

		case <-ticker.C:
			if keepalive != nil {
				keepalive()
			}

		case <-ctx.Done():
			return "", &Error{Cause: ctx.Err()}
		}
	}
}
