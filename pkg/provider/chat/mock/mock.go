// Package mock provides a test double for the chat.Provider interface.
//
// Use Provider to return controlled reply text and to verify the requests
// passed to the backend.
//
// Example:
//
//	p := &mock.Provider{Reply: "All systems nominal."}
//	text, _ := p.Complete(ctx, chat.Request{UserText: "status?"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/earshot/pkg/provider/chat"
)

// Provider is a mock implementation of chat.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Reply is the text returned by Complete.
	Reply string

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	// Delay, if non-nil, makes Complete block until the channel is closed or
	// the context is cancelled. Useful for testing keepalives and timeouts.
	Delay <-chan struct{}

	// --- Call records ---

	// CompleteCalls records every request passed to Complete in order.
	CompleteCalls []chat.Request
}

// Complete records the call and returns Reply, Err. When Delay is set it
// blocks first until Delay is closed or ctx is cancelled.
func (p *Provider) Complete(ctx context.Context, req chat.Request) (string, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, req)
	delay := p.Delay
	reply := p.Reply
	err := p.Err
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// CallCount returns the number of recorded Complete calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}

// Ensure Provider implements chat.Provider at compile time.
var _ chat.Provider = (*Provider)(nil)
