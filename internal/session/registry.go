package session

import (
	"context"
	"sync"

	"github.com/MrWong99/earshot/internal/observe"
)

// Registry is the process-wide set of live sessions, keyed by session ID.
// It is mutated only on connect and disconnect and read (snapshotted) by the
// broadcaster; all access is mutex-serialised. The registry never reaches
// into a session's state — it only holds the handle.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	metrics  *observe.Metrics
}

// NewRegistry creates an empty registry. A nil metrics uses the package
// default.
func NewRegistry(metrics *observe.Metrics) *Registry {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		metrics:  metrics,
	}
}

// Add registers a live session.
func (r *Registry) Add(ctx context.Context, s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.metrics.ActiveSessions.Add(ctx, 1)
}

// Remove unregisters a session. Removing an unknown ID is a no-op, so
// deferred cleanup on every connection exit path is always safe.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		r.metrics.ActiveSessions.Add(ctx, -1)
	}
}

// Snapshot returns the live sessions at this instant. The slice is owned by
// the caller; sessions appearing in it may disconnect at any time, which is
// why deliveries go through [Session.Notify] rather than direct access.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
